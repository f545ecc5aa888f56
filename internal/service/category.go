package service

import (
	"context"
	"errors"
	"strings"

	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/pkg/apierror"
)

// CategoryService manages categories and their item lists.
type CategoryService struct {
	categories repository.CategoryRepository
	items      repository.ItemRepository
}

// NewCategoryService creates a category service.
func NewCategoryService(categories repository.CategoryRepository, items repository.ItemRepository) *CategoryService {
	return &CategoryService{categories: categories, items: items}
}

// List returns all categories ordered by code.
func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.categories.ListCategories(ctx)
}

// Get returns a category or NotFound.
func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	c, err := s.categories.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apierror.NotFound("category not found")
	}
	return c, nil
}

// View returns a category with its items resolved, in stored order.
// Ids that no longer resolve are dropped.
func (s *CategoryService) View(ctx context.Context, id int64) (*model.CategoryView, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	found, err := s.items.GetItemsByIDs(ctx, c.ItemIDs)
	if err != nil {
		return nil, err
	}

	view := &model.CategoryView{Category: *c, Items: make([]model.Item, 0, len(c.ItemIDs))}
	for _, id := range c.ItemIDs {
		if it, ok := found[id]; ok {
			view.Items = append(view.Items, it)
		}
	}
	return view, nil
}

func validateCategory(c *model.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)

	var details []apierror.FieldError
	if c.Code <= 0 {
		details = append(details, apierror.FieldError{Field: "code", Message: "must be a positive integer"})
	}
	if c.Name == "" {
		details = append(details, apierror.FieldError{Field: "name", Message: "is required"})
	} else if len(c.Name) > 150 {
		details = append(details, apierror.FieldError{Field: "name", Message: "must be at most 150 characters"})
	}
	if len(c.Description) > 300 {
		details = append(details, apierror.FieldError{Field: "description", Message: "must be at most 300 characters"})
	}
	if len(details) > 0 {
		return apierror.ValidationError("invalid category", details...)
	}

	// keep first occurrence of each id
	seen := make(map[int64]bool, len(c.ItemIDs))
	ids := make([]int64, 0, len(c.ItemIDs))
	for _, id := range c.ItemIDs {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	c.ItemIDs = ids
	return nil
}

// checkUnique reports a Conflict when another category uses c's code or name.
func (s *CategoryService) checkUnique(ctx context.Context, c *model.Category) error {
	all, err := s.categories.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID == c.ID {
			continue
		}
		if other.Code == c.Code {
			return apierror.Conflict("a category with this code already exists")
		}
		if strings.EqualFold(other.Name, c.Name) {
			return apierror.Conflict("a category with this name already exists")
		}
	}
	return nil
}

// Create validates and stores a category. Code and name must be unique.
func (s *CategoryService) Create(ctx context.Context, c *model.Category) error {
	c.ID = 0
	if err := validateCategory(c); err != nil {
		return err
	}
	if err := s.checkUnique(ctx, c); err != nil {
		return err
	}
	if _, err := s.categories.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apierror.Conflict("a category with this code or name already exists")
		}
		return err
	}
	return nil
}

// Update validates and replaces a category.
func (s *CategoryService) Update(ctx context.Context, c *model.Category) error {
	if err := validateCategory(c); err != nil {
		return err
	}
	if err := s.checkUnique(ctx, c); err != nil {
		return err
	}
	if err := s.categories.UpdateCategory(ctx, c); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apierror.NotFound("category not found")
		case errors.Is(err, repository.ErrDuplicate):
			return apierror.Conflict("a category with this code or name already exists")
		}
		return err
	}
	return nil
}

// Delete removes a category.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if err := s.categories.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apierror.NotFound("category not found")
		}
		return err
	}
	return nil
}
