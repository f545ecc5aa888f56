package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"safarank-api/internal/cache"
	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/pkg/apierror"
)

// DefaultPageSize is used when a listing does not ask for a page size.
const DefaultPageSize = 12

// MaxPage bounds requested page numbers so offsets cannot overflow.
const MaxPage = 1 << 20

func clampPage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}

// pageCount returns the number of pages needed for total rows, at least 1.
func pageCount(total int64, pageSize int) int {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if pages == 0 {
		pages = 1
	}
	return pages
}

// ItemPage is one page of a catalog listing.
type ItemPage struct {
	Items    []model.Item
	Total    int64
	Page     int
	PageSize int
	Pages    int
	Query    string
	Sort     model.ItemSort
}

// HasPrev reports whether a previous page exists.
func (p *ItemPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p *ItemPage) HasNext() bool { return p.Page < p.Pages }

// CatalogService manages catalog items.
type CatalogService struct {
	items    repository.ItemRepository
	reviews  repository.ReviewRepository
	cache    cache.Cache
	pageSize int
}

// NewCatalogService creates a catalog service. c may be nil.
func NewCatalogService(items repository.ItemRepository, reviews repository.ReviewRepository, c cache.Cache, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &CatalogService{items: items, reviews: reviews, cache: c, pageSize: pageSize}
}

// ParseSort maps a query value to a sort order. Unknown values sort by name.
func ParseSort(s string) model.ItemSort {
	switch model.ItemSort(strings.ToLower(s)) {
	case model.SortByPrice:
		return model.SortByPrice
	case model.SortByRating:
		return model.SortByRating
	default:
		return model.SortByName
	}
}

// List returns the requested 1-based page of items matching query. Pages
// past the end are clamped to the last page.
func (s *CatalogService) List(ctx context.Context, query string, sort model.ItemSort, page int) (*ItemPage, error) {
	page = clampPage(page)
	query = strings.TrimSpace(query)

	filter := model.ItemFilter{Query: query, Sort: sort, Limit: s.pageSize}
	filter.Offset = (page - 1) * s.pageSize
	items, total, err := s.items.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	pages := pageCount(total, s.pageSize)
	if page > pages {
		page = pages
		filter.Offset = (page - 1) * s.pageSize
		if items, total, err = s.items.ListItems(ctx, filter); err != nil {
			return nil, err
		}
	}
	return &ItemPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: s.pageSize,
		Pages:    pages,
		Query:    query,
		Sort:     sort,
	}, nil
}

// All returns every item ordered by name.
func (s *CatalogService) All(ctx context.Context) ([]model.Item, error) {
	items, _, err := s.items.ListItems(ctx, model.ItemFilter{Sort: model.SortByName})
	return items, err
}

// Get returns an item or NotFound.
func (s *CatalogService) Get(ctx context.Context, id int64) (*model.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apierror.NotFound("item not found")
	}
	return item, nil
}

// ValidateItem checks an item's fields and fills defaults.
func ValidateItem(item *model.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	item.ImageURL = strings.TrimSpace(item.ImageURL)
	item.ApplyDefaults()

	var details []apierror.FieldError
	if item.Name == "" {
		details = append(details, apierror.FieldError{Field: "name", Message: "is required"})
	} else if len(item.Name) > 255 {
		details = append(details, apierror.FieldError{Field: "name", Message: "must be at most 255 characters"})
	}
	if item.Ratings < 0 || item.Ratings > 5 {
		details = append(details, apierror.FieldError{Field: "ratings", Message: "must be between 0 and 5"})
	}
	nonNegative := []struct {
		field string
		v     int
	}{
		{"price", item.Price},
		{"camera", item.Camera},
		{"battery", item.Battery},
		{"storage", item.Storage},
		{"ram", item.RAM},
		{"android_version", item.AndroidVersion},
	}
	for _, f := range nonNegative {
		if f.v < 0 {
			details = append(details, apierror.FieldError{Field: f.field, Message: "must not be negative"})
		}
	}
	if len(item.ImageURL) > 900 {
		details = append(details, apierror.FieldError{Field: "imgURL", Message: "must be at most 900 characters"})
	}

	if len(details) > 0 {
		return apierror.ValidationError("invalid item", details...)
	}
	return nil
}

// Create validates and stores a new item.
func (s *CatalogService) Create(ctx context.Context, item *model.Item) error {
	if err := ValidateItem(item); err != nil {
		return err
	}
	if _, err := s.items.CreateItem(ctx, item); err != nil {
		return err
	}
	invalidateStats(ctx, s.cache)
	slog.Info("item created", "item_id", item.ID)
	return nil
}

// Update validates and replaces an existing item.
func (s *CatalogService) Update(ctx context.Context, item *model.Item) error {
	if err := ValidateItem(item); err != nil {
		return err
	}
	if err := s.items.UpdateItem(ctx, item); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apierror.NotFound("item not found")
		}
		return err
	}
	invalidateStats(ctx, s.cache)
	return nil
}

// Delete removes an item and its reviews. Rankings keep the id; display
// drops it.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.items.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apierror.NotFound("item not found")
		}
		return err
	}
	n, err := s.reviews.DeleteReviewsByItem(ctx, id)
	if err != nil {
		return err
	}
	invalidateStats(ctx, s.cache)
	slog.Info("item deleted", "item_id", id, "reviews_deleted", n)
	return nil
}

