package repository

import (
	"context"
	"errors"

	"safarank-api/internal/model"
)

// ErrNotFound is returned by update and delete operations when the target
// record does not exist. Lookups return a nil record and a nil error instead.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository defines identity store access methods.
type UserRepository interface {
	// CreateUser inserts a user and returns its id.
	CreateUser(ctx context.Context, user *model.User) (int64, error)

	// GetUserByEmail finds a user by normalized email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// GetUserByID finds a user by id.
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	// CountUsers returns the number of accounts.
	CountUsers(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ItemRepository defines catalog item access methods.
type ItemRepository interface {
	CreateItem(ctx context.Context, item *model.Item) (int64, error)

	// BulkCreateItems inserts items in one batch, assigning ids in order.
	BulkCreateItems(ctx context.Context, items []model.Item) (int, error)

	GetItem(ctx context.Context, id int64) (*model.Item, error)

	// GetItemsByIDs returns the items that exist among ids, keyed by id.
	GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]model.Item, error)

	// ListItems returns a page of items and the total matching count.
	ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, int64, error)

	UpdateItem(ctx context.Context, item *model.Item) error
	DeleteItem(ctx context.Context, id int64) error
}

// CategoryRepository defines category access methods.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *model.Category) (int64, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// ReviewRepository defines review access methods.
type ReviewRepository interface {
	// UpsertReview stores a review, replacing any previous review by the same
	// user for the same item. Returns the review id.
	UpsertReview(ctx context.Context, review *model.Review) (int64, error)

	// ListReviewsByItem returns an item's reviews, newest first.
	ListReviewsByItem(ctx context.Context, itemID int64) ([]model.Review, error)

	// ListReviews returns a page of all reviews, newest first, and the total.
	ListReviews(ctx context.Context, limit, offset int) ([]model.Review, int64, error)

	// AllReviews returns every review for aggregation.
	AllReviews(ctx context.Context) ([]model.Review, error)

	DeleteReviewsByItem(ctx context.Context, itemID int64) (int64, error)
}

// RankingRepository defines ranking list access methods.
type RankingRepository interface {
	// CreateRanking inserts a list in whatever storage format it carries.
	CreateRanking(ctx context.Context, list *model.RankingList) (int64, error)

	GetRanking(ctx context.Context, id int64) (*model.RankingList, error)

	// ListRankingsByOwner returns the owner's lists, newest first.
	ListRankingsByOwner(ctx context.Context, ownerID int64) ([]model.RankingList, error)

	// SaveRankingTiers replaces the whole tier assignment in a single write
	// and marks the list as stored in the tier format.
	SaveRankingTiers(ctx context.Context, id int64, tiers model.TierAssignment) error

	DeleteRanking(ctx context.Context, id int64) error
}

// CatalogRepository is the document store: items, categories, reviews and
// rankings behind one connection.
type CatalogRepository interface {
	ItemRepository
	CategoryRepository
	ReviewRepository
	RankingRepository

	// Counts returns per-collection record counts. Users is left zero.
	Counts(ctx context.Context) (model.Totals, error)

	// GetStats returns backend statistics for the admin dashboard.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	Ping(ctx context.Context) error
	Close() error
}
