package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"safarank-api/internal/model"
)

// SQLiteCatalogRepository implements CatalogRepository using SQLite, storing
// list-valued fields as JSON text. Used for development and tests.
type SQLiteCatalogRepository struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// NewSQLiteCatalogRepository opens (or creates) the catalog database at
// dbPath. ":memory:" gives a private in-memory database.
func NewSQLiteCatalogRepository(dbPath string) (*SQLiteCatalogRepository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// One connection: a single writer, and an in-memory database lives only
	// as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createCatalogTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("catalog store ready", "backend", "sqlite", "path", dbPath)
	return &SQLiteCatalogRepository{db: db, path: dbPath}, nil
}

func createCatalogTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		ratings REAL NOT NULL DEFAULT 0,
		price INTEGER NOT NULL DEFAULT 0,
		img_url TEXT NOT NULL DEFAULT '',
		camera INTEGER NOT NULL DEFAULT 0,
		display TEXT NOT NULL DEFAULT 'N/A',
		battery INTEGER NOT NULL DEFAULT 0,
		storage INTEGER NOT NULL DEFAULT 0,
		ram INTEGER NOT NULL DEFAULT 0,
		processor TEXT NOT NULL DEFAULT 'N/A',
		android_version INTEGER NOT NULL DEFAULT 12
	);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		item_ids TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL,
		item_name TEXT NOT NULL,
		user_email TEXT NOT NULL,
		date DATETIME NOT NULL,
		score INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		UNIQUE(item_id, user_email)
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_date ON reviews(date);

	CREATE TABLE IF NOT EXISTS rankings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT 'tiers',
		items TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rankings_owner ON rankings(owner_id);
	`
	_, err := db.Exec(query)
	return err
}

const itemColumns = `id, name, ratings, price, img_url, camera, display, battery, storage, ram, processor, android_version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s rowScanner) (model.Item, error) {
	var it model.Item
	err := s.Scan(
		&it.ID,
		&it.Name,
		&it.Ratings,
		&it.Price,
		&it.ImageURL,
		&it.Camera,
		&it.Display,
		&it.Battery,
		&it.Storage,
		&it.RAM,
		&it.Processor,
		&it.AndroidVersion,
	)
	return it, err
}

func itemArgs(it *model.Item) []interface{} {
	return []interface{}{
		it.Name, it.Ratings, it.Price, it.ImageURL, it.Camera, it.Display,
		it.Battery, it.Storage, it.RAM, it.Processor, it.AndroidVersion,
	}
}

const insertItemSQL = `
	INSERT INTO items (name, ratings, price, img_url, camera, display, battery, storage, ram, processor, android_version)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateItem inserts an item and returns its id.
func (r *SQLiteCatalogRepository) CreateItem(ctx context.Context, item *model.Item) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, insertItemSQL, itemArgs(item)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	item.ID = id
	return id, nil
}

// BulkCreateItems inserts items in one transaction and sets their ids.
func (r *SQLiteCatalogRepository) BulkCreateItems(ctx context.Context, items []model.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertItemSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		res, err := stmt.ExecContext(ctx, itemArgs(&items[i])...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert item %q: %w", items[i].Name, err)
		}
		if items[i].ID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(items), nil
}

// GetItem returns the item or nil when it does not exist.
func (r *SQLiteCatalogRepository) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &it, nil
}

// GetItemsByIDs returns the existing items among ids.
func (r *SQLiteCatalogRepository) GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]model.Item, error) {
	found := make(map[int64]model.Item, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		found[it.ID] = it
	}
	return found, rows.Err()
}

func itemOrderBy(sort model.ItemSort) string {
	switch sort {
	case model.SortByPrice:
		return "price ASC, id ASC"
	case model.SortByRating:
		return "ratings DESC, id ASC"
	default:
		return "name COLLATE NOCASE ASC, id ASC"
	}
}

// ListItems returns a page of items matching the filter and the total count.
func (r *SQLiteCatalogRepository) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	where := ""
	var args []interface{}
	if q := strings.TrimSpace(filter.Query); q != "" {
		// LIKE is case-insensitive for ASCII in SQLite.
		where = ` WHERE name LIKE ? ESCAPE '\' OR processor LIKE ? ESCAPE '\'`
		pattern := "%" + escapeLike(q) + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY ` + itemOrderBy(filter.Sort) + ` LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateItem replaces all fields of an existing item.
func (r *SQLiteCatalogRepository) UpdateItem(ctx context.Context, item *model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		UPDATE items SET name = ?, ratings = ?, price = ?, img_url = ?, camera = ?, display = ?,
			battery = ?, storage = ?, ram = ?, processor = ?, android_version = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, append(itemArgs(item), item.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return requireAffected(res)
}

// DeleteItem removes an item.
func (r *SQLiteCatalogRepository) DeleteItem(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- categories ---

func scanCategory(s rowScanner) (model.Category, error) {
	var c model.Category
	var ids string
	if err := s.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &ids); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(ids), &c.ItemIDs); err != nil {
		return c, fmt.Errorf("failed to decode category %d items: %w", c.ID, err)
	}
	if c.ItemIDs == nil {
		c.ItemIDs = []int64{}
	}
	return c, nil
}

func encodeIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

// CreateCategory inserts a category. Code and name must be unique.
func (r *SQLiteCatalogRepository) CreateCategory(ctx context.Context, category *model.Category) (int64, error) {
	ids, err := encodeIDs(category.ItemIDs)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (code, name, description, item_ids) VALUES (?, ?, ?, ?)`,
		category.Code, category.Name, category.Description, ids)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	category.ID = id
	return id, nil
}

// GetCategory returns the category or nil when it does not exist.
func (r *SQLiteCatalogRepository) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx, `SELECT id, code, name, description, item_ids FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// ListCategories returns all categories ordered by code.
func (r *SQLiteCatalogRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `SELECT id, code, name, description, item_ids FROM categories ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	cats := make([]model.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// UpdateCategory replaces all fields of an existing category.
func (r *SQLiteCatalogRepository) UpdateCategory(ctx context.Context, category *model.Category) error {
	ids, err := encodeIDs(category.ItemIDs)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET code = ?, name = ?, description = ?, item_ids = ? WHERE id = ?`,
		category.Code, category.Name, category.Description, ids, category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireAffected(res)
}

// DeleteCategory removes a category. Its items are not touched.
func (r *SQLiteCatalogRepository) DeleteCategory(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(res)
}

// --- reviews ---

const reviewColumns = `id, item_id, item_name, user_email, date, score, comment`

func scanReview(s rowScanner) (model.Review, error) {
	var rv model.Review
	err := s.Scan(&rv.ID, &rv.ItemID, &rv.ItemName, &rv.UserEmail, &rv.Date, &rv.Score, &rv.Comment)
	return rv, err
}

// UpsertReview stores the review, replacing the user's previous review of
// the same item.
func (r *SQLiteCatalogRepository) UpsertReview(ctx context.Context, review *model.Review) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO reviews (item_id, item_name, user_email, date, score, comment)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, user_email) DO UPDATE SET
			item_name = excluded.item_name,
			date = excluded.date,
			score = excluded.score,
			comment = excluded.comment`
	_, err := r.db.ExecContext(ctx, query,
		review.ItemID, review.ItemName, review.UserEmail, review.Date.UTC(), review.Score, review.Comment)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert review: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM reviews WHERE item_id = ? AND user_email = ?`, review.ItemID, review.UserEmail).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read review id: %w", err)
	}
	review.ID = id
	return id, nil
}

func (r *SQLiteCatalogRepository) queryReviews(ctx context.Context, query string, args ...interface{}) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]model.Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

// ListReviewsByItem returns an item's reviews, newest first.
func (r *SQLiteCatalogRepository) ListReviewsByItem(ctx context.Context, itemID int64) ([]model.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.queryReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE item_id = ? ORDER BY date DESC, id DESC`, itemID)
}

// ListReviews returns a page of all reviews, newest first.
func (r *SQLiteCatalogRepository) ListReviews(ctx context.Context, limit, offset int) ([]model.Review, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	reviews, err := r.queryReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// AllReviews returns every review.
func (r *SQLiteCatalogRepository) AllReviews(ctx context.Context) ([]model.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.queryReviews(ctx, `SELECT `+reviewColumns+` FROM reviews ORDER BY id ASC`)
}

// DeleteReviewsByItem removes all reviews of an item.
func (r *SQLiteCatalogRepository) DeleteReviewsByItem(ctx context.Context, itemID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reviews: %w", err)
	}
	return res.RowsAffected()
}

// --- rankings ---

// encodeStoredTiers renders the at-rest JSON for a ranking's items: an
// object of tier arrays, or a bare array for the legacy flat format.
func encodeStoredTiers(s model.StoredTiers) (model.TierFormat, string, error) {
	if s.Format == model.FormatFlat {
		ids, err := encodeIDs(s.Flat)
		return model.FormatFlat, ids, err
	}
	doc := make(map[string][]int64, len(model.TierOrder))
	for _, t := range model.TierOrder {
		ids := s.Tiers[t]
		if ids == nil {
			ids = []int64{}
		}
		doc[string(t)] = ids
	}
	b, err := json.Marshal(doc)
	return model.FormatTiers, string(b), err
}

func decodeStoredTiers(format model.TierFormat, raw string) (model.StoredTiers, error) {
	if format == model.FormatFlat {
		var ids []int64
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return model.StoredTiers{}, err
		}
		return model.FlatOf(ids), nil
	}
	var doc map[string][]int64
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return model.StoredTiers{}, err
	}
	a := model.NewTierAssignment()
	for label, ids := range doc {
		if t, ok := model.ParseTier(label); ok {
			a[t] = append(a[t], ids...)
		}
	}
	return model.TiersOf(a), nil
}

const rankingColumns = `id, owner_id, name, format, items, created_at, updated_at`

func scanRanking(s rowScanner) (model.RankingList, error) {
	var l model.RankingList
	var format, items string
	if err := s.Scan(&l.ID, &l.OwnerID, &l.Name, &format, &items, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return l, err
	}
	stored, err := decodeStoredTiers(model.TierFormat(format), items)
	if err != nil {
		return l, fmt.Errorf("failed to decode ranking %d: %w", l.ID, err)
	}
	l.Items = stored
	return l, nil
}

// CreateRanking inserts a list in the format it carries.
func (r *SQLiteCatalogRepository) CreateRanking(ctx context.Context, list *model.RankingList) (int64, error) {
	format, items, err := encodeStoredTiers(list.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to encode ranking: %w", err)
	}
	now := time.Now().UTC()
	if list.CreatedAt.IsZero() {
		list.CreatedAt = now
	}
	list.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rankings (owner_id, name, format, items, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		list.OwnerID, list.Name, string(format), items, list.CreatedAt, list.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ranking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	list.ID = id
	return id, nil
}

// GetRanking returns the list or nil when it does not exist.
func (r *SQLiteCatalogRepository) GetRanking(ctx context.Context, id int64) (*model.RankingList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx, `SELECT `+rankingColumns+` FROM rankings WHERE id = ?`, id)
	l, err := scanRanking(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ranking: %w", err)
	}
	return &l, nil
}

// ListRankingsByOwner returns the owner's lists, newest first.
func (r *SQLiteCatalogRepository) ListRankingsByOwner(ctx context.Context, ownerID int64) ([]model.RankingList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+rankingColumns+` FROM rankings WHERE owner_id = ? ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	defer rows.Close()

	lists := make([]model.RankingList, 0)
	for rows.Next() {
		l, err := scanRanking(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

// SaveRankingTiers overwrites the list's items with tiers in one statement.
func (r *SQLiteCatalogRepository) SaveRankingTiers(ctx context.Context, id int64, tiers model.TierAssignment) error {
	_, items, err := encodeStoredTiers(model.TiersOf(tiers))
	if err != nil {
		return fmt.Errorf("failed to encode ranking: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE rankings SET format = ?, items = ?, updated_at = ? WHERE id = ?`,
		string(model.FormatTiers), items, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save ranking: %w", err)
	}
	return requireAffected(res)
}

// DeleteRanking removes a list.
func (r *SQLiteCatalogRepository) DeleteRanking(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM rankings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ranking: %w", err)
	}
	return requireAffected(res)
}

// --- maintenance ---

// Counts returns record counts per table.
func (r *SQLiteCatalogRepository) Counts(ctx context.Context) (model.Totals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var t model.Totals
	targets := []struct {
		table string
		dst   *int64
	}{
		{"items", &t.Items},
		{"categories", &t.Categories},
		{"reviews", &t.Reviews},
		{"rankings", &t.Rankings},
	}
	for _, tg := range targets {
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tg.table).Scan(tg.dst); err != nil {
			return t, fmt.Errorf("failed to count %s: %w", tg.table, err)
		}
	}
	return t, nil
}

// GetStats returns statistics about the catalog database.
func (r *SQLiteCatalogRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	totals, err := r.Counts(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]interface{}{
		"backend":          "sqlite",
		"path":             r.path,
		"total_items":      totals.Items,
		"total_categories": totals.Categories,
		"total_reviews":    totals.Reviews,
		"total_rankings":   totals.Rankings,
	}

	var lastReview sql.NullString
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(date) FROM reviews").Scan(&lastReview); err == nil && lastReview.Valid {
		stats["last_review"] = lastReview.String
	}

	// Database size (approximate from page count)
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Ping verifies the connection.
func (r *SQLiteCatalogRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLiteCatalogRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteCatalogRepository implements CatalogRepository
var _ CatalogRepository = (*SQLiteCatalogRepository)(nil)
