package repository

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"safarank-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with the existing production database.
const (
	collItems      = "safarank"
	collCategories = "categorias"
	collReviews    = "valoraciones"
	collRankings   = "rankings"
	collCounters   = "counters"
)

// MongoDBCatalogRepository implements CatalogRepository using MongoDB.
type MongoDBCatalogRepository struct {
	client     *mongo.Client
	db         *mongo.Database
	items      *mongo.Collection
	categories *mongo.Collection
	reviews    *mongo.Collection
	rankings   *mongo.Collection
	counters   *mongo.Collection
}

// NewMongoDBCatalogRepository connects to MongoDB and ensures indexes.
func NewMongoDBCatalogRepository(uri, database string) (*MongoDBCatalogRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	r := &MongoDBCatalogRepository{
		client:     client,
		db:         db,
		items:      db.Collection(collItems),
		categories: db.Collection(collCategories),
		reviews:    db.Collection(collReviews),
		rankings:   db.Collection(collRankings),
		counters:   db.Collection(collCounters),
	}
	r.ensureIndexes(ctx)

	slog.Info("catalog store ready", "backend", "mongodb", "database", database)
	return r, nil
}

func (r *MongoDBCatalogRepository) ensureIndexes(ctx context.Context) {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{r.categories, mongo.IndexModel{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{r.categories, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{r.reviews, mongo.IndexModel{
			Keys:    bson.D{{Key: "item_id", Value: 1}, {Key: "user_email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{r.reviews, mongo.IndexModel{Keys: bson.D{{Key: "fecha", Value: -1}}}},
		{r.rankings, mongo.IndexModel{Keys: bson.D{{Key: "owner_id", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			slog.Warn("failed to create index", "collection", idx.coll.Name(), "error", err)
		}
	}
}

// nextIDs reserves n consecutive ids for name and returns the last one.
func (r *MongoDBCatalogRepository) nextIDs(ctx context.Context, name string, n int) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", name, err)
	}
	return counter.Seq, nil
}

func (r *MongoDBCatalogRepository) nextID(ctx context.Context, name string) (int64, error) {
	return r.nextIDs(ctx, name, 1)
}

// --- items ---

// CreateItem inserts an item and returns its id.
func (r *MongoDBCatalogRepository) CreateItem(ctx context.Context, item *model.Item) (int64, error) {
	id, err := r.nextID(ctx, collItems)
	if err != nil {
		return 0, err
	}
	item.ID = id
	if _, err := r.items.InsertOne(ctx, item); err != nil {
		return 0, fmt.Errorf("failed to insert item: %w", err)
	}
	return id, nil
}

// BulkCreateItems inserts items with one id reservation and one InsertMany.
func (r *MongoDBCatalogRepository) BulkCreateItems(ctx context.Context, items []model.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	last, err := r.nextIDs(ctx, collItems, len(items))
	if err != nil {
		return 0, err
	}
	first := last - int64(len(items)) + 1

	docs := make([]interface{}, len(items))
	for i := range items {
		items[i].ID = first + int64(i)
		docs[i] = items[i]
	}

	res, err := r.items.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("failed to batch insert items: %w", err)
	}

	slog.Info("batch inserted items", "count", len(res.InsertedIDs))
	return len(res.InsertedIDs), nil
}

// GetItem returns the item or nil when it does not exist.
func (r *MongoDBCatalogRepository) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	var it model.Item
	err := r.items.FindOne(ctx, bson.M{"_id": id}).Decode(&it)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &it, nil
}

// GetItemsByIDs returns the existing items among ids.
func (r *MongoDBCatalogRepository) GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]model.Item, error) {
	found := make(map[int64]model.Item, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	cur, err := r.items.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	var items []model.Item
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	for _, it := range items {
		found[it.ID] = it
	}
	return found, nil
}

func itemSortDoc(sort model.ItemSort) bson.D {
	switch sort {
	case model.SortByPrice:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case model.SortByRating:
		return bson.D{{Key: "ratings", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	}
}

// ListItems returns a page of items matching the filter and the total count.
func (r *MongoDBCatalogRepository) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, int64, error) {
	query := bson.M{}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"processor": pattern},
		}
	}

	total, err := r.items.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	opts := options.Find().
		SetSort(itemSortDoc(filter.Sort)).
		SetCollation(&options.Collation{Locale: "es", Strength: 2}).
		SetSkip(int64(filter.Offset))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.items.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	items := make([]model.Item, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, total, nil
}

// UpdateItem replaces an existing item document.
func (r *MongoDBCatalogRepository) UpdateItem(ctx context.Context, item *model.Item) error {
	res, err := r.items.ReplaceOne(ctx, bson.M{"_id": item.ID}, item)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes an item.
func (r *MongoDBCatalogRepository) DeleteItem(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.items, id, "item")
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id int64, what string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", what, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- categories ---

func normalizeCategory(c *model.Category) {
	if c.ItemIDs == nil {
		c.ItemIDs = []int64{}
	}
}

// CreateCategory inserts a category. Code and name must be unique.
func (r *MongoDBCatalogRepository) CreateCategory(ctx context.Context, category *model.Category) (int64, error) {
	id, err := r.nextID(ctx, collCategories)
	if err != nil {
		return 0, err
	}
	category.ID = id
	normalizeCategory(category)

	if _, err := r.categories.InsertOne(ctx, category); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	return id, nil
}

// GetCategory returns the category or nil when it does not exist.
func (r *MongoDBCatalogRepository) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := r.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	normalizeCategory(&c)
	return &c, nil
}

// ListCategories returns all categories ordered by code.
func (r *MongoDBCatalogRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	cur, err := r.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	cats := make([]model.Category, 0)
	if err := cur.All(ctx, &cats); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	for i := range cats {
		normalizeCategory(&cats[i])
	}
	return cats, nil
}

// UpdateCategory replaces an existing category document.
func (r *MongoDBCatalogRepository) UpdateCategory(ctx context.Context, category *model.Category) error {
	normalizeCategory(category)
	res, err := r.categories.ReplaceOne(ctx, bson.M{"_id": category.ID}, category)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category.
func (r *MongoDBCatalogRepository) DeleteCategory(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.categories, id, "category")
}

// --- reviews ---

// UpsertReview stores the review, replacing the user's previous review of
// the same item. A reserved id is only used when a new document is created.
func (r *MongoDBCatalogRepository) UpsertReview(ctx context.Context, review *model.Review) (int64, error) {
	newID, err := r.nextID(ctx, collReviews)
	if err != nil {
		return 0, err
	}

	filter := bson.M{"item_id": review.ItemID, "user_email": review.UserEmail}
	update := bson.M{
		"$set": bson.M{
			"movil_name": review.ItemName,
			"fecha":      review.Date.UTC(),
			"puntuacion": review.Score,
			"comentario": review.Comment,
		},
		"$setOnInsert": bson.M{"_id": newID},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored model.Review
	if err := r.reviews.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return 0, fmt.Errorf("failed to upsert review: %w", err)
	}
	review.ID = stored.ID
	return stored.ID, nil
}

func (r *MongoDBCatalogRepository) findReviews(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Review, error) {
	cur, err := r.reviews.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	reviews := make([]model.Review, 0)
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, nil
}

var newestFirst = bson.D{{Key: "fecha", Value: -1}, {Key: "_id", Value: -1}}

// ListReviewsByItem returns an item's reviews, newest first.
func (r *MongoDBCatalogRepository) ListReviewsByItem(ctx context.Context, itemID int64) ([]model.Review, error) {
	return r.findReviews(ctx, bson.M{"item_id": itemID}, options.Find().SetSort(newestFirst))
}

// ListReviews returns a page of all reviews, newest first.
func (r *MongoDBCatalogRepository) ListReviews(ctx context.Context, limit, offset int) ([]model.Review, int64, error) {
	total, err := r.reviews.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	opts := options.Find().SetSort(newestFirst).SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	reviews, err := r.findReviews(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// AllReviews returns every review.
func (r *MongoDBCatalogRepository) AllReviews(ctx context.Context) ([]model.Review, error) {
	return r.findReviews(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// DeleteReviewsByItem removes all reviews of an item.
func (r *MongoDBCatalogRepository) DeleteReviewsByItem(ctx context.Context, itemID int64) (int64, error) {
	res, err := r.reviews.DeleteMany(ctx, bson.M{"item_id": itemID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reviews: %w", err)
	}
	return res.DeletedCount, nil
}

// --- rankings ---

// rankingDocument is the stored shape of a ranking. Items holds a document
// of tier arrays when Format is "tiers"; legacy documents carry a bare array
// and no format field.
type rankingDocument struct {
	ID        int64         `bson:"_id"`
	OwnerID   int64         `bson:"owner_id"`
	Name      string        `bson:"nombre"`
	Format    string        `bson:"format,omitempty"`
	Items     bson.RawValue `bson:"items"`
	CreatedAt time.Time     `bson:"fecha_creacion"`
	UpdatedAt time.Time     `bson:"updated_at,omitempty"`
}

func tiersDocument(a model.TierAssignment) bson.M {
	doc := bson.M{}
	for _, t := range model.TierOrder {
		ids := a[t]
		if ids == nil {
			ids = []int64{}
		}
		doc[string(t)] = ids
	}
	return doc
}

func encodeRankingItems(s model.StoredTiers) (string, bson.RawValue, error) {
	var v interface{}
	format := string(model.FormatTiers)
	if s.Format == model.FormatFlat {
		ids := s.Flat
		if ids == nil {
			ids = []int64{}
		}
		v = ids
		format = ""
	} else {
		v = tiersDocument(s.Tiers)
	}
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		return "", bson.RawValue{}, err
	}
	return format, bson.RawValue{Type: t, Value: data}, nil
}

func (d rankingDocument) toModel() (model.RankingList, error) {
	l := model.RankingList{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}

	switch d.Items.Type {
	case bsontype.Array:
		var ids []int64
		if err := d.Items.Unmarshal(&ids); err != nil {
			return l, fmt.Errorf("failed to decode ranking %d items: %w", d.ID, err)
		}
		l.Items = model.FlatOf(ids)
	case bsontype.EmbeddedDocument:
		var doc map[string][]int64
		if err := d.Items.Unmarshal(&doc); err != nil {
			return l, fmt.Errorf("failed to decode ranking %d tiers: %w", d.ID, err)
		}
		a := model.NewTierAssignment()
		for label, ids := range doc {
			if t, ok := model.ParseTier(label); ok {
				a[t] = append(a[t], ids...)
			}
		}
		l.Items = model.TiersOf(a)
	default:
		l.Items = model.TiersOf(model.NewTierAssignment())
	}
	return l, nil
}

// CreateRanking inserts a list in the format it carries.
func (r *MongoDBCatalogRepository) CreateRanking(ctx context.Context, list *model.RankingList) (int64, error) {
	format, items, err := encodeRankingItems(list.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to encode ranking: %w", err)
	}
	id, err := r.nextID(ctx, collRankings)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if list.CreatedAt.IsZero() {
		list.CreatedAt = now
	}
	list.UpdatedAt = now

	doc := rankingDocument{
		ID:        id,
		OwnerID:   list.OwnerID,
		Name:      list.Name,
		Format:    format,
		Items:     items,
		CreatedAt: list.CreatedAt,
		UpdatedAt: list.UpdatedAt,
	}
	if _, err := r.rankings.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to insert ranking: %w", err)
	}
	list.ID = id
	return id, nil
}

// GetRanking returns the list or nil when it does not exist.
func (r *MongoDBCatalogRepository) GetRanking(ctx context.Context, id int64) (*model.RankingList, error) {
	var doc rankingDocument
	err := r.rankings.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking: %w", err)
	}
	l, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListRankingsByOwner returns the owner's lists, newest first.
func (r *MongoDBCatalogRepository) ListRankingsByOwner(ctx context.Context, ownerID int64) ([]model.RankingList, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cur, err := r.rankings.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	var docs []rankingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode rankings: %w", err)
	}

	lists := make([]model.RankingList, 0, len(docs))
	for _, d := range docs {
		l, err := d.toModel()
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, nil
}

// SaveRankingTiers overwrites the list's items with tiers in one update.
func (r *MongoDBCatalogRepository) SaveRankingTiers(ctx context.Context, id int64, tiers model.TierAssignment) error {
	update := bson.M{
		"$set": bson.M{
			"format":     string(model.FormatTiers),
			"items":      tiersDocument(tiers),
			"updated_at": time.Now().UTC(),
		},
	}
	res, err := r.rankings.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to save ranking: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRanking removes a list.
func (r *MongoDBCatalogRepository) DeleteRanking(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.rankings, id, "ranking")
}

// --- maintenance ---

// Counts returns document counts per collection.
func (r *MongoDBCatalogRepository) Counts(ctx context.Context) (model.Totals, error) {
	var t model.Totals
	targets := []struct {
		coll *mongo.Collection
		dst  *int64
	}{
		{r.items, &t.Items},
		{r.categories, &t.Categories},
		{r.reviews, &t.Reviews},
		{r.rankings, &t.Rankings},
	}
	for _, tg := range targets {
		n, err := tg.coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			return t, fmt.Errorf("failed to count %s: %w", tg.coll.Name(), err)
		}
		*tg.dst = n
	}
	return t, nil
}

// GetStats returns statistics about the catalog collections.
func (r *MongoDBCatalogRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["backend"] = "mongodb"
	stats["status"] = "connected"

	totals, err := r.Counts(ctx)
	if err != nil {
		return stats, err
	}
	stats["total_items"] = totals.Items
	stats["total_categories"] = totals.Categories
	stats["total_reviews"] = totals.Reviews
	stats["total_rankings"] = totals.Rankings

	var last model.Review
	opts := options.FindOne().SetSort(newestFirst)
	if err := r.reviews.FindOne(ctx, bson.M{}, opts).Decode(&last); err == nil {
		stats["last_review"] = last.Date
	}

	var size int64
	for _, coll := range []*mongo.Collection{r.items, r.categories, r.reviews, r.rankings} {
		var collStats bson.M
		result := r.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: coll.Name()}})
		if err := result.Decode(&collStats); err != nil {
			continue
		}
		switch v := collStats["size"].(type) {
		case int64:
			size += v
		case int32:
			size += int64(v)
		case float64:
			size += int64(v)
		}
	}
	stats["db_size_bytes"] = size

	return stats, nil
}

// Ping verifies the connection.
func (r *MongoDBCatalogRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (r *MongoDBCatalogRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Ensure MongoDBCatalogRepository implements CatalogRepository
var _ CatalogRepository = (*MongoDBCatalogRepository)(nil)
