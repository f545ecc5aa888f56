package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/pkg/uid"
)

// StatsCacheKey holds the cached statistics snapshot.
const StatsCacheKey = "stats:global"

// statsVersionKey changes on every invalidation.
const (
	statsVersionKey = "stats:version"
	statsVersionTTL = 24 * time.Hour
)

// TopN is the length of the top-rated and most-reviewed tables.
const TopN = 10

// StatsService aggregates reviews into the administrator statistics page.
type StatsService struct {
	users   repository.UserRepository
	catalog repository.CatalogRepository
	cache   cache.Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewStatsService creates a statistics service. With a nil cache every call
// recomputes.
func NewStatsService(users repository.UserRepository, catalog repository.CatalogRepository, c cache.Cache, ttl time.Duration) *StatsService {
	return &StatsService{users: users, catalog: catalog, cache: c, ttl: ttl, now: time.Now}
}

// Snapshot returns the cached statistics, computing them on a miss. A
// snapshot computed while an invalidation landed is returned but not kept.
func (s *StatsService) Snapshot(ctx context.Context) (*model.Statistics, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.Compute(ctx)
	}

	version := statsVersion(ctx, s.cache)
	computed := false
	data, err := s.cache.GetOrSet(ctx, StatsCacheKey, s.ttl, func() ([]byte, error) {
		computed = true
		st, err := s.Compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(st)
	})
	if err != nil {
		return nil, err
	}
	if computed && statsVersion(ctx, s.cache) != version {
		if err := s.cache.Delete(ctx, StatsCacheKey); err != nil {
			slog.Warn("failed to drop stale statistics", "error", err)
		}
	}

	var st model.Statistics
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode cached statistics: %w", err)
	}
	return &st, nil
}

func statsVersion(ctx context.Context, c cache.Cache) string {
	v, err := c.Get(ctx, statsVersionKey)
	if err != nil {
		return ""
	}
	return string(v)
}

// invalidateStats bumps the snapshot version, then drops the snapshot.
func invalidateStats(ctx context.Context, c cache.Cache) {
	if c == nil {
		return
	}
	if err := c.Set(ctx, statsVersionKey, []byte(uid.New()), statsVersionTTL); err != nil {
		slog.Warn("failed to bump statistics version", "error", err)
	}
	if err := c.Delete(ctx, StatsCacheKey); err != nil {
		slog.Warn("failed to invalidate statistics", "error", err)
	}
}

// Compute reads both stores and aggregates a fresh snapshot.
func (s *StatsService) Compute(ctx context.Context) (*model.Statistics, error) {
	totals, err := s.catalog.Counts(ctx)
	if err != nil {
		return nil, err
	}
	if totals.Users, err = s.users.CountUsers(ctx); err != nil {
		return nil, err
	}

	reviews, err := s.catalog.AllReviews(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)
	seen := make(map[int64]bool)
	for _, r := range reviews {
		if !seen[r.ItemID] {
			seen[r.ItemID] = true
			ids = append(ids, r.ItemID)
		}
	}
	items, err := s.catalog.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	st := Aggregate(reviews, items, categories, TopN)
	st.Totals = totals
	st.GeneratedAt = s.now().UTC()
	return st, nil
}

// Aggregate groups reviews by item and category. items supplies current
// item names; reviews of unknown items keep their stored name. Totals and
// GeneratedAt are left for the caller.
func Aggregate(reviews []model.Review, items map[int64]model.Item, categories []model.Category, topN int) *model.Statistics {
	st := &model.Statistics{
		TopRated:     []model.ItemScore{},
		MostReviewed: []model.ItemScore{},
		ByCategory:   []model.CategoryScore{},
	}

	type acc struct {
		name  string
		count int
		sum   int
	}
	perItem := make(map[int64]*acc)
	total := 0
	for _, r := range reviews {
		if r.Score >= model.MinScore && r.Score <= model.MaxScore {
			st.Distribution[r.Score-1]++
		}
		total += r.Score

		a, ok := perItem[r.ItemID]
		if !ok {
			name := r.ItemName
			if it, found := items[r.ItemID]; found {
				name = it.Name
			}
			a = &acc{name: name}
			perItem[r.ItemID] = a
		}
		a.count++
		a.sum += r.Score
	}
	if len(reviews) > 0 {
		st.OverallAvg = round2(float64(total) / float64(len(reviews)))
	}

	scores := make([]model.ItemScore, 0, len(perItem))
	for id, a := range perItem {
		scores = append(scores, model.ItemScore{
			ItemID:   id,
			ItemName: a.name,
			Count:    a.count,
			Average:  round2(float64(a.sum) / float64(a.count)),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Average != b.Average {
			return a.Average > b.Average
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.ItemName != b.ItemName {
			return a.ItemName < b.ItemName
		}
		return a.ItemID < b.ItemID
	})
	st.TopRated = append(st.TopRated, scores[:min(topN, len(scores))]...)

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Count > scores[j].Count
	})
	st.MostReviewed = append(st.MostReviewed, scores[:min(topN, len(scores))]...)

	for _, c := range categories {
		cs := model.CategoryScore{CategoryID: c.ID, Name: c.Name}
		sum := 0
		counted := make(map[int64]bool, len(c.ItemIDs))
		for _, id := range c.ItemIDs {
			if counted[id] {
				continue
			}
			counted[id] = true
			if a, ok := perItem[id]; ok {
				cs.Count += a.count
				sum += a.sum
			}
		}
		if cs.Count > 0 {
			cs.Average = round2(float64(sum) / float64(cs.Count))
		}
		st.ByCategory = append(st.ByCategory, cs)
	}
	sort.SliceStable(st.ByCategory, func(i, j int) bool {
		a, b := st.ByCategory[i], st.ByCategory[j]
		if a.Average != b.Average {
			return a.Average > b.Average
		}
		return a.Name < b.Name
	})

	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
