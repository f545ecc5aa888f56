package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/pkg/apierror"
)

// MaxRankingNameLength bounds a ranking's display name.
const MaxRankingNameLength = 100

var errRankingNotFound = apierror.NotFound("ranking not found")

// RankingService implements the tier-list state machine. Every mutation
// loads the list, changes the in-memory assignment and persists the whole
// assignment in one write. Concurrent writers race and the last one wins.
type RankingService struct {
	rankings repository.RankingRepository
	items    repository.ItemRepository
}

// NewRankingService creates a ranking service.
func NewRankingService(rankings repository.RankingRepository, items repository.ItemRepository) *RankingService {
	return &RankingService{rankings: rankings, items: items}
}

// CreateList creates an empty tier list owned by ownerID.
func (s *RankingService) CreateList(ctx context.Context, ownerID int64, name string) (*model.RankingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierror.ValidationError("El nombre del ranking es obligatorio.",
			apierror.FieldError{Field: "nombre", Message: "is required"})
	}
	if len(name) > MaxRankingNameLength {
		return nil, apierror.ValidationError(fmt.Sprintf("El nombre del ranking admite como máximo %d caracteres.", MaxRankingNameLength),
			apierror.FieldError{Field: "nombre", Message: fmt.Sprintf("must be at most %d characters", MaxRankingNameLength)})
	}

	list := &model.RankingList{
		OwnerID: ownerID,
		Name:    name,
		Items:   model.TiersOf(model.NewTierAssignment()),
	}
	if _, err := s.rankings.CreateRanking(ctx, list); err != nil {
		return nil, err
	}

	slog.Info("ranking created", "ranking_id", list.ID, "owner_id", ownerID)
	return list, nil
}

// loadOwned returns the list when it exists and belongs to requesterID.
// A foreign list is reported as missing.
func (s *RankingService) loadOwned(ctx context.Context, listID, requesterID int64) (*model.RankingList, error) {
	list, err := s.rankings.GetRanking(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list == nil || list.OwnerID != requesterID {
		return nil, errRankingNotFound
	}
	return list, nil
}

func (s *RankingService) save(ctx context.Context, list *model.RankingList, a model.TierAssignment) error {
	if err := s.rankings.SaveRankingTiers(ctx, list.ID, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errRankingNotFound
		}
		return err
	}
	list.Items = model.TiersOf(a)
	return nil
}

// AddItem places itemID at the end of the unranked tier. It reports false
// without writing when the item already sits in any tier.
func (s *RankingService) AddItem(ctx context.Context, listID, requesterID, itemID int64) (bool, error) {
	list, err := s.loadOwned(ctx, listID, requesterID)
	if err != nil {
		return false, err
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, apierror.NotFound("item not found")
	}

	a, _ := list.Items.Assignment()
	if _, present := a.Find(itemID); present {
		return false, nil
	}
	a.Append(model.TierUnranked, itemID)

	if err := s.save(ctx, list, a); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveItem drops the first occurrence of itemID, scanning tiers in order.
// It reports false without writing when the item is absent.
func (s *RankingService) RemoveItem(ctx context.Context, listID, requesterID, itemID int64) (bool, error) {
	list, err := s.loadOwned(ctx, listID, requesterID)
	if err != nil {
		return false, err
	}

	a, _ := list.Items.Assignment()
	if !a.Remove(itemID) {
		return false, nil
	}

	if err := s.save(ctx, list, a); err != nil {
		return false, err
	}
	return true, nil
}

// ReplaceTiers overwrites the whole assignment with raw, the decoded tier
// map of a reorder request. Tiers absent from raw become empty.
func (s *RankingService) ReplaceTiers(ctx context.Context, listID, requesterID int64, raw map[string][]interface{}) error {
	list, err := s.rankings.GetRanking(ctx, listID)
	if err != nil {
		return err
	}
	if list == nil {
		return errRankingNotFound
	}
	if list.OwnerID != requesterID {
		return apierror.Forbidden("you do not own this ranking")
	}

	a, err := ParseTiers(raw)
	if err != nil {
		return err
	}
	return s.save(ctx, list, a)
}

// ParseTiers converts a decoded tier map to an assignment. Identifiers may
// be JSON numbers or numeric strings. Unknown tier labels, non-integer
// identifiers and identifiers listed twice are rejected.
func ParseTiers(raw map[string][]interface{}) (model.TierAssignment, error) {
	labels := make([]string, 0, len(raw))
	for label := range raw {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	a := model.NewTierAssignment()
	seen := make(map[int64]model.Tier)
	for _, label := range labels {
		tier, ok := model.ParseTier(label)
		if !ok {
			return nil, apierror.ValidationError(fmt.Sprintf("unknown tier %q", label))
		}
		for _, v := range raw[label] {
			id, err := coerceID(v)
			if err != nil {
				return nil, apierror.ValidationError(fmt.Sprintf("invalid item id %v in tier %s: %v", v, label, err))
			}
			if prev, dup := seen[id]; dup {
				return nil, apierror.ValidationError(fmt.Sprintf("item %d appears in tiers %s and %s", id, prev, tier))
			}
			seen[id] = tier
			a.Append(tier, id)
		}
	}
	return a, nil
}

func coerceID(v interface{}) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		if id, err := x.Int64(); err == nil {
			return id, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, errors.New("not a number")
		}
		return floatID(f)
	case float64:
		return floatID(x)
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, errors.New("not an integer")
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func floatID(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return 0, errors.New("not an integer")
	}
	return int64(f), nil
}

// DeleteList permanently removes a list. Only the owner may delete it.
func (s *RankingService) DeleteList(ctx context.Context, listID, requesterID int64) error {
	list, err := s.rankings.GetRanking(ctx, listID)
	if err != nil {
		return err
	}
	if list == nil {
		return errRankingNotFound
	}
	if list.OwnerID != requesterID {
		return apierror.Forbidden("you do not own this ranking")
	}

	if err := s.rankings.DeleteRanking(ctx, listID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errRankingNotFound
		}
		return err
	}
	slog.Info("ranking deleted", "ranking_id", listID, "owner_id", requesterID)
	return nil
}

// ResolveForDisplay maps each tier's ids to catalog items in stored order,
// dropping ids that no longer resolve. The list itself is not modified.
func (s *RankingService) ResolveForDisplay(ctx context.Context, list *model.RankingList) ([]model.ResolvedTier, error) {
	a, _ := list.Items.Assignment()

	ids := make([]int64, 0, a.Count())
	for _, t := range model.TierOrder {
		ids = append(ids, a[t]...)
	}
	found, err := s.items.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	resolved := make([]model.ResolvedTier, 0, len(model.TierOrder))
	for _, t := range model.TierOrder {
		rt := model.ResolvedTier{Tier: t, Items: make([]model.Item, 0, len(a[t]))}
		for _, id := range a[t] {
			if it, ok := found[id]; ok {
				rt.Items = append(rt.Items, it)
			}
		}
		resolved = append(resolved, rt)
	}
	return resolved, nil
}

// LoadForDisplay loads an owned list, upgrades and persists a legacy flat
// list, and resolves it against the catalog.
func (s *RankingService) LoadForDisplay(ctx context.Context, listID, requesterID int64) (*model.RankingView, error) {
	list, err := s.loadOwned(ctx, listID, requesterID)
	if err != nil {
		return nil, err
	}

	if a, migrated := list.Items.Assignment(); migrated {
		if err := s.save(ctx, list, a); err != nil {
			return nil, err
		}
		slog.Info("ranking upgraded to tier format", "ranking_id", list.ID, "items", a.Count())
	}

	tiers, err := s.ResolveForDisplay(ctx, list)
	if err != nil {
		return nil, err
	}
	return &model.RankingView{List: *list, Tiers: tiers}, nil
}

// ListForOwner returns the owner's lists, newest first.
func (s *RankingService) ListForOwner(ctx context.Context, ownerID int64) ([]model.RankingSummary, error) {
	lists, err := s.rankings.ListRankingsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.RankingSummary, 0, len(lists))
	for _, l := range lists {
		a, _ := l.Items.Assignment()
		summaries = append(summaries, model.RankingSummary{
			ID:        l.ID,
			Name:      l.Name,
			ItemCount: a.Count(),
			CreatedAt: l.CreatedAt,
		})
	}
	return summaries, nil
}
