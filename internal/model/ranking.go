package model

import "time"

// Tier is a tier-list bucket label.
type Tier string

const (
	TierS        Tier = "S"
	TierA        Tier = "A"
	TierB        Tier = "B"
	TierC        Tier = "C"
	TierD        Tier = "D"
	TierUnranked Tier = "unranked"
)

// TierOrder is the fixed display and scan order of tiers.
var TierOrder = []Tier{TierS, TierA, TierB, TierC, TierD, TierUnranked}

// ParseTier maps a label to a Tier.
func ParseTier(label string) (Tier, bool) {
	for _, t := range TierOrder {
		if string(t) == label {
			return t, true
		}
	}
	return "", false
}

// TierAssignment maps each tier to its ordered item ids. An item id appears
// in at most one tier.
type TierAssignment map[Tier][]int64

// NewTierAssignment returns an assignment with every tier present and empty.
func NewTierAssignment() TierAssignment {
	a := make(TierAssignment, len(TierOrder))
	for _, t := range TierOrder {
		a[t] = []int64{}
	}
	return a
}

// Find returns the tier holding id, scanning in TierOrder.
func (a TierAssignment) Find(id int64) (Tier, bool) {
	for _, t := range TierOrder {
		for _, v := range a[t] {
			if v == id {
				return t, true
			}
		}
	}
	return "", false
}

// Append adds id to the end of tier t.
func (a TierAssignment) Append(t Tier, id int64) {
	a[t] = append(a[t], id)
}

// Remove deletes the first occurrence of id, scanning in TierOrder.
func (a TierAssignment) Remove(id int64) bool {
	for _, t := range TierOrder {
		ids := a[t]
		for i, v := range ids {
			if v == id {
				a[t] = append(ids[:i:i], ids[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Count returns the number of placed items.
func (a TierAssignment) Count() int {
	n := 0
	for _, t := range TierOrder {
		n += len(a[t])
	}
	return n
}

// TierFormat tags how a ranking's items are stored.
type TierFormat string

const (
	// FormatTiers is the current per-tier mapping.
	FormatTiers TierFormat = "tiers"
	// FormatFlat is the legacy single ordered sequence.
	FormatFlat TierFormat = "flat"
)

// StoredTiers is the at-rest form of a ranking's items. Exactly one of
// Flat or Tiers is meaningful, selected by Format.
type StoredTiers struct {
	Format TierFormat
	Flat   []int64
	Tiers  TierAssignment
}

// TiersOf wraps an assignment in the current storage format.
func TiersOf(a TierAssignment) StoredTiers {
	return StoredTiers{Format: FormatTiers, Tiers: a}
}

// FlatOf wraps a legacy flat sequence.
func FlatOf(ids []int64) StoredTiers {
	return StoredTiers{Format: FormatFlat, Flat: ids}
}

// Assignment returns the tier assignment, upgrading a legacy flat sequence
// by placing every item in unranked. migrated is true when an upgrade
// happened and the result should be persisted.
func (s StoredTiers) Assignment() (a TierAssignment, migrated bool) {
	if s.Format == FormatFlat {
		a = NewTierAssignment()
		for _, id := range s.Flat {
			if _, dup := a.Find(id); !dup {
				a.Append(TierUnranked, id)
			}
		}
		return a, true
	}
	a = NewTierAssignment()
	for _, t := range TierOrder {
		a[t] = append(a[t], s.Tiers[t]...)
	}
	return a, false
}

// RankingList is a user's tier list.
type RankingList struct {
	ID        int64       `json:"id"`
	OwnerID   int64       `json:"owner_id"`
	Name      string      `json:"name"`
	Items     StoredTiers `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ResolvedTier is one tier with ids resolved to catalog items.
type ResolvedTier struct {
	Tier  Tier   `json:"tier"`
	Items []Item `json:"items"`
}

// RankingView is a ranking ready for display.
type RankingView struct {
	List  RankingList    `json:"list"`
	Tiers []ResolvedTier `json:"tiers"`
}

// RankingSummary is a lightweight entry for the owner's list page.
type RankingSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
}
