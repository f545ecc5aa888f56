package model

import "time"

// ItemScore aggregates the reviews of one item.
type ItemScore struct {
	ItemID   int64   `json:"item_id"`
	ItemName string  `json:"item_name"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

// CategoryScore aggregates the reviews of all items in a category.
type CategoryScore struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Average    float64 `json:"average"`
}

// Totals counts records across both stores.
type Totals struct {
	Users      int64 `json:"users"`
	Items      int64 `json:"items"`
	Categories int64 `json:"categories"`
	Reviews    int64 `json:"reviews"`
	Rankings   int64 `json:"rankings"`
}

// Statistics is the global statistics snapshot shown to administrators.
type Statistics struct {
	Totals       Totals          `json:"totals"`
	OverallAvg   float64         `json:"overall_average"`
	TopRated     []ItemScore     `json:"top_rated"`
	MostReviewed []ItemScore     `json:"most_reviewed"`
	Distribution [MaxScore]int   `json:"distribution"`
	ByCategory   []CategoryScore `json:"by_category"`
	GeneratedAt  time.Time       `json:"generated_at"`
}
