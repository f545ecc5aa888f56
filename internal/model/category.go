package model

// Category groups catalog items under a coded, named heading.
type Category struct {
	ID          int64   `json:"id" bson:"_id"`
	Code        int     `json:"code" bson:"code"`
	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description" bson:"description"`
	ItemIDs     []int64 `json:"item_ids" bson:"moviles"`
}

// CategoryView is a category with its item ids resolved against the catalog.
type CategoryView struct {
	Category
	Items []Item `json:"items"`
}
