package model

// Item is a phone listing in the catalog.
type Item struct {
	ID             int64   `json:"id" bson:"_id"`
	Name           string  `json:"name" bson:"name"`
	Ratings        float64 `json:"ratings" bson:"ratings"`
	Price          int     `json:"price" bson:"price"`
	ImageURL       string  `json:"img_url" bson:"imgURL"`
	Camera         int     `json:"camera" bson:"camera"`
	Display        string  `json:"display" bson:"display"`
	Battery        int     `json:"battery" bson:"battery"`
	Storage        int     `json:"storage" bson:"storage"`
	RAM            int     `json:"ram" bson:"ram"`
	Processor      string  `json:"processor" bson:"processor"`
	AndroidVersion int     `json:"android_version" bson:"android_version"`
}

// Defaults used when a listing omits a field.
const (
	DefaultDisplay        = "N/A"
	DefaultProcessor      = "N/A"
	DefaultAndroidVersion = 12
)

// ApplyDefaults fills empty descriptive fields.
func (i *Item) ApplyDefaults() {
	if i.Display == "" {
		i.Display = DefaultDisplay
	}
	if i.Processor == "" {
		i.Processor = DefaultProcessor
	}
	if i.AndroidVersion == 0 {
		i.AndroidVersion = DefaultAndroidVersion
	}
}

// ItemSort selects the catalog ordering.
type ItemSort string

const (
	SortByName   ItemSort = "name"
	SortByPrice  ItemSort = "price"
	SortByRating ItemSort = "rating"
)

// ItemFilter narrows and pages a catalog listing.
type ItemFilter struct {
	Query  string
	Sort   ItemSort
	Offset int
	Limit  int
}
