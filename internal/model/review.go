package model

import "time"

// Score bounds for a review.
const (
	MinScore = 1
	MaxScore = 5
)

// Review is one user's rating of a catalog item.
type Review struct {
	ID        int64     `json:"id" bson:"_id"`
	ItemID    int64     `json:"item_id" bson:"item_id"`
	ItemName  string    `json:"item_name" bson:"movil_name"`
	UserEmail string    `json:"user_email" bson:"user_email"`
	Date      time.Time `json:"date" bson:"fecha"`
	Score     int       `json:"score" bson:"puntuacion"`
	Comment   string    `json:"comment" bson:"comentario"`
}
