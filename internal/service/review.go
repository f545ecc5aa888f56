package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/pkg/apierror"
)

// MaxCommentLength bounds a review comment.
const MaxCommentLength = 2000

// ReviewService records and lists item reviews.
type ReviewService struct {
	reviews repository.ReviewRepository
	items   repository.ItemRepository
	cache   cache.Cache
	now     func() time.Time
}

// NewReviewService creates a review service. c may be nil.
func NewReviewService(reviews repository.ReviewRepository, items repository.ItemRepository, c cache.Cache) *ReviewService {
	return &ReviewService{reviews: reviews, items: items, cache: c, now: time.Now}
}

// Rate stores the user's review of an item, replacing an earlier one.
func (s *ReviewService) Rate(ctx context.Context, userEmail string, itemID int64, score int, comment string) (*model.Review, error) {
	comment = strings.TrimSpace(comment)
	if score < model.MinScore || score > model.MaxScore {
		return nil, apierror.ValidationError(
			fmt.Sprintf("La puntuación debe estar entre %d y %d.", model.MinScore, model.MaxScore),
			apierror.FieldError{Field: "puntuacion", Message: "out of range"})
	}
	if len(comment) > MaxCommentLength {
		return nil, apierror.ValidationError(fmt.Sprintf("El comentario admite como máximo %d caracteres.", MaxCommentLength),
			apierror.FieldError{Field: "comentario", Message: fmt.Sprintf("must be at most %d characters", MaxCommentLength)})
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apierror.NotFound("item not found")
	}

	review := &model.Review{
		ItemID:    item.ID,
		ItemName:  item.Name,
		UserEmail: userEmail,
		Date:      s.now().UTC(),
		Score:     score,
		Comment:   comment,
	}
	if _, err := s.reviews.UpsertReview(ctx, review); err != nil {
		return nil, err
	}

	invalidateStats(ctx, s.cache)
	return review, nil
}

// ItemReviews returns an item's reviews, newest first, with their aggregate.
func (s *ReviewService) ItemReviews(ctx context.Context, item *model.Item) ([]model.Review, model.ItemScore, error) {
	reviews, err := s.reviews.ListReviewsByItem(ctx, item.ID)
	if err != nil {
		return nil, model.ItemScore{}, err
	}

	score := model.ItemScore{ItemID: item.ID, ItemName: item.Name, Count: len(reviews)}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Score
		}
		score.Average = round2(float64(sum) / float64(len(reviews)))
	}
	return reviews, score, nil
}

// ReviewOf returns the review userEmail left among reviews, if any.
func ReviewOf(reviews []model.Review, userEmail string) *model.Review {
	for i := range reviews {
		if reviews[i].UserEmail == userEmail {
			return &reviews[i]
		}
	}
	return nil
}

// Log returns a 1-based page of all reviews, newest first, and the total.
func (s *ReviewService) Log(ctx context.Context, page, pageSize int) ([]model.Review, int64, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	return s.reviews.ListReviews(ctx, pageSize, (clampPage(page)-1)*pageSize)
}
