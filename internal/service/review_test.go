package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"safarank-api/pkg/apierror"
)

func TestReview_RateReplacesEarlierReview(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	ids := seedItems(t, stores.catalog, "Mi 11")
	svc := NewReviewService(stores.catalog, stores.catalog, nil)

	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	if _, err := svc.Rate(ctx, "ana@example.com", ids[0], 2, "regular"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	clock = clock.Add(time.Hour)
	if _, err := svc.Rate(ctx, "luis@example.com", ids[0], 5, ""); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	clock = clock.Add(time.Hour)
	if _, err := svc.Rate(ctx, "ana@example.com", ids[0], 4, "  mejor de lo que pensaba "); err != nil {
		t.Fatalf("Rate again: %v", err)
	}

	item, _ := stores.catalog.GetItem(ctx, ids[0])
	reviews, score, err := svc.ItemReviews(ctx, item)
	if err != nil {
		t.Fatalf("ItemReviews: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("got %d reviews, want 2", len(reviews))
	}
	if reviews[0].UserEmail != "ana@example.com" || reviews[0].Score != 4 {
		t.Errorf("newest review = %+v", reviews[0])
	}
	if reviews[0].Comment != "mejor de lo que pensaba" {
		t.Errorf("comment = %q", reviews[0].Comment)
	}
	if score.Count != 2 || score.Average != 4.5 {
		t.Errorf("score = %+v", score)
	}

	if mine := ReviewOf(reviews, "luis@example.com"); mine == nil || mine.Score != 5 {
		t.Errorf("ReviewOf = %+v", mine)
	}
	if ReviewOf(reviews, "nadie@example.com") != nil {
		t.Error("ReviewOf found a review for an unknown user")
	}

	page, total, err := svc.Log(ctx, 1, 1)
	if err != nil || total != 2 || len(page) != 1 {
		t.Errorf("Log = %d reviews, total %d, %v", len(page), total, err)
	}
}

func TestReview_RateValidation(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	ids := seedItems(t, stores.catalog, "Mi 11")
	svc := NewReviewService(stores.catalog, stores.catalog, nil)

	for _, score := range []int{0, 6, -1} {
		_, err := svc.Rate(ctx, "a@b.com", ids[0], score, "")
		wantCode(t, err, apierror.CodeValidation)
	}

	_, err := svc.Rate(ctx, "a@b.com", ids[0], 3, strings.Repeat("x", MaxCommentLength+1))
	wantCode(t, err, apierror.CodeValidation)

	_, err = svc.Rate(ctx, "a@b.com", 9999, 3, "")
	wantCode(t, err, apierror.CodeNotFound)
}
