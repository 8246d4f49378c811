package store

import (
	"context"
	"testing"
	"time"

	"reviewd/internal/models"
	"reviewd/internal/testdb"
)

func TestRevisionStoreCreateAndFind(t *testing.T) {
	db := testdb.Open(t)
	tree := newTestTree(t, db)
	revs := NewRevisionStore(db)
	ctx := context.Background()

	p := tree.addPage(t, db, tree.Root.ID, "policy", models.PolicyPageKind.Name, models.ReviewFields{})

	rev, err := revs.Create(ctx, &models.PageRevision{
		PageID: p.ID,
		Title:  "Old title",
		Slug:   "old-title",
		Review: models.ReviewFields{
			LastReviewDate:    date(2023, time.May, 1),
			CurrentVersionRef: "v0",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := revs.FindByID(ctx, rev.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found == nil {
		t.Fatal("revision not found")
	}
	if found.Title != "Old title" || found.Review.CurrentVersionRef != "v0" {
		t.Errorf("revision = %+v", found)
	}
	if found.Review.LastReviewDate == nil || !found.Review.LastReviewDate.Equal(*date(2023, time.May, 1)) {
		t.Errorf("snapshot last_review_date = %v", found.Review.LastReviewDate)
	}

	list, err := revs.ListByPageID(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListByPageID: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d revisions, want 1", len(list))
	}
}
