// store_test.go provides shared fixtures for the store integration tests.
// Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// testTree is an isolated site with its own root page.
type testTree struct {
	Site  *models.Site
	Root  *models.Page
	Pages *PageStore
	Sites *SiteStore
}

// newTestTree creates a root page and a site for it. Everything below the
// root is removed when the test finishes.
func newTestTree(t *testing.T, db *sql.DB) *testTree {
	t.Helper()
	ctx := context.Background()

	pages := NewPageStore(db)
	sites := NewSiteStore(db, 0)

	var root *models.Page
	err := RunInTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		root, err = pages.InsertRoot(ctx, tx, &models.Page{
			Title: "Test root", Slug: "root", Kind: models.SimplePageKind, Live: true,
		})
		return err
	})
	if err != nil {
		t.Fatalf("insert root: %v", err)
	}

	site, err := sites.Create(ctx, &models.Site{
		Hostname:   "test-" + uuid.NewString()[:8] + ".local",
		SiteName:   "Test",
		RootPageID: root.ID,
	})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	t.Cleanup(func() {
		sites.Delete(ctx, site.ID)
		pages.Delete(ctx, root.ID)
	})

	return &testTree{Site: site, Root: root, Pages: pages, Sites: sites}
}

// addPage inserts a page of kind below parent, with a review row when the
// kind is reviewable.
func (tt *testTree) addPage(t *testing.T, db *sql.DB, parent uuid.UUID, title, kind string, f models.ReviewFields) *models.Page {
	t.Helper()
	ctx := context.Background()

	var page *models.Page
	err := RunInTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		page, err = tt.Pages.InsertChild(ctx, tx, parent, &models.Page{
			Title: title, Slug: title, Kind: kind, Live: true,
		})
		if err != nil {
			return err
		}
		if d, ok := models.LookupBuiltinKind(kind); ok {
			return NewReviewStore(db).Insert(ctx, tx, d, page.ID, f)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add page %q: %v", title, err)
	}
	return page
}
