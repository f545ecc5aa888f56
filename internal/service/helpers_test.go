package service

import (
	"context"
	"testing"

	"safarank-api/internal/cache"
	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/pkg/apierror"
)

type testStores struct {
	catalog *repository.SQLiteCatalogRepository
	users   *repository.SQLUserRepository
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	catalog, err := repository.NewSQLiteCatalogRepository(":memory:")
	if err != nil {
		t.Fatalf("catalog store: %v", err)
	}
	users, err := repository.OpenUserRepository(repository.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("user store: %v", err)
	}
	t.Cleanup(func() {
		catalog.Close()
		users.Close()
	})
	return testStores{catalog: catalog, users: users}
}

// seedItems inserts items with the given names and returns their ids in order.
func seedItems(t *testing.T, repo repository.ItemRepository, names ...string) []int64 {
	t.Helper()
	items := make([]model.Item, len(names))
	for i, n := range names {
		items[i] = model.Item{Name: n}
	}
	if _, err := repo.BulkCreateItems(context.Background(), items); err != nil {
		t.Fatalf("seed items: %v", err)
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apierror.HasCode(err, code) {
		t.Fatalf("err = %v, want code %s", err, code)
	}
}

// cached reports whether key currently holds a value.
func cached(c cache.Cache, key string) bool {
	_, err := c.Get(context.Background(), key)
	return err == nil
}
