package repository

import (
	"fmt"
	"strings"
)

// OpenCatalogRepository opens the document store named by kind: "sqlite"
// uses path, "mongodb" uses mongoURI and database.
func OpenCatalogRepository(kind, path, mongoURI, database string) (CatalogRepository, error) {
	switch strings.ToLower(kind) {
	case "mongodb", "mongo":
		repo, err := NewMongoDBCatalogRepository(mongoURI, database)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "sqlite", "sqlite3", "":
		repo, err := NewSQLiteCatalogRepository(path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown catalog store type %q", kind)
}
