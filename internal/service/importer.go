package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"safarank-api/internal/model"
	"safarank-api/pkg/apierror"
)

const (
	importBatchSize = 500
	maxImportErrors = 20
)

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// csvColumns maps accepted header names to item fields.
var csvColumns = map[string]string{
	"name":            "name",
	"nombre":          "name",
	"model":           "name",
	"ratings":         "ratings",
	"rating":          "ratings",
	"price":           "price",
	"precio":          "price",
	"imgurl":          "imgURL",
	"img_url":         "imgURL",
	"image":           "imgURL",
	"image_url":       "imgURL",
	"camera":          "camera",
	"display":         "display",
	"battery":         "battery",
	"storage":         "storage",
	"ram":             "ram",
	"processor":       "processor",
	"android_version": "android_version",
	"android":         "android_version",
}

// Import reads phone listings from a CSV with a header row and stores the
// valid rows. Invalid rows are skipped and reported.
func (s *CatalogService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apierror.ValidationError("El archivo CSV está vacío.")
	}
	if err != nil {
		return nil, apierror.ValidationError(fmt.Sprintf("No se pudo leer la cabecera del CSV: %v", err))
	}

	index := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := csvColumns[key]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, apierror.ValidationError("El archivo CSV no tiene columna de nombre.")
	}

	result := &ImportResult{}
	batch := make([]model.Item, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.items.BulkCreateItems(ctx, batch)
		if err != nil {
			return err
		}
		result.Imported += n
		batch = batch[:0]
		return nil
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.skip(fmt.Sprintf("line %d: %v", line, perr.Err))
				continue
			}
			return nil, err
		}

		item, err := itemFromRecord(record, index)
		if err == nil {
			err = ValidateItem(&item)
		}
		if err != nil {
			result.skip(fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		batch = append(batch, item)
		if len(batch) == importBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if result.Imported > 0 {
		invalidateStats(ctx, s.cache)
	}
	slog.Info("catalog import finished", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

func (r *ImportResult) skip(msg string) {
	r.Skipped++
	if len(r.Errors) < maxImportErrors {
		r.Errors = append(r.Errors, msg)
	}
}

func itemFromRecord(record []string, index map[string]int) (model.Item, error) {
	get := func(field string) string {
		i, ok := index[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var item model.Item
	var err error
	item.Name = get("name")
	item.ImageURL = get("imgURL")
	item.Display = get("display")
	item.Processor = get("processor")

	if item.Ratings, err = parseLooseFloat(get("ratings")); err != nil {
		return item, fmt.Errorf("ratings: %w", err)
	}
	ints := []struct {
		field string
		dst   *int
	}{
		{"price", &item.Price},
		{"camera", &item.Camera},
		{"battery", &item.Battery},
		{"storage", &item.Storage},
		{"ram", &item.RAM},
		{"android_version", &item.AndroidVersion},
	}
	for _, f := range ints {
		v, err := parseLooseFloat(get(f.field))
		if err != nil {
			return item, fmt.Errorf("%s: %w", f.field, err)
		}
		*f.dst = int(v)
	}
	return item, nil
}

// parseLooseFloat reads the first number in s, ignoring currency symbols,
// units and thousands separators. Empty input is zero.
func parseLooseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}

	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	end := start
	dot := false
	for end < len(s) {
		c := s[end]
		if c == '.' && !dot {
			dot = true
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(s[start:end], "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if start > 0 && s[start-1] == '-' {
		v = -v
	}
	return v, nil
}
