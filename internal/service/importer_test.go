package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/model"
	"safarank-api/pkg/apierror"
)

const sampleCSV = "\ufeffName,Ratings,Price,imgURL,Camera,display,Battery,Storage,RAM,Processor,Android_version\n" +
	"Mi 11,4.5,\"₹ 29,999\",https://img/mi11.jpg,108 MP,6.81 inches,4600 mAh,128 GB,8 GB,Snapdragon 888,11\n" +
	"Redmi 9,4.1,8999,,13,6.53,5020,64,4,Helio G80,\n" +
	",4.0,100,,,,,,,,\n" +
	"Poco F5,four,100,,,,,,,,\n" +
	"Redmi Note 12,4.2,15999,,50,,5000,128,6,,12\n"

func TestImport(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	c := cache.NewMemoryCache()
	svc := NewCatalogService(stores.catalog, stores.catalog, c, 0)
	c.Set(ctx, StatsCacheKey, []byte("{}"), time.Hour)

	res, err := svc.Import(ctx, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 3 || res.Skipped != 2 {
		t.Errorf("result = %+v, want 3 imported 2 skipped", res)
	}
	if len(res.Errors) != 2 || !strings.HasPrefix(res.Errors[0], "line 4:") || !strings.HasPrefix(res.Errors[1], "line 5:") {
		t.Errorf("errors = %q", res.Errors)
	}
	if cached(c, StatsCacheKey) {
		t.Error("import did not invalidate statistics")
	}

	items, err := svc.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	byName := make(map[string]model.Item)
	for _, it := range items {
		byName[it.Name] = it
	}

	mi := byName["Mi 11"]
	if mi.Price != 29999 || mi.Camera != 108 || mi.Battery != 4600 || mi.RAM != 8 || mi.Ratings != 4.5 {
		t.Errorf("Mi 11 = %+v", mi)
	}
	if mi.Display != "6.81 inches" || mi.AndroidVersion != 11 || mi.ImageURL != "https://img/mi11.jpg" {
		t.Errorf("Mi 11 = %+v", mi)
	}
	redmi := byName["Redmi 9"]
	if redmi.AndroidVersion != model.DefaultAndroidVersion || redmi.Processor != "Helio G80" {
		t.Errorf("Redmi 9 = %+v", redmi)
	}
	if byName["Redmi Note 12"].Processor != model.DefaultProcessor {
		t.Errorf("Redmi Note 12 processor = %q", byName["Redmi Note 12"].Processor)
	}
}

func TestImport_RejectsBadFiles(t *testing.T) {
	stores := newTestStores(t)
	svc := NewCatalogService(stores.catalog, stores.catalog, nil, 0)

	for name, body := range map[string]string{
		"empty":          "",
		"no name column": "price,ratings\n100,4\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), strings.NewReader(body))
			wantCode(t, err, apierror.CodeValidation)
		})
	}
}

func TestParseLooseFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 0, false},
		{"42", 42, false},
		{"4.5", 4.5, false},
		{"₹ 1,299", 1299, false},
		{"128 GB", 128, false},
		{"6.7 inches", 6.7, false},
		{"-3", -3, false},
		{"12.", 12, false},
		{"N/A", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLooseFloat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLooseFloat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLooseFloat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
