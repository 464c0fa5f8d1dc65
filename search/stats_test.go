package search

import (
	"context"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rushteam/estaterec/core"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Summary
	}{
		{"empty", nil, Summary{}},
		{"single has no std", []float64{5}, Summary{Mean: ptr(5), Max: ptr(5), Min: ptr(5)}},
		{"sample std", []float64{2, 4, 4, 4, 5, 5, 7, 9}, Summary{Mean: ptr(5), Max: ptr(9), Min: ptr(2), Std: ptr(2.14)}},
		{"rounds", []float64{1, 2, 2}, Summary{Mean: ptr(1.67), Max: ptr(2), Min: ptr(1), Std: ptr(0.58)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.values)
			checkField(t, "mean", got.Mean, tt.want.Mean)
			checkField(t, "max", got.Max, tt.want.Max)
			checkField(t, "min", got.Min, tt.want.Min)
			checkField(t, "std", got.Std, tt.want.Std)
		})
	}
}

func checkField(t *testing.T, name string, got, want *float64) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", name, got, want)
	case *got != *want:
		t.Errorf("%s = %v, want %v", name, *got, *want)
	}
}

func TestGroup(t *testing.T) {
	scored := []Scored{
		{Score: 0.9, Listing: core.Listing{ID: "p1", Region: "North", Price: ptr(100), Rooms: ptr(2)}},
		{Score: 0.5, Listing: core.Listing{ID: "p2", Region: "North", Price: ptr(300), Rooms: ptr(4)}},
		{Score: 0.4, Listing: core.Listing{ID: "p3", Region: "South", Price: ptr(200)}},
		{Score: 0.1, Listing: core.Listing{ID: "p4", Region: "South", Price: ptr(9999)}},
		{Score: 0.8, Listing: core.Listing{ID: "p5", Price: ptr(7777)}},
	}

	stats := Group(scored, DefaultThreshold, DefaultFields)

	price := stats[core.FieldPrice]
	if len(price) != 3 {
		t.Fatalf("price rows = %v, want North, South, All", price)
	}
	checkField(t, "North mean", price["North"].Mean, ptr(200))
	checkField(t, "North std", price["North"].Std, ptr(141.42))
	checkField(t, "South std", price["South"].Std, nil)
	checkField(t, "South max", price["South"].Max, ptr(200))
	checkField(t, "All mean", price[AllRegions].Mean, ptr(200))
	checkField(t, "All max", price[AllRegions].Max, ptr(300))

	rooms := stats[core.FieldRooms]
	if _, ok := rooms["South"]; ok {
		t.Error("South has no rooms values and should be absent")
	}
	checkField(t, "rooms All min", rooms[AllRegions].Min, ptr(2))

	if land := stats[core.FieldLandsize]; land == nil || len(land) != 0 {
		t.Errorf("landsize = %v, want empty map", land)
	}
}

func TestGroup_RegionNamedAllDoesNotOverwriteSummary(t *testing.T) {
	scored := []Scored{
		{Score: 0.9, Listing: core.Listing{ID: "p1", Region: "North", Price: ptr(100)}},
		{Score: 0.9, Listing: core.Listing{ID: "p2", Region: "South", Price: ptr(300)}},
		{Score: 0.9, Listing: core.Listing{ID: "p3", Region: AllRegions, Price: ptr(5)}},
	}

	price := Group(scored, DefaultThreshold, []string{core.FieldPrice})[core.FieldPrice]
	if len(price) != 3 {
		t.Fatalf("price rows = %v, want North, South, All", price)
	}
	checkField(t, "All min", price[AllRegions].Min, ptr(100))
	checkField(t, "All mean", price[AllRegions].Mean, ptr(200))
	checkField(t, "All std", price[AllRegions].Std, ptr(141.42))
}

func TestSummary_JSONNull(t *testing.T) {
	b, err := json.Marshal(Summarize([]float64{3}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"mean":3,"max":3,"min":3,"std":null}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

func TestAggregator_Threshold(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"query":    {1, 0},
		"relevant": {1, 0},
		"orthogon": {0, 1},
	}}
	corpus := []core.Listing{
		{ID: "p1", Description: "relevant", Region: "East", Price: ptr(10)},
		{ID: "p2", Description: "orthogon", Region: "East", Price: ptr(1000)},
	}

	agg := NewAggregator(NewRanker(emb))
	stats, err := agg.Aggregate(context.Background(), "query", corpus)
	if err != nil {
		t.Fatal(err)
	}
	checkField(t, "East max", stats[core.FieldPrice]["East"].Max, ptr(10))

	agg = NewAggregator(NewRanker(emb), WithThreshold(-1), WithFields(core.FieldPrice))
	stats, err = agg.Aggregate(context.Background(), "query", corpus)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Errorf("fields = %d, want 1", len(stats))
	}
	checkField(t, "East max", stats[core.FieldPrice]["East"].Max, ptr(1000))
}
