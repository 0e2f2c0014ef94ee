package zonal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/statgis/pkg/engine/local"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/paulmach/orb"
)

// 3x3 grid, unit pixels, upper-left corner at (0, 3)
func collection(t *testing.T) *raster.Collection {
	t.Helper()
	g := raster.NewGrid(3, 3, 0, 3, 1)
	var items []*raster.Raster
	for i, day := range []int{3, 1, 2} {
		base := float64(i * 10)
		a := make([]float64, 9)
		b := make([]float64, 9)
		for p := range a {
			a[p] = base + float64(p)
			b[p] = 1
		}
		r, err := raster.FromBands(g, time.Date(2023, 5, day, 12, 0, 0, 0, time.UTC), []string{"a", "b"}, map[string][]float64{"a": a, "b": b})
		if err != nil {
			t.Fatal(err)
		}
		items = append(items, r)
	}
	return raster.NewCollection(items...)
}

// covers the left column: pixels 0, 3, 6
var leftColumn = orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 3}, {0, 3}, {0, 0}}}

func TestReduceCollection(t *testing.T) {
	c := collection(t)

	table, err := ReduceCollection(context.Background(), local.New(0), c, leftColumn, Options{Bands: raster.NamedBands("a")})
	if err != nil {
		t.Fatal(err)
	}

	expectedColumns := []string{"a_mean", "a_stdDev", "a_max", "a_min", "a_count"}
	if strings.Join(table.Columns, ",") != strings.Join(expectedColumns, ",") {
		t.Errorf("columns = %v, expected %v", table.Columns, expectedColumns)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, expected 3", len(table.Rows))
	}

	// rows stay in collection order
	for i, date := range []string{"2023-05-03", "2023-05-01", "2023-05-02"} {
		if table.Rows[i].Date != date {
			t.Errorf("row %d date = %s, expected %s", i, table.Rows[i].Date, date)
		}
	}

	row := table.Rows[1]
	if got := row.Get("a_mean"); got != 13 {
		t.Errorf("a_mean = %v, expected 13", got)
	}
	if got := row.Get("a_min"); got != 10 {
		t.Errorf("a_min = %v, expected 10", got)
	}
	if got := row.Get("a_count"); got != 3 {
		t.Errorf("a_count = %v, expected 3", got)
	}
	if got := row.Get("a_stdDev"); math.Abs(got-math.Sqrt(6)) > 1e-12 {
		t.Errorf("a_stdDev = %v, expected sqrt(6)", got)
	}
}

func TestReduceCollectionKeepsEmptyRows(t *testing.T) {
	c := collection(t)
	nowhere := orb.Polygon{orb.Ring{{10, 10}, {11, 10}, {11, 11}, {10, 11}, {10, 10}}}

	table, err := ReduceCollection(context.Background(), local.New(0), c, nowhere, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != c.Len() {
		t.Fatalf("rows = %d, expected %d", len(table.Rows), c.Len())
	}
	for _, r := range table.Rows {
		if !math.IsNaN(r.Get("a_mean")) {
			t.Errorf("a_mean = %v, expected NaN", r.Get("a_mean"))
		}
		if r.Get("b_count") != 0 {
			t.Errorf("b_count = %v, expected 0", r.Get("b_count"))
		}
	}

	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("marshal table with NaN: %v", err)
	}
	if !bytes.Contains(data, []byte(`"a_mean":null`)) {
		t.Errorf("NaN should marshal to null: %s", data)
	}

	var back Table
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(back.Rows[0].Get("a_mean")) {
		t.Error("null should decode to NaN")
	}
}

func TestReduceCollectionBy(t *testing.T) {
	c := collection(t)

	tests := []struct {
		name     string
		reducer  string
		expected float64
		wantErr  bool
	}{
		{name: "max", reducer: "max", expected: 16},
		{name: "count", reducer: "count", expected: 3},
		{name: "stdDev", reducer: "stdDev", expected: math.Sqrt(6)},
		{name: "unsupported", reducer: "median", wantErr: true},
		{name: "linearFit is not a region statistic", reducer: "linearFit", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReduceCollectionBy(context.Background(), local.New(0), c, leftColumn, tt.reducer, Options{})
			if tt.wantErr {
				if !errors.Is(err, reducer.ErrUnsupportedReducer) {
					t.Errorf("error = %v, expected ErrUnsupportedReducer", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(table.Columns, ",") != "a,b" {
				t.Errorf("columns = %v, expected [a b]", table.Columns)
			}
			if got := table.Rows[1].Get("a"); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("a = %v, expected %v", got, tt.expected)
			}
			if table.Rows[1].Date != "2023-05-01" {
				t.Errorf("date = %s", table.Rows[1].Date)
			}
		})
	}
}

func TestReduceImage(t *testing.T) {
	r := collection(t).At(0)

	table, err := ReduceImage(context.Background(), local.New(0), r, nil, Options{Reducers: []reducer.Kind{reducer.Sum}})
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("rows = %d, expected 1", len(table.Rows))
	}
	if got := table.Rows[0].Get("a_sum"); got != 36 {
		t.Errorf("a_sum = %v, expected 36", got)
	}
	if got := table.Rows[0].Get("b_sum"); got != 9 {
		t.Errorf("b_sum = %v, expected 9", got)
	}

	if _, err := ReduceImage(context.Background(), local.New(0), r, nil, Options{Bands: raster.NamedBands("nir")}); !raster.IsMissingBand(err) {
		t.Errorf("error = %v, expected missing band", err)
	}
}

func TestWriteCSV(t *testing.T) {
	table := &Table{
		Columns: []string{"a_mean", "a_count"},
		Rows: []Row{
			{Date: "2023-05-01", Values: map[string]float64{"a_mean": 1.5, "a_count": 2}},
			{Date: "2023-05-02", Values: map[string]float64{"a_mean": math.NaN(), "a_count": 0}},
		},
	}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	expected := "date,a_mean,a_count\n2023-05-01,1.5,2\n2023-05-02,,0\n"
	if buf.String() != expected {
		t.Errorf("csv = %q, expected %q", buf.String(), expected)
	}
}
