package raster

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func testRaster(t *testing.T) *Raster {
	t.Helper()
	g := NewGrid(2, 2, 0, 2, 1)
	r, err := FromBands(g, time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), []string{"a", "b"}, map[string][]float64{
		"a": {1, 2, 3, 4},
		"b": {4, 3, 2, 1},
	})
	if err != nil {
		t.Fatalf("FromBands: %v", err)
	}
	return r
}

func TestGridGeometry(t *testing.T) {
	g := NewGrid(4, 3, 100, 50, 10)

	if c := g.Center(0, 0); c != (orb.Point{105, 45}) {
		t.Errorf("Center(0,0) = %v", c)
	}
	col, row, ok := g.Locate(orb.Point{139, 21})
	if !ok || col != 3 || row != 2 {
		t.Errorf("Locate = %d,%d,%v; expected 3,2,true", col, row, ok)
	}
	if _, _, ok := g.Locate(orb.Point{141, 21}); ok {
		t.Error("Locate outside grid reported ok")
	}
	b := g.Bound()
	if b.Min != (orb.Point{100, 20}) || b.Max != (orb.Point{140, 50}) {
		t.Errorf("Bound = %v", b)
	}
}

func TestGridFromMetres(t *testing.T) {
	tests := []struct {
		name     string
		grid     Grid
		metres   float64
		expected float64
	}{
		{name: "projected", grid: NewGrid(10, 10, 500000, 4100000, 30), metres: 30, expected: 30},
		{name: "equator", grid: Grid{Width: 2, Height: 2, OriginX: 0, OriginY: 1, PixelWidth: 1, PixelHeight: 1, Geographic: true}, metres: 111320, expected: 1},
		{name: "sixty north", grid: Grid{Width: 2, Height: 2, OriginX: 0, OriginY: 61, PixelWidth: 1, PixelHeight: 1, Geographic: true}, metres: 111320, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.grid.FromMetres(tt.metres); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("FromMetres(%v) = %v, expected %v", tt.metres, got, tt.expected)
			}
		})
	}
}

func TestSelectMissingBand(t *testing.T) {
	r := testRaster(t)

	_, err := r.Select("a", "nir")
	if err == nil {
		t.Fatal("expected an error selecting a missing band")
	}
	var mb *MissingBandError
	if !errors.As(err, &mb) || mb.Band != "nir" {
		t.Errorf("error = %v, expected MissingBandError for nir", err)
	}
}

func TestWithBandIsImmutable(t *testing.T) {
	r := testRaster(t)
	r2, err := r.WithBand("c", []float64{0, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if r.HasBand("c") {
		t.Error("original raster gained band c")
	}
	if got := r2.Bands(); len(got) != 3 || got[2] != "c" {
		t.Errorf("Bands = %v", got)
	}
	if _, err := r.WithBand("bad", []float64{1}); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestUpdateMaskIsConjunctive(t *testing.T) {
	r := testRaster(t)
	m1 := []bool{true, false, true, true}
	m2 := []bool{true, true, false, true}

	ab, _ := r.UpdateMask(m1)
	ab, _ = ab.UpdateMask(m2)
	ba, _ := r.UpdateMask(m2)
	ba, _ = ba.UpdateMask(m1)
	again, _ := ab.UpdateMask(m1)

	for i := 0; i < 4; i++ {
		if ab.Valid(i) != ba.Valid(i) {
			t.Errorf("pixel %d: order changed validity", i)
		}
		if ab.Valid(i) != again.Valid(i) {
			t.Errorf("pixel %d: reapplying mask changed validity", i)
		}
	}
	if ab.Valid(1) || ab.Valid(2) || !ab.Valid(0) || !ab.Valid(3) {
		t.Errorf("unexpected validity %v %v %v %v", ab.Valid(0), ab.Valid(1), ab.Valid(2), ab.Valid(3))
	}
	if len(ab.Bands()) != 2 || ab.Grid().Size() != 4 {
		t.Error("masking changed the band set or grid")
	}
}

func TestCombinePropagatesInvalid(t *testing.T) {
	r := testRaster(t)
	r, _ = r.UpdateMask([]bool{true, true, true, false})
	r, _ = r.WithBand("z", []float64{0, math.NaN(), 1, 1})

	out, err := r.Combine("ratio", []string{"a", "z"}, func(v []float64) float64 {
		return v[0] / v[1]
	})
	if err != nil {
		t.Fatal(err)
	}
	d, _ := out.Band("ratio")
	if !math.IsNaN(d[0]) {
		t.Errorf("division by zero = %v, expected NaN", d[0])
	}
	if !math.IsNaN(d[1]) {
		t.Errorf("NaN input = %v, expected NaN", d[1])
	}
	if d[2] != 3 {
		t.Errorf("d[2] = %v, expected 3", d[2])
	}
	if !math.IsNaN(d[3]) {
		t.Errorf("masked pixel = %v, expected NaN", d[3])
	}

	if _, err := r.Combine("x", []string{"missing"}, func(v []float64) float64 { return 0 }); !IsMissingBand(err) {
		t.Errorf("error = %v, expected missing band", err)
	}
}

func TestRename(t *testing.T) {
	r := testRaster(t)
	out, err := r.Rename([]string{"b", "a"}, []string{"red", "nir"})
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Bands(); got[0] != "red" || got[1] != "nir" {
		t.Errorf("Bands = %v", got)
	}
	red, _ := out.Band("red")
	if red[0] != 4 {
		t.Errorf("red[0] = %v, expected 4", red[0])
	}
}

func TestAddBandsCarriesMask(t *testing.T) {
	r := testRaster(t)
	other, _ := r.UpdateMask([]bool{false, true, true, true})
	other, _ = other.Rename([]string{"a"}, []string{"c"})

	out, err := r.AddBands(other)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.Value("c", 0); ok {
		t.Error("pixel 0 of c should be invalid")
	}
	if v, ok := out.Value("a", 0); !ok || v != 1 {
		t.Error("band a should be untouched")
	}
}

func TestCollectionOrderingAndBuckets(t *testing.T) {
	g := NewGrid(1, 1, 0, 1, 1)
	mk := func(y int, m time.Month) *Raster {
		r, _ := New(g, time.Date(y, m, 10, 0, 0, 0, 0, time.UTC)).WithBand("v", []float64{float64(m)})
		return r
	}
	c := NewCollection(mk(2021, 2), mk(2020, 2), mk(2020, 7))

	sorted := c.Sort()
	dates, err := sorted.Dates()
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(dates); i++ {
		if dates[i].Before(dates[i-1]) {
			t.Errorf("dates not ascending: %v", dates)
		}
	}

	feb, err := c.FilterMonth(time.February)
	if err != nil {
		t.Fatal(err)
	}
	if feb.Len() != 2 {
		t.Errorf("February bucket has %d elements, expected 2", feb.Len())
	}
	y2020, _ := c.FilterYear(2020)
	if y2020.Len() != 2 {
		t.Errorf("2020 bucket has %d elements, expected 2", y2020.Len())
	}

	noTime := NewCollection(New(g, time.Time{}))
	if _, err := noTime.FilterMonth(time.January); !errors.Is(err, ErrMissingTimestamp) {
		t.Errorf("error = %v, expected ErrMissingTimestamp", err)
	}
}

func TestCollectionMapKeepsOrder(t *testing.T) {
	g := NewGrid(1, 1, 0, 1, 1)
	var items []*Raster
	for i := 0; i < 50; i++ {
		r, _ := New(g, time.Unix(int64(i), 0)).WithBand("v", []float64{float64(i)})
		items = append(items, r)
	}
	c := NewCollection(items...)

	out, err := c.Map(context.Background(), func(r *Raster) (*Raster, error) {
		return r.Combine("w", []string{"v"}, func(v []float64) float64 { return v[0] * 2 })
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < out.Len(); i++ {
		if v, _ := out.At(i).Value("w", 0); v != float64(2*i) {
			t.Fatalf("element %d has w=%v", i, v)
		}
	}

	boom := errors.New("boom")
	_, err = c.Map(context.Background(), func(r *Raster) (*Raster, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, expected boom", err)
	}
}

func TestBandSelection(t *testing.T) {
	r := testRaster(t)

	tests := []struct {
		name     string
		input    string
		expected []string
		wantErr  bool
	}{
		{name: "all", input: "all", expected: []string{"a", "b"}},
		{name: "empty means all", input: "", expected: []string{"a", "b"}},
		{name: "named", input: "b", expected: []string{"b"}},
		{name: "unknown", input: "a, nir", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBandSelection(tt.input).Resolve(r)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("got %v, expected %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("got %v, expected %v", got, tt.expected)
				}
			}
		})
	}
}
