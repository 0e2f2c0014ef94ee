package rasterio

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/statgis/pkg/raster"
	"golang.org/x/image/tiff"
)

// encodeBand writes a 3x2 Gray16 tiff holding base, base+1, ...
func encodeBand(t *testing.T, base uint16) []byte {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetGray16(x, y, color.Gray16{Y: base + uint16(y*3+x)})
		}
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeBand(t *testing.T) {
	nodata := 102.0
	b, err := DecodeBand(bytes.NewReader(encodeBand(t, 100)), &nodata)
	if err != nil {
		t.Fatal(err)
	}
	if b.Width != 3 || b.Height != 2 {
		t.Fatalf("size = %dx%d, expected 3x2", b.Width, b.Height)
	}
	for i, expected := range []float64{100, 101, math.NaN(), 103, 104, 105} {
		got := b.Values[i]
		if math.IsNaN(expected) != math.IsNaN(got) || (!math.IsNaN(expected) && got != expected) {
			t.Errorf("Values[%d] = %v, expected %v", i, got, expected)
		}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, rgba, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeBand(&buf, nil); err == nil {
		t.Error("expected error for an RGBA tiff")
	}
}

func TestSceneTime(t *testing.T) {
	tests := []struct {
		name     string
		expected time.Time
		wantErr  bool
	}{
		{name: "1609459200000.zip", expected: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "/data/scenes/1609459200000", expected: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "LC08_20210101.zip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SceneTime(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.expected) {
				t.Errorf("SceneTime = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func writeZipScene(t *testing.T, path string, bands map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, data := range bands {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeDirScene(t *testing.T, path string, bands map[string][]byte) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range bands {
		if err := os.WriteFile(filepath.Join(path, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReadScenes(t *testing.T) {
	dir := t.TempDir()
	writeZipScene(t, filepath.Join(dir, "1612137600000.zip"), map[string][]byte{
		"SR_B4.TIF": encodeBand(t, 200),
		"SR_B5.TIF": encodeBand(t, 300),
	})
	writeDirScene(t, filepath.Join(dir, "1609459200000"), map[string][]byte{
		"SR_B4.tif":  encodeBand(t, 10),
		"SR_B5.tif":  encodeBand(t, 20),
		"README.txt": []byte("not a band"),
	})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatal(err)
	}

	geo := Georef{OriginX: 500000, OriginY: 4100000, PixelSize: 30}
	var calls []int
	c, err := ReadScenes(dir, geo, func(done, total int) {
		calls = append(calls, done)
		if total != 2 {
			t.Errorf("total = %d, expected 2", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("collection has %d scenes, expected 2", c.Len())
	}
	if len(calls) != 2 {
		t.Errorf("progress called %d times, expected 2", len(calls))
	}

	first := c.At(0)
	if m, _ := first.Month(); m != time.January {
		t.Errorf("first scene month = %v, expected January", m)
	}
	if bands := fmt.Sprint(first.Bands()); bands != "[SR_B4 SR_B5]" {
		t.Errorf("bands = %s, expected [SR_B4 SR_B5]", bands)
	}
	if v, _ := first.Value("SR_B5", 4); v != 24 {
		t.Errorf("SR_B5[4] = %v, expected 24", v)
	}
	if v, _ := c.At(1).Value("SR_B4", 0); v != 200 {
		t.Errorf("zip scene SR_B4[0] = %v, expected 200", v)
	}
	if g := first.Grid(); g.Width != 3 || g.Height != 2 || g.PixelWidth != 30 || g.OriginY != 4100000 {
		t.Errorf("grid = %+v", g)
	}
}

func TestReadSceneSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	small := image.NewGray(image.Rect(0, 0, 1, 1))
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, small, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "1609459200000")
	writeDirScene(t, path, map[string][]byte{"A.tif": encodeBand(t, 1), "B.tif": buf.Bytes()})

	if _, err := ReadScene(path, Georef{}); err == nil {
		t.Error("expected error for bands of different sizes")
	}
}

type fakeSource map[string]*variable

func (f fakeSource) names() []string {
	out := make([]string, 0, len(f))
	for _, n := range []string{"time", "y", "x", "ndvi", "elevation"} {
		if _, ok := f[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (f fakeSource) variable(name string) (*variable, error) {
	v, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("no variable %s", name)
	}
	return v, nil
}

func TestReadCube(t *testing.T) {
	src := fakeSource{
		"time": {
			values: []int32{1, 0},
			dims:   []string{"time"},
			attrs:  map[string]interface{}{"units": "days since 2020-01-01 00:00:00"},
		},
		// y increases northwards, so rows must be flipped
		"y": {values: []float64{5, 15}, dims: []string{"y"}},
		"x": {values: []float64{105, 115, 125}, dims: []string{"x"}},
		"ndvi": {
			values: [][][]float32{
				{{1, 2, 3}, {4, 5, -9999}},
				{{7, 8, 9}, {10, 11, 12}},
			},
			dims:  []string{"time", "y", "x"},
			attrs: map[string]interface{}{"_FillValue": float32(-9999)},
		},
		"elevation": {values: [][]float64{{1, 2, 3}, {4, 5, 6}}, dims: []string{"y", "x"}},
	}

	c, err := readCube(src, CubeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("collection has %d elements, expected 2", c.Len())
	}

	first := c.At(0)
	if !first.Time().Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first time = %v", first.Time())
	}
	if bands := fmt.Sprint(first.Bands()); bands != "[ndvi]" {
		t.Errorf("bands = %s, expected [ndvi]", bands)
	}

	g := first.Grid()
	expected := raster.Grid{Width: 3, Height: 2, OriginX: 100, OriginY: 20, PixelWidth: 10, PixelHeight: 10}
	if !g.Equal(expected) {
		t.Errorf("grid = %+v, expected %+v", g, expected)
	}

	// time step 1 (day 0) after the flip: north row first
	if v, _ := first.Value("ndvi", 0); v != 10 {
		t.Errorf("ndvi[0] = %v, expected 10", v)
	}
	second := c.At(1)
	if v, _ := second.Value("ndvi", 3); v != 1 {
		t.Errorf("ndvi[3] = %v, expected 1", v)
	}
	if _, ok := second.Value("ndvi", 2); ok {
		t.Error("fill value should be invalid")
	}
	if v, ok := second.Value("ndvi", 5); !ok || v != 3 {
		t.Errorf("ndvi[5] = %v, expected 3", v)
	}
}

func TestReadCubeErrors(t *testing.T) {
	base := func() fakeSource {
		return fakeSource{
			"time": {values: []float64{0}, dims: []string{"time"}},
			"ndvi": {values: [][][]float64{{{1, 2}}}, dims: []string{"time", "lat", "lon"}},
		}
	}

	if _, err := readCube(base(), CubeOptions{}); err == nil {
		t.Error("expected error without coordinates or georef")
	}
	if _, err := readCube(base(), CubeOptions{Georef: &Georef{PixelSize: 30}}); err != nil {
		t.Errorf("georef fallback: %v", err)
	}

	src := base()
	src["time"].attrs = map[string]interface{}{"units": "fortnights since 2020-01-01"}
	if _, err := readCube(src, CubeOptions{Georef: &Georef{}}); err == nil {
		t.Error("expected error for unknown time unit")
	}

	src = base()
	src["ndvi"].values = [][][]float64{{{1, 2}, {3}}}
	if _, err := readCube(src, CubeOptions{Georef: &Georef{}}); err == nil {
		t.Error("expected error for a ragged array")
	}
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		unit  time.Duration
		ref   time.Time
	}{
		{"days since 1970-01-01", 24 * time.Hour, time.Unix(0, 0).UTC()},
		{"seconds since 2000-01-01 12:00:00", time.Second, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Hours since 2010-06-01T00:00:00Z", time.Hour, time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			unit, ref, err := parseTimeUnits(tt.units)
			if err != nil {
				t.Fatal(err)
			}
			if unit != tt.unit || !ref.Equal(tt.ref) {
				t.Errorf("parseTimeUnits = (%v, %v), expected (%v, %v)", unit, ref, tt.unit, tt.ref)
			}
		})
	}
}
