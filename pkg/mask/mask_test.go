package mask

import (
	"testing"
	"time"

	"github.com/chrissnell/statgis/pkg/raster"
)

func qaRaster(t *testing.T, qa, prob []float64) *raster.Raster {
	t.Helper()
	g := raster.NewGrid(len(qa), 1, 0, 1, 30)
	r, err := raster.FromBands(g, time.Time{}, []string{"SR_B4", LandsatQA, SentinelCloudProb}, map[string][]float64{
		"SR_B4":           make([]float64, len(qa)),
		LandsatQA:         qa,
		SentinelCloudProb: prob,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func validity(r *raster.Raster) []bool {
	out := make([]bool, r.Grid().Size())
	for i := range out {
		out[i] = r.Valid(i)
	}
	return out
}

func TestLandsatCloud(t *testing.T) {
	// clear, cirrus, cloud, shadow, snow, fill bit only
	qa := []float64{0, 1 << 2, 1 << 3, 1 << 4, 1 << 5, 1}
	r := qaRaster(t, qa, make([]float64, len(qa)))

	tests := []struct {
		name     string
		all      bool
		expected []bool
	}{
		{name: "all flags", all: true, expected: []bool{true, false, false, false, false, true}},
		{name: "cloud only", all: false, expected: []bool{true, true, false, true, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := LandsatCloud(r, tt.all)
			if err != nil {
				t.Fatal(err)
			}
			got := validity(m)
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("pixel %d valid = %v, expected %v", i, got[i], tt.expected[i])
				}
			}
			if len(m.Bands()) != 3 || m.Grid() != r.Grid() {
				t.Error("masking changed the band set or grid")
			}
		})
	}
}

func TestMasksCommuteAndAreIdempotent(t *testing.T) {
	qa := []float64{0, 1 << 3, 0, 1 << 4, 0}
	prob := []float64{5, 5, 50, 5, 20}
	r := qaRaster(t, qa, prob)

	bitsThenProb, _ := LandsatCloud(r, true)
	bitsThenProb, _ = Probability(bitsThenProb, DefaultProbability)

	probThenBits, _ := Probability(r, DefaultProbability)
	probThenBits, _ = LandsatCloud(probThenBits, true)

	twice, _ := Probability(bitsThenProb, DefaultProbability)
	twice, _ = LandsatCloud(twice, true)

	a, b, c := validity(bitsThenProb), validity(probThenBits), validity(twice)
	expected := []bool{true, false, false, false, true}
	for i := range expected {
		if a[i] != b[i] {
			t.Errorf("pixel %d: mask order changed validity", i)
		}
		if a[i] != c[i] {
			t.Errorf("pixel %d: reapplying masks changed validity", i)
		}
		if a[i] != expected[i] {
			t.Errorf("pixel %d valid = %v, expected %v", i, a[i], expected[i])
		}
	}
}

func TestSentinelCloud(t *testing.T) {
	g := raster.NewGrid(4, 1, 0, 1, 10)
	r, _ := raster.FromBands(g, time.Time{}, []string{SentinelQA}, map[string][]float64{
		SentinelQA: {0, 1 << 10, 1 << 11, 1<<10 | 1<<11},
	})
	m, err := SentinelCloud(r)
	if err != nil {
		t.Fatal(err)
	}
	got := validity(m)
	expected := []bool{true, false, false, false}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("pixel %d valid = %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestMissingQualityBand(t *testing.T) {
	g := raster.NewGrid(1, 1, 0, 1, 10)
	r, _ := raster.FromBands(g, time.Time{}, []string{"B4"}, map[string][]float64{"B4": {1}})
	if _, err := SentinelCloud(r); !raster.IsMissingBand(err) {
		t.Errorf("error = %v, expected missing band", err)
	}
}

func TestScheme(t *testing.T) {
	if _, err := ParseScheme("fog"); err == nil {
		t.Error("expected unknown scheme error")
	}
	s, err := ParseScheme("")
	if err != nil || s != NoMask {
		t.Errorf("ParseScheme(\"\") = %q, %v", s, err)
	}

	r := qaRaster(t, []float64{0, 0}, []float64{10, 30})
	m, err := SentinelProbability.Apply(r, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Valid(0) || m.Valid(1) {
		t.Errorf("validity = %v, expected [true false]", validity(m))
	}
}

func TestBitsMatchNamedMasks(t *testing.T) {
	qa := []float64{0, 1 << LandsatCirrusBit, 1 << LandsatCloudBit, 1 << LandsatShadowBit, 1 << LandsatSnowBit}
	r := qaRaster(t, qa, make([]float64, len(qa)))

	tests := []struct {
		name string
		bits []uint
		all  bool
	}{
		{name: "cloud bit", bits: []uint{LandsatCloudBit}, all: false},
		{name: "every flag", bits: []uint{LandsatCirrusBit, LandsatCloudBit, LandsatShadowBit, LandsatSnowBit}, all: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			byBits, err := Bits(r, LandsatQA, tt.bits...)
			if err != nil {
				t.Fatal(err)
			}
			named, err := LandsatCloud(r, tt.all)
			if err != nil {
				t.Fatal(err)
			}
			a, b := validity(byBits), validity(named)
			for i := range a {
				if a[i] != b[i] {
					t.Errorf("pixel %d: Bits valid = %v, LandsatCloud valid = %v", i, a[i], b[i])
				}
			}
		})
	}
}
