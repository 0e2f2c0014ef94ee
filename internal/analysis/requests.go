package analysis

import (
	"encoding/json"
	"math"
	"time"

	"github.com/chrissnell/statgis/pkg/hypso"
	"github.com/chrissnell/statgis/pkg/plume"
	"github.com/chrissnell/statgis/pkg/sample"
	"github.com/chrissnell/statgis/pkg/zonal"
)

// Preprocess selects and prepares the images of a dataset before analysis.
// Unset fields fall back to the configured analysis defaults.
type Preprocess struct {
	// Start and End bound acquisition times to [Start, End)
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	// ApplyScale converts digital numbers using the dataset sensor
	ApplyScale *bool `json:"apply_scale,omitempty"`

	Mask          string  `json:"mask,omitempty"`
	MaskThreshold float64 `json:"mask_threshold,omitempty"`

	// Indices are computed and added as bands: ndvi, evi, mndwi, ndbi, ndwi
	Indices []string `json:"indices,omitempty"`

	// Roles lists band names in blue, green, red, nir, swir order
	Roles []string `json:"roles,omitempty"`
}

// ZonalRequest asks for region statistics of every image of a dataset
type ZonalRequest struct {
	Dataset string          `json:"dataset"`
	Region  json.RawMessage `json:"region,omitempty"`

	// Reducer selects the single-reducer table: one column per band plus
	// date. It takes precedence over Reducers.
	Reducer  string   `json:"reducer,omitempty"`
	Reducers []string `json:"reducers,omitempty"`

	Bands     []string `json:"bands,omitempty"`
	Scale     float64  `json:"scale,omitempty"`
	TileScale int      `json:"tile_scale,omitempty"`

	Preprocess
}

// TableResponse carries a statistics table
type TableResponse struct {
	RunID string       `json:"run_id,omitempty"`
	Table *zonal.Table `json:"table"`
}

// CSV renders the table
func (r *TableResponse) CSV() ([]byte, error) {
	return r.Table.CSV()
}

// DecomposeRequest runs the trend, climatology and anomaly decomposition of
// one band and summarizes it over a region
type DecomposeRequest struct {
	Dataset   string          `json:"dataset"`
	Band      string          `json:"band"`
	Region    json.RawMessage `json:"region,omitempty"`
	Scale     float64         `json:"scale,omitempty"`
	TileScale int             `json:"tile_scale,omitempty"`

	Preprocess
}

// MonthlyMean is the regional climatology of one calendar month
type MonthlyMean struct {
	Month  int      `json:"month"`
	Images int      `json:"images"`
	Mean   *float64 `json:"mean"`
}

// DecomposeResponse holds the regional means of every decomposition band per
// image, the monthly climatology and the fitted trend
type DecomposeResponse struct {
	RunID string `json:"run_id,omitempty"`
	Band  string `json:"band"`

	// Slope is in band units per year; Offset is the value at the epoch
	Slope  *float64 `json:"slope"`
	Offset *float64 `json:"offset"`

	Series  *zonal.Table  `json:"series"`
	Monthly []MonthlyMean `json:"monthly"`
}

// CSV renders the per-image series
func (r *DecomposeResponse) CSV() ([]byte, error) {
	return r.Series.CSV()
}

// YearlyRequest reduces a band within each calendar year of [Start, End]
type YearlyRequest struct {
	Dataset   string          `json:"dataset"`
	Band      string          `json:"band"`
	Start     int             `json:"start"`
	End       int             `json:"end"`
	Reducer   string          `json:"reducer,omitempty"`
	Region    json.RawMessage `json:"region,omitempty"`
	Scale     float64         `json:"scale,omitempty"`
	TileScale int             `json:"tile_scale,omitempty"`

	Preprocess
}

// HypsometricRequest computes the elevation-area curve of a catchment
type HypsometricRequest struct {
	Dataset   string          `json:"dataset"`
	Band      string          `json:"band,omitempty"`
	Catchment json.RawMessage `json:"catchment"`
	Samples   int             `json:"samples,omitempty"`
	Scale     float64         `json:"scale,omitempty"`
	TileScale int             `json:"tile_scale,omitempty"`
}

// HypsometricResponse carries the curve
type HypsometricResponse struct {
	RunID string       `json:"run_id,omitempty"`
	Curve *hypso.Curve `json:"curve"`
}

// PlumeRequest characterizes a river plume on one image
type PlumeRequest struct {
	Dataset string `json:"dataset"`

	// Date picks the image acquired on that UTC day; nil uses the latest
	Date *time.Time `json:"date,omitempty"`

	// SampleRegion is a polygon inside the plume used to derive limits
	SampleRegion json.RawMessage `json:"sample_region"`

	// Region bounds the summary statistics; nil is the whole image
	Region json.RawMessage `json:"region,omitempty"`

	plume.Options
	Preprocess
}

// PlumeResponse summarizes the detected plume
type PlumeResponse struct {
	RunID  string                  `json:"run_id,omitempty"`
	Time   time.Time               `json:"time"`
	Limits map[string]plume.Limits `json:"limits"`

	// Pixels is the number of plume pixels in the region
	Pixels float64 `json:"pixels"`

	// Score is the mean continuity score of those pixels
	Score *float64 `json:"score"`
}

// SampleRequest reads raw values of a band under a point or region
type SampleRequest struct {
	Dataset   string          `json:"dataset"`
	Band      string          `json:"band"`
	Region    json.RawMessage `json:"region"`
	Scale     float64         `json:"scale,omitempty"`
	TileScale int             `json:"tile_scale,omitempty"`

	Preprocess
}

// SampleResponse holds one result per image
type SampleResponse struct {
	RunID   string          `json:"run_id,omitempty"`
	Results []sample.Result `json:"results"`
}

// FrequencyRequest computes how often each pixel was classified as water
type FrequencyRequest struct {
	Dataset   string          `json:"dataset"`
	Region    json.RawMessage `json:"region,omitempty"`
	Scale     float64         `json:"scale,omitempty"`
	TileScale int             `json:"tile_scale,omitempty"`

	Preprocess
}

func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
