package analysis

import (
	"bytes"
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseRegion decodes a GeoJSON geometry, feature or feature collection. A
// feature collection becomes the union of its features. Empty input and
// JSON null decode to a nil region, which covers the whole raster.
func ParseRegion(data []byte) (orb.Geometry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, invalid("region is not GeoJSON: %v", err)
	}

	var g orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, invalid("region: %v", err)
		}
		col := make(orb.Collection, 0, len(fc.Features))
		for _, f := range fc.Features {
			if f.Geometry != nil {
				col = append(col, f.Geometry)
			}
		}
		g = col
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, invalid("region: %v", err)
		}
		g = f.Geometry
	default:
		geom, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, invalid("region: %v", err)
		}
		g = geom.Geometry()
	}

	if g == nil {
		return nil, invalid("region has no geometry")
	}
	if err := checkGeometry(g); err != nil {
		return nil, err
	}
	return g, nil
}

// checkGeometry rejects geometries that cover no area and no pixel
func checkGeometry(g orb.Geometry) error {
	switch geom := g.(type) {
	case orb.Point, orb.MultiPoint, orb.Bound, orb.Ring, orb.Polygon, orb.MultiPolygon:
		return nil
	case orb.Collection:
		for _, child := range geom {
			if err := checkGeometry(child); err != nil {
				return err
			}
		}
		return nil
	}
	return invalid("unsupported region geometry %s", g.GeoJSONType())
}

// requireRegion parses a region that must be present
func requireRegion(name string, data []byte) (orb.Geometry, error) {
	g, err := ParseRegion(data)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, invalid("%s is required", name)
	}
	return g, nil
}
