package indices

import (
	"context"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
)

// WaterFrequency returns the fraction of valid observations in which each
// pixel was classified as water, as a single WATER band.
func WaterFrequency(ctx context.Context, eng engine.Engine, c *raster.Collection, roles Roles) (*raster.Raster, error) {
	water, err := c.Map(ctx, func(r *raster.Raster) (*raster.Raster, error) {
		w, err := Water(r, roles)
		if err != nil {
			return nil, err
		}
		return w.Select(WaterBand)
	})
	if err != nil {
		return nil, err
	}

	freq, err := eng.ReduceTemporal(ctx, water, []string{WaterBand}, reducer.Mean)
	if err != nil {
		return nil, err
	}
	return freq.Rename([]string{engine.TemporalBand(WaterBand, reducer.Mean)}, []string{WaterBand})
}
