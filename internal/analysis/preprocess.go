package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/statgis/internal/catalog"
	"github.com/chrissnell/statgis/pkg/indices"
	"github.com/chrissnell/statgis/pkg/mask"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/scale"
)

// farFuture closes an open-ended date range
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// roles resolves band roles: the request, then the configured defaults, then
// the dataset sensor. Datasets without any of these get empty roles, which
// only fail once an index needs them.
func (s *Service) roles(ds *catalog.Dataset, requested []string) (indices.Roles, error) {
	switch {
	case len(requested) > 0:
		r, err := indices.FromList(requested)
		if err != nil {
			return indices.Roles{}, invalid("%v", err)
		}
		return r, nil
	case len(s.defaults.Roles) > 0:
		return indices.FromList(s.defaults.Roles)
	case ds.Config.Sensor != "":
		return indices.Preset(ds.Config.Sensor)
	}
	return indices.Roles{}, nil
}

// prepare loads a dataset and runs date filtering, scaling, masking and
// index computation, in that order
func (s *Service) prepare(ctx context.Context, name string, p Preprocess) (*raster.Collection, indices.Roles, error) {
	ds, err := s.datasets.Get(name)
	if err != nil {
		return nil, indices.Roles{}, err
	}

	roles, err := s.roles(ds, p.Roles)
	if err != nil {
		return nil, roles, err
	}

	col := ds.Collection
	if p.Start != nil || p.End != nil {
		start, end := time.Time{}, farFuture
		if p.Start != nil {
			start = *p.Start
		}
		if p.End != nil {
			end = *p.End
		}
		if !end.After(start) {
			return nil, roles, invalid("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
		}
		col = col.FilterDate(start, end)
	}
	if col.Len() == 0 {
		return nil, roles, fmt.Errorf("dataset %s: %w", name, raster.ErrEmptyCollection)
	}

	applyScale := s.defaults.ApplyScale
	if p.ApplyScale != nil {
		applyScale = *p.ApplyScale
	}
	var sensor *scale.Sensor
	if applyScale {
		sn, err := scale.Lookup(ds.Config.Sensor)
		if err != nil {
			return nil, roles, invalid("dataset %s: %v", name, err)
		}
		sensor = &sn
	}

	schemeName, threshold := p.Mask, p.MaskThreshold
	if schemeName == "" {
		schemeName = s.defaults.Mask
		if threshold == 0 {
			threshold = s.defaults.MaskThreshold
		}
	}
	scheme, err := mask.ParseScheme(schemeName)
	if err != nil {
		return nil, roles, invalid("%v", err)
	}

	idx := make([]indices.Index, 0, len(p.Indices))
	for _, n := range p.Indices {
		i, err := indices.ParseIndex(n)
		if err != nil {
			return nil, roles, invalid("%v", err)
		}
		idx = append(idx, i)
	}

	if sensor == nil && scheme == mask.NoMask && len(idx) == 0 {
		return col, roles, nil
	}

	out, err := col.Map(ctx, func(r *raster.Raster) (*raster.Raster, error) {
		var err error
		if sensor != nil {
			if r, err = scale.Apply(r, *sensor); err != nil {
				return nil, err
			}
		}
		if r, err = scheme.Apply(r, threshold); err != nil {
			return nil, err
		}
		for _, i := range idx {
			if r, err = indices.Compute(r, i, roles); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
		}
		return r, nil
	})
	if err != nil {
		return nil, roles, fmt.Errorf("preprocessing %s: %w", name, err)
	}
	return out, roles, nil
}
