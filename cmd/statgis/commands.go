package main

import (
	"strings"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/spf13/cobra"
)

// preprocessFlags are shared by every command that reads a time series
type preprocessFlags struct {
	start, end    string
	scale         bool
	mask          string
	maskThreshold float64
	indices       []string
	roles         string
}

func (p *preprocessFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.start, "start", "", "First acquisition date, YYYY-MM-DD")
	f.StringVar(&p.end, "end", "", "Acquisition dates before this one, YYYY-MM-DD")
	f.BoolVar(&p.scale, "apply-scale", false, "Convert digital numbers to reflectance using the dataset sensor")
	f.StringVar(&p.mask, "mask", "", "Cloud mask: landsat, landsat-cloud, sentinel, sentinel-probability")
	f.Float64Var(&p.maskThreshold, "mask-threshold", 0, "Cloud probability threshold of the sentinel-probability mask")
	f.StringSliceVar(&p.indices, "index", nil, "Indices to add as bands: ndvi, evi, mndwi, ndbi, ndwi")
	f.StringVar(&p.roles, "roles", "", "Band names for blue,green,red,nir,swir")
}

func (p *preprocessFlags) build(cmd *cobra.Command) (analysis.Preprocess, error) {
	var out analysis.Preprocess
	var err error
	if out.Start, err = parseDate(p.start); err != nil {
		return out, err
	}
	if out.End, err = parseDate(p.end); err != nil {
		return out, err
	}
	if cmd.Flags().Changed("apply-scale") {
		out.ApplyScale = &p.scale
	}
	out.Mask, out.MaskThreshold, out.Indices = p.mask, p.maskThreshold, p.indices
	if p.roles != "" {
		out.Roles = strings.Split(p.roles, ",")
	}
	return out, nil
}

// regionFlags select the region and resolution of a reduction
type regionFlags struct {
	region    string
	scale     float64
	tileScale int
}

func (r *regionFlags) register(cmd *cobra.Command, name string) {
	f := cmd.Flags()
	f.StringVar(&r.region, name, "", "GeoJSON region, inline or a file path")
	f.Float64Var(&r.scale, "scale", 0, "Nominal pixel size; 0 is native")
	f.IntVar(&r.tileScale, "tile-scale", 0, "Tiling factor for large regions")
}

func init() {
	rootCmd.AddCommand(
		datasetsCmd(),
		zonalCmd(),
		decomposeCmd(),
		yearlyCmd(),
		hypsoCmd(),
		plumeCmd(),
		sampleCmd(),
		frequencyCmd(),
	)
}

func datasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List the configured datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			r, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			infos, err := r.Datasets(ctx)
			if err != nil {
				return err
			}
			return printResult(infos)
		},
	}
}

func zonalCmd() *cobra.Command {
	var (
		pre      preprocessFlags
		reg      regionFlags
		reducer  string
		reducers []string
		bands    []string
	)
	cmd := &cobra.Command{
		Use:   "zonal DATASET",
		Short: "Region statistics of every image of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := analysis.ZonalRequest{Dataset: args[0], Reducer: reducer, Reducers: reducers, Bands: bands, Scale: reg.scale, TileScale: reg.tileScale}
			var err error
			if req.Region, err = readRegion(reg.region); err != nil {
				return err
			}
			if req.Preprocess, err = pre.build(cmd); err != nil {
				return err
			}

			r, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Zonal(ctx, req)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	pre.register(cmd)
	reg.register(cmd, "region")
	cmd.Flags().StringVar(&reducer, "reducer", "", "Single reducer: mean, max, min, count or stdDev")
	cmd.Flags().StringSliceVar(&reducers, "reducers", nil, "Reducers for the multi-column table")
	cmd.Flags().StringSliceVar(&bands, "bands", nil, "Bands to reduce; all when empty")
	return cmd
}

func decomposeCmd() *cobra.Command {
	var (
		pre  preprocessFlags
		reg  regionFlags
		band string
	)
	cmd := &cobra.Command{
		Use:     "decompose DATASET",
		Aliases: []string{"timeseries"},
		Short:   "Trend, climatology and anomaly decomposition of one band",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := analysis.DecomposeRequest{Dataset: args[0], Band: band, Scale: reg.scale, TileScale: reg.tileScale}
			var err error
			if req.Region, err = readRegion(reg.region); err != nil {
				return err
			}
			if req.Preprocess, err = pre.build(cmd); err != nil {
				return err
			}

			r, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Decompose(ctx, req)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	pre.register(cmd)
	reg.register(cmd, "region")
	cmd.Flags().StringVarP(&band, "band", "b", "", "Band to decompose")
	cmd.MarkFlagRequired("band")
	return cmd
}

func yearlyCmd() *cobra.Command {
	var (
		pre        preprocessFlags
		reg        regionFlags
		band       string
		reducer    string
		start, end int
	)
	cmd := &cobra.Command{
		Use:   "yearly DATASET",
		Short: "Reduce a band within each year of a range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := analysis.YearlyRequest{Dataset: args[0], Band: band, Start: start, End: end, Reducer: reducer, Scale: reg.scale, TileScale: reg.tileScale}
			var err error
			if req.Region, err = readRegion(reg.region); err != nil {
				return err
			}
			if req.Preprocess, err = pre.build(cmd); err != nil {
				return err
			}

			r, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Yearly(ctx, req)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	pre.register(cmd)
	reg.register(cmd, "region")
	cmd.Flags().StringVarP(&band, "band", "b", "", "Band to reduce")
	cmd.Flags().StringVar(&reducer, "reducer", "mean", "Temporal reducer")
	cmd.Flags().IntVar(&start, "from", 0, "First year")
	cmd.Flags().IntVar(&end, "to", 0, "Last year, inclusive")
	cmd.MarkFlagRequired("band")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func hypsoCmd() *cobra.Command {
	var (
		reg     regionFlags
		band    string
		samples int
	)
	cmd := &cobra.Command{
		Use:     "hypsometric DATASET",
		Aliases: []string{"hypso"},
		Short:   "Hypsometric curve of a catchment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := analysis.HypsometricRequest{Dataset: args[0], Band: band, Samples: samples, Scale: reg.scale, TileScale: reg.tileScale}
			var err error
			if req.Catchment, err = readRegion(reg.region); err != nil {
				return err
			}

			r, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Hypsometric(ctx, req)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	reg.register(cmd, "catchment")
	cmd.Flags().StringVarP(&band, "band", "b", "", "Elevation band; the dataset band when empty")
	cmd.Flags().IntVar(&samples, "samples", 0, "Number of elevation thresholds")
	cmd.MarkFlagRequired("catchment")
	return cmd
}

func plumeCmd() *cobra.Command {
	var (
		pre          preprocessFlags
		region       string
		sampleRegion string
		date         string
		sampleScale  float64
		minPatch     int
		maxPatch     int
	)
	cmd := &cobra.Command{
		Use:   "plume DATASET",
		Short: "Characterize a river plume on one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := analysis.PlumeRequest{Dataset: args[0]}
			req.SampleScale, req.MinPatch, req.MaxPatch = sampleScale, minPatch, maxPatch
			var err error
			if req.Date, err = parseDate(date); err != nil {
				return err
			}
			if req.SampleRegion, err = readRegion(sampleRegion); err != nil {
				return err
			}
			if req.Region, err = readRegion(region); err != nil {
				return err
			}
			if req.Preprocess, err = pre.build(cmd); err != nil {
				return err
			}

			r, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Plume(ctx, req)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	pre.register(cmd)
	f := cmd.Flags()
	f.StringVar(&region, "region", "", "GeoJSON region summarized; the whole image when empty")
	f.StringVar(&sampleRegion, "sample-region", "", "GeoJSON polygon inside the plume")
	f.StringVar(&date, "date", "", "Acquisition date, YYYY-MM-DD; latest image when empty")
	f.Float64Var(&sampleScale, "sample-scale", 0, "Pixel size in metres used to read the sample")
	f.IntVar(&minPatch, "min-patch", 0, "Smallest patch kept, in pixels")
	f.IntVar(&maxPatch, "max-patch", 0, "Connected-pixel count cap")
	cmd.MarkFlagRequired("sample-region")
	return cmd
}

func sampleCmd() *cobra.Command {
	var (
		pre  preprocessFlags
		reg  regionFlags
		band string
	)
	cmd := &cobra.Command{
		Use:   "sample DATASET",
		Short: "Raw values of a band under a point or region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := analysis.SampleRequest{Dataset: args[0], Band: band, Scale: reg.scale, TileScale: reg.tileScale}
			var err error
			if req.Region, err = readRegion(reg.region); err != nil {
				return err
			}
			if req.Preprocess, err = pre.build(cmd); err != nil {
				return err
			}

			r, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Sample(ctx, req)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	pre.register(cmd)
	reg.register(cmd, "region")
	cmd.Flags().StringVarP(&band, "band", "b", "", "Band to sample")
	cmd.MarkFlagRequired("band")
	cmd.MarkFlagRequired("region")
	return cmd
}

func frequencyCmd() *cobra.Command {
	var (
		pre preprocessFlags
		reg regionFlags
	)
	cmd := &cobra.Command{
		Use:   "water-frequency DATASET",
		Short: "Fraction of images in which each pixel is water",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := analysis.FrequencyRequest{Dataset: args[0], Scale: reg.scale, TileScale: reg.tileScale}
			var err error
			if req.Region, err = readRegion(reg.region); err != nil {
				return err
			}
			if req.Preprocess, err = pre.build(cmd); err != nil {
				return err
			}

			r, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.WaterFrequency(ctx, req)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	pre.register(cmd)
	reg.register(cmd, "region")
	return cmd
}
