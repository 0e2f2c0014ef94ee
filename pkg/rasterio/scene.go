package rasterio

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/statgis/pkg/raster"
)

// Georef places decoded images on the map. TIFF files carry no usable
// georeferencing for this reader, so the origin and pixel size come from the
// caller.
type Georef struct {
	OriginX   float64  `json:"origin_x" yaml:"origin-x"`
	OriginY   float64  `json:"origin_y" yaml:"origin-y"`
	PixelSize float64  `json:"pixel_size" yaml:"pixel-size"`
	NoData    *float64 `json:"nodata,omitempty" yaml:"nodata,omitempty"`
	// Geographic marks origin and pixel size as degrees
	Geographic bool `json:"geographic,omitempty" yaml:"geographic,omitempty"`
}

func (g Georef) grid(width, height int) raster.Grid {
	size := g.PixelSize
	if size == 0 {
		size = 1
	}
	grid := raster.NewGrid(width, height, g.OriginX, g.OriginY, size)
	grid.Geographic = g.Geographic
	return grid
}

// ReadTIFF loads a single-band TIFF file as a raster with one band
func ReadTIFF(path, band string, geo Georef) (*raster.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := DecodeBand(f, geo.NoData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raster.FromBands(geo.grid(b.Width, b.Height), time.Time{}, []string{band}, map[string][]float64{band: b.Values})
}

// SceneTime parses a scene name of the form "<unix-ms>[.zip]"
func SceneTime(name string) (time.Time, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	ms, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("scene %q is not named by its acquisition time in epoch milliseconds", name)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func isTIFF(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".tif" || ext == ".tiff"
}

func bandName(name string) string {
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

// ReadScene loads a scene from a directory or zip archive holding one
// "<BAND>.tif" file per band. Bands are added in name order and must share
// the same size.
func ReadScene(path string, geo Georef) (*raster.Raster, error) {
	at, err := SceneTime(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var fsys fs.FS
	if info.IsDir() {
		fsys = os.DirFS(path)
	} else {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("opening scene archive: %w", err)
		}
		defer zr.Close()
		fsys = zr
	}

	r, err := readBands(fsys, at, geo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func readBands(fsys fs.FS, at time.Time, geo Georef) (*raster.Raster, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isTIFF(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no tiff bands found")
	}
	sort.Strings(files)

	var r *raster.Raster
	for _, p := range files {
		b, err := decodeFile(fsys, p, geo.NoData)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", p, err)
		}
		if r == nil {
			r = raster.New(geo.grid(b.Width, b.Height), at)
		}
		if g := r.Grid(); g.Width != b.Width || g.Height != b.Height {
			return nil, fmt.Errorf("band %s is %dx%d, scene is %dx%d", p, b.Width, b.Height, g.Width, g.Height)
		}
		r, err = r.WithBand(bandName(p), b.Values)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func decodeFile(fsys fs.FS, name string, nodata *float64) (Band, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return Band{}, err
	}
	defer f.Close()

	return DecodeBand(f, nodata)
}

// ReadScenes loads every scene (directory or .zip named by epoch
// milliseconds) directly under dir into a collection sorted by time. Other
// entries are skipped. progress, when non-nil, is called after each scene.
func ReadScenes(dir string, geo Georef, progress func(done, total int)) (*raster.Collection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var scenes []string
	for _, e := range entries {
		if !e.IsDir() && strings.ToLower(filepath.Ext(e.Name())) != ".zip" {
			continue
		}
		if _, err := SceneTime(e.Name()); err != nil {
			continue
		}
		scenes = append(scenes, filepath.Join(dir, e.Name()))
	}

	items := make([]*raster.Raster, 0, len(scenes))
	for i, p := range scenes {
		r, err := ReadScene(p, geo)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
		if progress != nil {
			progress(i+1, len(scenes))
		}
	}
	return raster.NewCollection(items...).Sort(), nil
}
