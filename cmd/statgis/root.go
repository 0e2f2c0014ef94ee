package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chrissnell/statgis/internal/constants"
	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	cfgBackend string
	remoteAddr string
	outFormat  string
	debug      bool
	store      bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "statgis",
	Short: "Zonal statistics and time-series decomposition of raster datasets",
	Long: `statgis runs the analyses of statgis-server from the command line.

By default datasets are read from the configuration and analysed in-process.
With --remote the request is sent to a running statgis-server over gRPC.

Regions are GeoJSON, given inline or as a path to a file.`,
	Version:       constants.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Init(debug)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "config.yaml", "Path to configuration source")
	pf.StringVar(&cfgBackend, "config-backend", "yaml", "Configuration backend type: yaml or sqlite")
	pf.StringVar(&remoteAddr, "remote", "", "Address of a statgis-server gRPC endpoint")
	pf.StringVarP(&outFormat, "format", "f", "json", "Output format: json or csv")
	pf.BoolVar(&debug, "debug", false, "Turn on debugging output")
	pf.BoolVar(&store, "store", false, "Record runs in the configured result database")
	pf.DurationVar(&timeout, "timeout", 10*time.Minute, "Give up after this long")
}

func loadConfig() (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		p, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		provider = p
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", filename, err)
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// readRegion accepts inline GeoJSON or a path to a GeoJSON file
func readRegion(s string) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "{") {
		return json.RawMessage(s), nil
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return nil, fmt.Errorf("reading region: %w", err)
	}
	return data, nil
}

// parseDate reads a YYYY-MM-DD date as UTC midnight
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return &t, nil
}
