package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/data"
	"github.com/sells-group/censusdis/internal/export"
	"github.com/sells-group/censusdis/internal/frame"
)

// queryFlags are shared by download, url and load.
type queryFlags struct {
	dataset   string
	year      int
	variables []string
	geo       []string
	geometry  bool
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.dataset, "dataset", "d", "", "dataset path, e.g. acs/acs5 or dec/pl")
	cmd.Flags().IntVarP(&q.year, "year", "y", 0, "vintage year")
	cmd.Flags().StringSliceVarP(&q.variables, "vars", "v", nil, "variables to download (comma separated or repeated)")
	cmd.Flags().StringArrayVarP(&q.geo, "geo", "g", nil, "geography filter key=value, e.g. state=34 or county=013,017 (repeatable)")
	cmd.Flags().BoolVar(&q.geometry, "geometry", false, "join cartographic boundaries")
}

func (q *queryFlags) request() (data.Request, error) {
	if err := requireFlag("dataset", q.dataset); err != nil {
		return data.Request{}, err
	}
	if q.year <= 0 {
		return data.Request{}, eris.New("--year is required")
	}
	if len(q.variables) == 0 {
		return data.Request{}, eris.New("--vars is required")
	}
	geo, err := parseGeo(q.geo)
	if err != nil {
		return data.Request{}, err
	}
	return data.Request{
		Dataset:      q.dataset,
		Year:         q.year,
		Variables:    q.variables,
		Geography:    geo,
		WithGeometry: q.geometry,
	}, nil
}

var (
	downloadQuery  queryFlags
	downloadFormat string
	downloadOut    string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download variables for a geography",
	Example: `  censusdis download -d dec/pl -y 2020 -v NAME,P1_001N -g state=*
  censusdis download -d acs/acs5 -y 2021 -v B19013_001E -g state=34 -g tract=* --geometry --format geojson -o nj.geojson`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, err := downloadQuery.request()
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(downloadFormat)
		if err != nil {
			return err
		}
		if format == export.GeoJSON {
			req.WithGeometry = true
		}
		if err := cfg.Validate("download"); err != nil {
			return err
		}

		env, err := initCensus(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := env.Downloader.Download(ctx, req)
		if err != nil {
			return err
		}

		if err := writeOutput(cmd, downloadOut, format, f); err != nil {
			return err
		}

		zap.L().Info("download complete",
			zap.String("dataset", req.Dataset),
			zap.Int("year", req.Year),
			zap.String("rows", count(f.NumRows())),
			zap.String("output", outputName(downloadOut)),
		)
		return nil
	},
}

// writeOutput writes f to path, or to stdout when path is empty or "-".
// A file that fails to close is reported, since its last writes may be
// lost.
func writeOutput(cmd *cobra.Command, path string, format export.Format, f *frame.Frame) (err error) {
	if path == "" || path == "-" {
		return export.Write(cmd.OutOrStdout(), format, f)
	}
	fh, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "close %s", path)
		}
	}()
	return export.Write(fh, format, f)
}

func outputName(path string) string {
	if path == "" || path == "-" {
		return "stdout"
	}
	return path
}

func init() {
	downloadQuery.register(downloadCmd)
	downloadCmd.Flags().StringVarP(&downloadFormat, "format", "f", "csv", "output format: csv, json, geojson or xlsx")
	downloadCmd.Flags().StringVarP(&downloadOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(downloadCmd)
}
