package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/export"
	"github.com/sells-group/censusdis/internal/fetcher"
	"github.com/sells-group/censusdis/internal/frame"
)

// tableInput says how to read the table given to `censusdis geometry`.
type tableInput struct {
	path       string
	sheet      string
	skipRows   int
	delimiter  string
	comment    string
	lazyQuotes bool
}

var (
	geometryInput  tableInput
	geometryYear   int
	geometryLevel  string
	geometryScope  string
	geometryFormat string
	geometryOut    string
)

var geometryCmd = &cobra.Command{
	Use:   "geometry",
	Short: "Join boundaries onto a CSV or XLSX file of Census geography columns",
	Long: "Reads a table whose columns identify Census geographies (STATE, COUNTY, TRACT, ...), " +
		"infers the geography level unless --level is given, and writes it back with boundaries attached. " +
		"Tract and block group boundaries are read per state, from the STATE column unless --scope names one.",
	Example: `  censusdis geometry -i counties.csv -y 2020 -o counties.geojson
  censusdis geometry -i report.xlsx --sheet Tracts --skip-rows 2 -y 2020 --level tract`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireFlag("in", geometryInput.path); err != nil {
			return err
		}
		if geometryYear <= 0 {
			return eris.New("--year is required")
		}
		format, err := export.ParseFormat(geometryFormat)
		if err != nil {
			return err
		}

		f, err := readTable(ctx, geometryInput)
		if err != nil {
			return err
		}

		env, err := initCensus(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if geometryLevel == "" {
			f, err = env.Downloader.AddInferredGeography(ctx, f, geometryYear)
		} else {
			f, err = env.Downloader.AddGeography(ctx, f, geometryYear, geometryScope, geometryLevel)
		}
		if err != nil {
			return err
		}

		if err := writeOutput(cmd, geometryOut, format, f); err != nil {
			return err
		}

		zap.L().Info("geometry joined",
			zap.String("input", geometryInput.path),
			zap.String("rows", count(f.NumRows())),
		)
		return nil
	},
}

// readTable loads a CSV or XLSX file into a frame of string columns. The
// first row after the skipped ones is the header.
func readTable(ctx context.Context, in tableInput) (*frame.Frame, error) {
	if in.skipRows < 0 {
		return nil, eris.New("--skip-rows must be >= 0")
	}

	var (
		header []string
		rows   [][]string
	)
	switch strings.ToLower(filepath.Ext(in.path)) {
	case ".xlsx":
		opts := fetcher.XLSXOptions{SkipRows: in.skipRows}
		if i, err := strconv.Atoi(in.sheet); err == nil {
			opts.SheetIndex = i
		} else {
			opts.SheetName = in.sheet
		}
		records, err := fetcher.ReadXLSX(in.path, opts)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			header, rows = records[0], records[1:]
		}
	default:
		opts, err := in.csvOptions()
		if err != nil {
			return nil, err
		}
		fh, err := os.Open(in.path)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", in.path)
		}
		defer fh.Close() //nolint:errcheck

		headerCh := make(chan []string, 1)
		opts.HeaderCh = headerCh
		rowCh, errCh := fetcher.StreamCSV(ctx, fh, opts)
		for row := range rowCh {
			rows = append(rows, row)
		}
		if err := <-errCh; err != nil {
			return nil, err
		}
		select {
		case header = <-headerCh:
		default:
		}
	}
	if len(header) == 0 {
		return nil, eris.Errorf("%s has no header row", in.path)
	}
	return frame.FromRecords(header, rows)
}

func (in tableInput) csvOptions() (fetcher.CSVOptions, error) {
	opts := fetcher.CSVOptions{
		SkipRows:   in.skipRows,
		HasHeader:  true,
		LazyQuotes: in.lazyQuotes,
		TrimSpace:  true,
	}
	var err error
	if opts.Delimiter, err = singleRune("delimiter", in.delimiter); err != nil {
		return opts, err
	}
	if opts.Comment, err = singleRune("comment", in.comment); err != nil {
		return opts, err
	}
	return opts, nil
}

// singleRune parses a one-character flag. "tab" and `\t` mean a tab.
func singleRune(flag, v string) (rune, error) {
	switch v {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(v) != 1 {
		return 0, eris.Errorf("--%s must be a single character, got %q", flag, v)
	}
	r, _ := utf8.DecodeRuneInString(v)
	return r, nil
}

func init() {
	geometryCmd.Flags().StringVarP(&geometryInput.path, "in", "i", "", "input .csv or .xlsx file")
	geometryCmd.Flags().StringVar(&geometryInput.sheet, "sheet", "", "xlsx sheet name or zero-based index (default first sheet)")
	geometryCmd.Flags().IntVar(&geometryInput.skipRows, "skip-rows", 0, "leading rows to skip before the header")
	geometryCmd.Flags().StringVar(&geometryInput.delimiter, "delimiter", ",", "csv field delimiter; \"tab\" for tab separated")
	geometryCmd.Flags().StringVar(&geometryInput.comment, "comment", "", "csv comment character")
	geometryCmd.Flags().BoolVar(&geometryInput.lazyQuotes, "lazy-quotes", false, "accept stray quotes in csv fields")
	geometryCmd.Flags().IntVarP(&geometryYear, "year", "y", 0, "boundary vintage")
	geometryCmd.Flags().StringVar(&geometryLevel, "level", "", "geography level (default inferred from columns)")
	geometryCmd.Flags().StringVar(&geometryScope, "scope", "", "state FIPS for tract and block group (default each row's STATE)")
	geometryCmd.Flags().StringVarP(&geometryFormat, "format", "f", "geojson", "output format: csv, json, geojson or xlsx")
	geometryCmd.Flags().StringVarP(&geometryOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(geometryCmd)
}
