package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter rune // zero means ','
	Comment   rune // lines starting with it are skipped; zero disables
	// SkipRows drops this many leading records, before the header.
	SkipRows   int
	HasHeader  bool
	HeaderCh   chan<- []string // receives the header when HasHeader is set
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV parses r in a goroutine and sends each record on the returned
// channel. Ragged records are allowed. Both channels close when parsing
// ends; at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.Comment = opts.Comment
	cr.LazyQuotes = opts.LazyQuotes
	cr.FieldsPerRecord = -1

	send := func(ch chan<- []string, rec []string) error {
		select {
		case ch <- rec:
			return nil
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
	}

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for n := 0; ; n++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}
			rec, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: read record %d", n+1)
				return
			}
			if n < opts.SkipRows {
				continue
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}

			if opts.HasHeader && n == opts.SkipRows {
				if opts.HeaderCh != nil {
					if err := send(opts.HeaderCh, rec); err != nil {
						errCh <- err
						return
					}
				}
				continue
			}
			if err := send(rowCh, rec); err != nil {
				errCh <- err
				return
			}
		}
	}()

	return rowCh, errCh
}
