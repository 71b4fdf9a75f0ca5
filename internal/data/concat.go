package data

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/frame"
)

// downloadConcat downloads more variables than one query allows by splitting
// them into chunks and putting the results back together. Aligned chunks are
// placed side by side. Otherwise they are joined on the geography columns,
// which must then identify rows uniquely.
func (d *Downloader) downloadConcat(ctx context.Context, req Request, bindings map[string]string) (*frame.Frame, error) {
	chunks := chunkVariables(req.Variables, MaxVariablesPerQuery)
	if len(chunks) < 2 {
		return nil, eris.Errorf("data: split of %d variables gave %d chunks", len(req.Variables), len(chunks))
	}

	log := zap.L().With(
		zap.String("dataset", req.Dataset),
		zap.Int("year", req.Year),
		zap.Int("variables", len(req.Variables)),
		zap.Int("chunks", len(chunks)),
	)
	log.Info("data: splitting wide download")

	frames := make([]*frame.Frame, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, vars := range chunks {
		g.Go(func() error {
			sub := req
			sub.Variables = vars
			// Geometry rides on the first chunk only.
			sub.WithGeometry = req.WithGeometry && i == 0
			f, err := d.downloadOne(gctx, sub, bindings)
			if err != nil {
				return eris.Wrapf(err, "data: chunk %d", i)
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(req.Variables))
	for _, v := range req.Variables {
		requested[strings.ToUpper(v)] = true
	}
	var extras []string
	for _, n := range frames[0].Names() {
		if !requested[n] {
			extras = append(extras, n)
		}
	}

	aligned := true
	for _, f := range frames[1:] {
		if !f.EqualOn(frames[0], extras...) {
			aligned = false
			break
		}
	}

	if aligned {
		rest := make([]*frame.Frame, len(frames)-1)
		for i, f := range frames[1:] {
			rest[i] = f.Drop(extras...)
		}
		out, err := frames[0].HConcat(rest...)
		if err != nil {
			return nil, eris.Wrap(err, "data: concat chunks")
		}
		d.countStrategy(false)
		log.Debug("data: chunks concatenated")
		return out, nil
	}

	for i, f := range frames {
		unique, err := f.UniqueOn(extras...)
		if err != nil {
			return nil, eris.Wrapf(err, "data: chunk %d", i)
		}
		if !unique {
			return nil, census.NewAPIError(
				"data: the %d variables requested from %s %d had to be downloaded in %d chunks of up to %d. "+
					"The chunks came back with rows in different orders and the columns %v do not identify "+
					"rows uniquely, so they cannot be joined. Request fewer variables at a time",
				len(req.Variables), req.Dataset, req.Year, len(chunks), MaxVariablesPerQuery, extras,
			)
		}
	}

	out := frames[0]
	for i, f := range frames[1:] {
		var err error
		out, err = out.InnerJoin(f, extras...)
		if err != nil {
			return nil, eris.Wrapf(err, "data: merge chunk %d", i+1)
		}
	}
	d.countStrategy(true)
	log.Debug("data: chunks merged", zap.Int("rows", out.NumRows()))
	return out, nil
}

func chunkVariables(vars []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(vars); start += size {
		end := min(start+size, len(vars))
		out = append(out, vars[start:end])
	}
	return out
}
