package export

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/db"
	"github.com/sells-group/censusdis/internal/frame"
	"github.com/sells-group/censusdis/internal/maps"
)

const defaultBatchSize = 50000

// LoadMode says what ToPostgres does with an existing table.
type LoadMode string

// Load modes.
const (
	// Replace drops and recreates the table.
	Replace LoadMode = "replace"
	// Append adds rows, creating the table if needed.
	Append LoadMode = "append"
	// Upsert inserts rows or updates them by key.
	Upsert LoadMode = "upsert"
)

// LoadOptions configures ToPostgres.
type LoadOptions struct {
	Mode LoadMode
	// Keys are the columns identifying a row, required by Upsert. In a
	// newly created table they form the primary key.
	Keys      []string
	BatchSize int
}

// ToPostgres writes f into schema.table and returns the rows written.
// Column names are lowercased. Geometry lands in a PostGIS geometry column
// named geometry, with a GIST index.
func ToPostgres(ctx context.Context, pool db.Pool, schema, table string, f *frame.Frame, opts LoadOptions) (int64, error) {
	if opts.Mode == "" {
		opts.Mode = Append
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	columns := make([]string, 0, len(f.Names())+1)
	for _, n := range f.Names() {
		columns = append(columns, pgColumn(n))
	}
	if f.HasGeometry() {
		columns = append(columns, frame.GeometryColumn)
	}
	keys := make([]string, len(opts.Keys))
	for i, k := range opts.Keys {
		keys[i] = pgColumn(k)
		if !slices.Contains(columns, keys[i]) {
			return 0, eris.Errorf("export: key column %q is not in the frame", k)
		}
	}
	if opts.Mode == Upsert && len(keys) == 0 {
		return 0, eris.New("export: upsert needs key columns")
	}

	log := zap.L().With(
		zap.String("component", "export.postgres"),
		zap.String("table", schema+"."+table),
		zap.String("mode", string(opts.Mode)),
		zap.Int("rows", f.NumRows()),
	)

	if err := ensureTable(ctx, pool, schema, table, f, columns, keys, opts.Mode); err != nil {
		return 0, err
	}

	rows, err := pgRows(f)
	if err != nil {
		return 0, err
	}

	if opts.Mode == Upsert {
		n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        schema + "." + table,
			Columns:      columns,
			ConflictKeys: keys,
		}, rows)
		if err != nil {
			return 0, eris.Wrap(err, "export: upsert")
		}
		log.Info("export: upserted rows", zap.Int64("affected", n))
		return n, nil
	}

	var total int64
	for i := 0; i < len(rows); i += opts.BatchSize {
		end := min(i+opts.BatchSize, len(rows))
		n, err := db.CopyFromSchema(ctx, pool, schema, table, columns, rows[i:end])
		if err != nil {
			return total, eris.Wrapf(err, "export: batch %d-%d", i, end)
		}
		total += n
		log.Debug("batch loaded", zap.Int("batch_start", i), zap.Int("batch_end", end))
	}
	log.Info("export: loaded rows", zap.Int64("copied", total))
	return total, nil
}

func ensureTable(ctx context.Context, pool db.Pool, schema, table string, f *frame.Frame, columns, keys []string, mode LoadMode) error {
	qualified := pgx.Identifier{schema, table}.Sanitize()

	stmts := []string{fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize())}
	if mode == Replace {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualified))
	}

	defs := make([]string, 0, len(columns)+1)
	for i, c := range f.Columns() {
		defs = append(defs, fmt.Sprintf("%s %s", pgx.Identifier{columns[i]}.Sanitize(), pgType(c.Kind)))
	}
	if f.HasGeometry() {
		defs = append(defs, fmt.Sprintf("%s geometry(Geometry, %d)", pgx.Identifier{frame.GeometryColumn}.Sanitize(), maps.SRID))
	}
	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = pgx.Identifier{k}.Sanitize()
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, strings.Join(defs, ", ")))

	if f.HasGeometry() {
		idx := pgx.Identifier{fmt.Sprintf("idx_%s_geometry", table)}.Sanitize()
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
			idx, qualified, pgx.Identifier{frame.GeometryColumn}.Sanitize()))
	}

	for _, sql := range stmts {
		if _, err := pool.Exec(ctx, sql); err != nil {
			return eris.Wrapf(err, "export: prepare %s.%s", schema, table)
		}
	}
	return nil
}

// pgRows converts f into COPY rows. Geometry is EWKB.
func pgRows(f *frame.Frame) ([][]any, error) {
	cols := f.Columns()
	geoms := f.Geometry()
	rows := make([][]any, f.NumRows())
	for i := range rows {
		row := make([]any, 0, len(cols)+1)
		for _, c := range cols {
			row = append(row, c.Values[i])
		}
		if geoms != nil {
			b, err := encodeEWKB(geoms[i])
			if err != nil {
				return nil, eris.Wrapf(err, "export: row %d", i)
			}
			row = append(row, b)
		}
		rows[i] = row
	}
	return rows, nil
}

func encodeEWKB(g geom.T) (any, error) {
	if g == nil {
		return nil, nil
	}
	b, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "encode EWKB")
	}
	return b, nil
}

func pgType(k frame.Kind) string {
	switch k {
	case frame.Int:
		return "BIGINT"
	case frame.Float:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func pgColumn(name string) string {
	return strings.ToLower(name)
}
