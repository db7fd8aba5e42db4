package ingest

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/store"
)

// Options controls one ingest pass.
type Options struct {
	Format         string // "json" or "csv"
	DryRun         bool
	SkipValidation bool
	NormalizeKeys  bool
	Rules          Rules
}

// Pipeline is the parse -> validate -> save flow. Store may be nil when
// the caller only wants parsed records back.
type Pipeline struct {
	store store.Store
}

// NewPipeline creates a pipeline over the given store.
func NewPipeline(st store.Store) *Pipeline {
	return &Pipeline{store: st}
}

// Run parses raw input, optionally lowercases keys, validates unless
// skipped, and saves unless dry-run. Returns the parsed records. Each
// pass gets a fresh ingest ID for log correlation.
func (p *Pipeline) Run(ctx context.Context, raw string, opts Options) ([]artifact.Record, error) {
	ingestID := uuid.New().String()
	log := zap.L().With(zap.String("ingest_id", ingestID), zap.String("format", opts.Format))

	var records []artifact.Record
	var err error
	switch opts.Format {
	case "json":
		records, err = ParseJSON(raw)
	case "csv":
		records, err = ParseCSV(raw)
	default:
		return nil, eris.Errorf("ingest: unknown format: %s", opts.Format)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("ingest: parsed", zap.Int("records", len(records)))

	if opts.NormalizeKeys {
		records = lowercaseKeys(records)
	}

	if !opts.SkipValidation {
		if err := Validate(records, opts.Rules); err != nil {
			return nil, eris.Wrap(err, "ingest: validate")
		}
		log.Debug("ingest: validated")
	}

	if p.store != nil && !opts.DryRun {
		if err := p.store.Save(ctx, records); err != nil {
			return nil, eris.Wrap(err, "ingest: save")
		}
		log.Info("ingest: saved", zap.Int("records", len(records)))
	}

	return records, nil
}

func lowercaseKeys(records []artifact.Record) []artifact.Record {
	out := make([]artifact.Record, len(records))
	for i, rec := range records {
		lowered := make(artifact.Record, len(rec))
		for k, v := range rec {
			lowered[strings.ToLower(k)] = v
		}
		out[i] = lowered
	}
	return out
}
