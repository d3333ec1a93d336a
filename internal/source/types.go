package source

import (
	"context"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/health"
)

// Result is what one source run hands the pipeline: the qualifying records
// plus the health signal for the run. The pipeline never parses source
// payloads itself.
type Result struct {
	Jobs    []domain.JobRecord
	Outcome health.Outcome
}

type Fetcher interface {
	Name() string
	// Fetch returns partial results where it can; a returned error means
	// the whole run failed and is converted into a failure outcome by the
	// pipeline, never a crashed run.
	Fetch(ctx context.Context) (Result, error)
}
