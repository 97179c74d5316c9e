package connector

import (
	"context"

	"github.com/novafit/nutriparse/backend/internal/types"
)

// Connector is one external nutrition provider. Search never returns an
// error: a provider that is unreachable, misconfigured, or empty contributes
// no candidates and the pipeline continues with the remaining providers.
type Connector interface {
	SourceName() string
	Search(ctx context.Context, query string) []types.NormalizedFood
}

// ClampConfidence bounds a confidence score to [0, 1].
func ClampConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
