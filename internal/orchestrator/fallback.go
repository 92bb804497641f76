package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// decompose runs the decomposer and applies the two fallbacks of the
// decompose stage:
//
//   - an empty decomposition is replaced by the original query, always;
//   - a decomposer error is replaced by the original query only when
//     Options.DecomposeFallback is set, and is returned otherwise.
//
// This is the only place the sub-query sequence is overwritten. The boolean
// result is true when the error fallback was taken.
func (p *Pipeline) decompose(ctx context.Context, query string) ([]string, bool, error) {
	p.emit(ProgressEvent{Stage: StageDecompose, Subquery: query, Status: ProgressWorking})

	if p.decomposer == nil {
		return nil, false, errNilDecomposer
	}

	parts, err := p.decomposer.Decompose(ctx, query)
	if err != nil {
		if !p.opts.DecomposeFallback {
			p.emit(ProgressEvent{Stage: StageDecompose, Subquery: query, Status: ProgressFailed, Message: err.Error()})
			return nil, false, wrapDecomposeErr(err)
		}
		p.logger.Warn("pipeline: decomposition failed, processing query unsplit",
			zap.String("query", query),
			zap.Error(err),
		)
		p.emit(ProgressEvent{Stage: StageDecompose, Subquery: query, Status: ProgressComplete, Message: "fallback"})
		return []string{query}, true, nil
	}

	subqueries := nonBlank(parts)
	if len(subqueries) == 0 {
		p.logger.Debug("pipeline: empty decomposition, using original query", zap.String("query", query))
		subqueries = []string{query}
	}

	p.emit(ProgressEvent{Stage: StageDecompose, Subquery: query, Status: ProgressComplete})
	return subqueries, false, nil
}

// nonBlank drops entries that are empty after trimming whitespace. Entries
// are otherwise kept verbatim.
func nonBlank(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
