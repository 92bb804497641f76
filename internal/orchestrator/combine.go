package orchestrator

import (
	"fmt"
	"strings"
)

const (
	// NoResultsSentinel is returned when there is nothing to combine.
	NoResultsSentinel = "No results produced."

	// BlockSeparator joins the formatted per-sub-query blocks.
	BlockSeparator = "\n\n---\n\n"
)

// Combiner merges ordered execution results into one answer.
type Combiner interface {
	Combine(results []ExecutionResult) string
}

// CombinerFunc adapts a function to the Combiner interface.
type CombinerFunc func(results []ExecutionResult) string

// Combine calls f.
func (f CombinerFunc) Combine(results []ExecutionResult) string { return f(results) }

// BlockCombiner formats every result as a three-line block and joins the
// blocks with BlockSeparator, in input order.
type BlockCombiner struct{}

var _ Combiner = BlockCombiner{}

// Combine implements Combiner.
func (BlockCombiner) Combine(results []ExecutionResult) string {
	return Combine(results)
}

// Combine is the default order-preserving combination. It performs no
// ranking, deduplication or summarization.
func Combine(results []ExecutionResult) string {
	if len(results) == 0 {
		return NoResultsSentinel
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = FormatBlock(r)
	}
	return strings.Join(blocks, BlockSeparator)
}

// FormatBlock renders one result as "Query / Strategy / Result" lines.
func FormatBlock(r ExecutionResult) string {
	return fmt.Sprintf("Query: %s\nStrategy: %s\nResult: %s", r.Subquery, r.Strategy, r.Result)
}
