package orchestrator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine_Empty_ReturnsSentinel(t *testing.T) {
	assert.Equal(t, NoResultsSentinel, Combine(nil))
	assert.Equal(t, NoResultsSentinel, Combine([]ExecutionResult{}))
}

func TestCombine_SingleBlock(t *testing.T) {
	got := Combine([]ExecutionResult{{Subquery: "q", Strategy: NoRAG, Result: "a"}})
	assert.Equal(t, "Query: q\nStrategy: no_rag\nResult: a", got)
}

func TestCombine_PreservesOrder(t *testing.T) {
	results := []ExecutionResult{
		{Subquery: "first", Strategy: NaiveRAG, Result: "1"},
		{Subquery: "second", Strategy: GraphRAG, Result: "2"},
		{Subquery: "third", Strategy: NoRAG, Result: "3"},
	}

	got := Combine(results)
	blocks := strings.Split(got, BlockSeparator)

	assert.Len(t, blocks, 3)
	for i, r := range results {
		assert.True(t, strings.HasPrefix(blocks[i], "Query: "+r.Subquery+"\n"), "block %d out of order", i)
	}
}

func TestCombine_LengthScalesLinearly(t *testing.T) {
	// Identical results: each extra result adds exactly one block plus one separator.
	build := func(n int) []ExecutionResult {
		out := make([]ExecutionResult, n)
		for i := range out {
			out[i] = ExecutionResult{Subquery: "q", Strategy: NoRAG, Result: "r"}
		}
		return out
	}
	block := len(FormatBlock(ExecutionResult{Subquery: "q", Strategy: NoRAG, Result: "r"}))

	for n := 1; n <= 5; n++ {
		want := n*block + (n-1)*len(BlockSeparator)
		assert.Equal(t, want, len(Combine(build(n))), fmt.Sprintf("n=%d", n))
	}
}

func TestBlockCombiner_MatchesCombine(t *testing.T) {
	results := []ExecutionResult{{Subquery: "a", Strategy: NoRAG, Result: "x"}}
	assert.Equal(t, Combine(results), BlockCombiner{}.Combine(results))
}
