package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/status"
)

func init() {
	color.NoColor = true
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// offlineConfig writes a configuration that needs no model endpoint for
// decomposing, routing and naive indexing.
func offlineConfig(t *testing.T) string {
	t.Helper()
	rules, err := filepath.Abs(filepath.Join("..", "..", "testdata", "rules.yml"))
	require.NoError(t, err)

	return writeFile(t, t.TempDir(), "queryroute.yml", `
rules:
  decompositions: `+rules+`
  routes: `+rules+`
naive_rag:
  embedding_model: hash
  splitter: rune
graph_rag:
  splitter: rune
log:
  level: error
`)
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "queryroute version dev\n", out)
}

func TestRouteCmd(t *testing.T) {
	cfg := offlineConfig(t)

	out, err := run(t, "--config", cfg, "route", "谁是美国总统且美国首都在哪里？")
	require.NoError(t, err)
	assert.Equal(t, "1. 谁是美国总统？ -> naive_rag\n2. 美国首都在哪里？ -> graph_rag\n", out)

	out, err = run(t, "--config", cfg, "route", "--format", "json", "如何制作蛋糕")
	require.NoError(t, err)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []map[string]string{{"subquery": "如何制作蛋糕？", "strategy": "naive_rag"}}, rows)
}

func TestRouteCmd_UnknownQueryDefaultsToNoRAG(t *testing.T) {
	out, err := run(t, "--config", offlineConfig(t), "route", "今天", "星期几")
	require.NoError(t, err)
	assert.Equal(t, "1. 今天 星期几 -> no_rag\n", out)
}

func TestQueryCmd_UnknownFormat(t *testing.T) {
	_, err := run(t, "--config", offlineConfig(t), "query", "--format", "xml", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestCmd_MissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yml"), "route", "q")
	assert.Error(t, err)
}

func TestCmd_InvalidLogLevel(t *testing.T) {
	_, err := run(t, "--config", offlineConfig(t), "--log-level", "loud", "route", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestStatusCmd(t *testing.T) {
	out, err := run(t, "--config", offlineConfig(t), "status", "--json")
	require.NoError(t, err)

	var report status.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "full", report.Level)
	require.Len(t, report.Strategies, 3)
	require.NotNil(t, report.NaiveIndex)
	assert.Equal(t, "memory", report.NaiveIndex.Store)
	assert.Equal(t, 0, report.NaiveIndex.Chunks)
	require.NotNil(t, report.GraphIndex)
	assert.NotEmpty(t, report.GraphIndex.Error)

	out, err = run(t, "--config", offlineConfig(t), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Capability: full")
	assert.Contains(t, out, "naive_rag index (memory): 0 chunk(s)")
}

func TestIndexNaiveCmd(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "doc.txt", "上海的GDP在2023年约为4.7万亿元。")
	lines := writeFile(t, dir, "docs.jsonl", `{"id": "a", "context": "one"}`+"\n"+`{"id": "b", "context": "two"}`+"\n")

	out, err := run(t, "--config", offlineConfig(t), "index", "naive", doc, lines)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 3 document(s) for naive_rag")
}

func TestIndexCmd_NoDocuments(t *testing.T) {
	empty := writeFile(t, t.TempDir(), "empty.txt", "  \n")
	_, err := run(t, "--config", offlineConfig(t), "index", "naive", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}

func TestDiagramCmd(t *testing.T) {
	out, err := run(t, "--config", offlineConfig(t), "diagram", filepath.Join("..", "..", "testdata", "graphrag"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "华盛顿")
	assert.Contains(t, out, "-->|华盛顿是美国的首都|")

	_, err = run(t, "--config", offlineConfig(t), "diagram", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no graph index")
}

func TestPreprocessHotpotQACmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "qa.json", `[{"question": "q", "context": ["a", "b"]}]`)
	outPath := filepath.Join(dir, "qa.jsonl")

	out, err := run(t, "preprocess", "hotpotqa", in, outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 document(s)")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &doc))
	assert.Equal(t, "hotpotqa_0", doc["id"])
	assert.Equal(t, "a\n\nb", doc["context"])
}

func TestParseContext(t *testing.T) {
	c, err := parseContext([]string{
		"data_path=/idx",
		"search_mode=local",
		`documents=["x","y"]`,
		"expr=a=b",
		"broken=[not json",
	})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Context{
		"data_path":   "/idx",
		"search_mode": "local",
		"documents":   []any{"x", "y"},
		"expr":        "a=b",
		"broken":      "[not json",
	}, c)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseContext([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestReadDocuments(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.md", "\n first \n")
	b := writeFile(t, dir, "b.JSONL", `{"context": "second"}`+"\n")

	docs, err := readDocuments([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, docs)

	_, err = readDocuments([]string{filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
}
