package hotpotqa

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestConvert(t *testing.T) {
	in := `[
  {"question": "谁是美国总统？", "context": ["第一段", "第二段"]},
  {"id": "custom", "question": "q2", "context": "already flat"},
  {"question": "q3", "context": [["Title", ["Sentence one. ", "Sentence two."]]]}
]`
	var out bytes.Buffer
	n, err := Convert(strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "hotpotqa_0", gjson.Get(lines[0], "id").String())
	assert.Equal(t, "第一段\n\n第二段", gjson.Get(lines[0], "context").String())
	assert.Equal(t, "谁是美国总统？", gjson.Get(lines[0], "question").String())
	assert.Contains(t, lines[0], "谁是美国总统", "non-ASCII is written verbatim")

	assert.Equal(t, "custom", gjson.Get(lines[1], "id").String())
	assert.Equal(t, "already flat", gjson.Get(lines[1], "context").String())

	assert.Equal(t, "hotpotqa_2", gjson.Get(lines[2], "id").String())
	assert.Equal(t, "Title\nSentence one. Sentence two.", gjson.Get(lines[2], "context").String())
}

func TestConvert_Errors(t *testing.T) {
	var out bytes.Buffer

	_, err := Convert(strings.NewReader(`{"id": 1}`), &out)
	assert.ErrorIs(t, err, ErrNotArray)

	_, err = Convert(strings.NewReader(`[{`), &out)
	assert.Error(t, err)
}

func TestContexts(t *testing.T) {
	in := `{"id": "a", "context": "one"}

{"id": "b"}
{"id": "c", "context": "two"}
`
	got, err := Contexts(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, got)

	_, err = Contexts(strings.NewReader("not json\n"))
	assert.Error(t, err)
}

func TestFlatten_TitledPassages(t *testing.T) {
	got := flatten([]any{
		[]any{"白宫", []any{"白宫位于华盛顿。", "它是总统官邸。"}},
		[]any{[]any{"No title."}},
		"plain",
	})
	assert.Equal(t, "白宫\n白宫位于华盛顿。它是总统官邸。\n\nNo title.\n\nplain", got)
}
