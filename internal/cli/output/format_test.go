package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":      FormatTable,
		"table": FormatTable,
		"JSON":  FormatJSON,
		" json": FormatJSON,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

type recordRenderer struct{}

func (recordRenderer) Headers() []string   { return []string{"A"} }
func (recordRenderer) Rows() [][]string    { return [][]string{{"1"}} }

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, recordRenderer{}))
	assert.Contains(t, buf.String(), "1")

	buf.Reset()
	require.NoError(t, Print(&buf, FormatJSON, map[string]int{"a": 1}))
	assert.Contains(t, buf.String(), `"a": 1`)
}
