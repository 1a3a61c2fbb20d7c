package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Realignment run 2020-01",
		Headers: []string{"Collection", "Outcome", "New Start"},
		Rows: [][]string{
			{"Patch - Web Servers", "UPDATED", "2020-01-15 19:00"},
			{"Patch - DB Servers", "FAILED", ""},
		},
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := RenderCSV(sampleTable())
	require.NoError(t, err)
	assert.Contains(t, string(out), "Collection,Outcome,New Start")
	assert.Contains(t, string(out), "Patch - Web Servers,UPDATED,2020-01-15 19:00")
}

func TestRenderCSVRequiresHeaders(t *testing.T) {
	_, err := RenderCSV(Table{})
	assert.Error(t, err)
}

func TestRenderPDF(t *testing.T) {
	out, err := RenderPDF(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
