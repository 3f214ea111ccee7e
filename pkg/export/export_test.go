package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Title:   "Audit log export",
		Headers: []string{"id", "action", "details"},
		Rows: [][]string{
			{"01J0", "user.created", `{"email":"a@example.com"}`},
			{"01J1", "page.updated", "=HYPERLINK(\"http://evil\")"},
		},
	}
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(sample())
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "id,action,details", string(lines[0]))
	assert.Contains(t, string(lines[2]), `'=HYPERLINK`)
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := sample()
	data.Rows = append(data.Rows, []string{"only-one"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	data := sample()
	for i := 0; i < 80; i++ {
		data.Rows = append(data.Rows, []string{"id", "request.denied", "a very long details column that will need to be truncated before drawing"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	r, err := reg.Get("CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", r.ContentType())

	_, err = reg.Get("xlsx")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	long := truncate(string(bytes.Repeat([]byte("x"), 100)))
	assert.Len(t, long, pdfMaxCellRune)
}
