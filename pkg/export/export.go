package export

import (
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Row cells follow Headers order.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Registry resolves renderers by format name.
type Registry map[string]Renderer

// DefaultRegistry returns the csv and pdf renderers.
func DefaultRegistry() Registry {
	return Registry{
		"csv": NewCSVExporter(),
		"pdf": NewPDFExporter(),
	}
}

// Get returns the renderer registered for format.
func (r Registry) Get(format string) (Renderer, error) {
	renderer, ok := r[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return renderer, nil
}

func validate(data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("export requires at least one header")
	}
	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(data.Headers))
		}
	}
	return nil
}
