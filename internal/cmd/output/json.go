package output

import (
	"encoding/json"
	"io"
	"strings"
)

// JSONHandler buffers items and writes them as a single JSON document, honoring struct tags.
type JSONHandler[T any] struct {
	out    io.Writer
	indent string
	items  []T
}

func NewJSONHandler[T any](w io.Writer, indentSpaces int) *JSONHandler[T] {
	return &JSONHandler[T]{
		out:    w,
		indent: strings.Repeat(" ", indentSpaces),
		items:  []T{},
	}
}

// Writer returns the underlying io.Writer where JSON will be written.
func (h *JSONHandler[T]) Writer() io.Writer {
	return h.out
}

// HandleItem buffers item until Finish is called.
func (h *JSONHandler[T]) HandleItem(item T) error {
	h.items = append(h.items, item)
	return nil
}

// Finish writes the buffered items under a "results" key.
func (h *JSONHandler[T]) Finish() error {
	return h.encode(ResultsPayload[T]{Results: h.items})
}

// HandleError writes the error string under an "error" key.
func (h *JSONHandler[T]) HandleError(err error) error {
	return h.encode(ErrorPayload{Error: err.Error()})
}

func (h *JSONHandler[T]) encode(v any) error {
	enc := json.NewEncoder(h.out)
	enc.SetIndent("", h.indent)
	return enc.Encode(v)
}
