package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLHandler buffers items and writes them as a single YAML document, honoring struct tags.
// Items are wrapped in a top-level `results` field, or an `error` field on failure.
type YAMLHandler[T any] struct {
	out    io.Writer
	indent int
	items  []T
}

// NewYAMLHandler constructs a new YAMLHandler for items of type T.
// indentSpaces controls the number of spaces to indent nested nodes.
func NewYAMLHandler[T any](w io.Writer, indentSpaces int) *YAMLHandler[T] {
	return &YAMLHandler[T]{
		out:    w,
		indent: indentSpaces,
		items:  []T{},
	}
}

// Writer returns the underlying io.Writer where YAML will be written.
func (h *YAMLHandler[T]) Writer() io.Writer {
	return h.out
}

// HandleItem buffers item until Finish is called.
func (h *YAMLHandler[T]) HandleItem(item T) error {
	h.items = append(h.items, item)
	return nil
}

// Finish writes the buffered items under a "results" key.
func (h *YAMLHandler[T]) Finish() error {
	return h.encode(ResultsPayload[T]{Results: h.items})
}

// HandleError writes the error string under an "error" key.
func (h *YAMLHandler[T]) HandleError(err error) error {
	return h.encode(ErrorPayload{Error: err.Error()})
}

func (h *YAMLHandler[T]) encode(v any) error {
	enc := yaml.NewEncoder(h.out)
	defer func(enc *yaml.Encoder) {
		// Ensure encoder is closed to flush any buffered data.
		_ = enc.Close()
	}(enc)

	enc.SetIndent(h.indent)
	return enc.Encode(v)
}
