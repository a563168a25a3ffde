package output

import (
	"io"
)

// TextHandler prints every item as soon as it is handled.
type TextHandler[T any] struct {
	out     io.Writer
	printer Printer[T]
	count   int
}

func NewTextHandler[T any](w io.Writer, p Printer[T]) *TextHandler[T] {
	return &TextHandler[T]{
		out:     w,
		printer: p,
	}
}

// Writer returns the underlying io.Writer where text will be written.
func (h *TextHandler[T]) Writer() io.Writer {
	return h.out
}

// HandleItem prints item, preceded by the header for the first item.
func (h *TextHandler[T]) HandleItem(item T) error {
	if h.count == 0 {
		h.printer.Header(h.out, 0)
	}
	h.count++
	return h.printer.Item(h.out, item)
}

// Finish prints the footer, or a placeholder when nothing was handled.
func (h *TextHandler[T]) Finish() error {
	if h.count == 0 {
		_, err := io.WriteString(h.out, "No items found\n")
		return err
	}

	h.printer.Footer(h.out, h.count)
	return nil
}

// HandleError returns err unchanged, leaving it to the caller to report.
func (h *TextHandler[T]) HandleError(err error) error {
	return err
}
