package cmd

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cvforge/payinit/internal/cmd/output"
)

func TestAllowedOutputFormats(t *testing.T) {
	t.Parallel()

	want := OutputFormats{FormatJSON, FormatText, FormatYAML}
	got := AllowedOutputFormats()

	require.Equal(t, want, got)
}

func TestOutputFormats_String(t *testing.T) {
	t.Parallel()

	f := AllowedOutputFormats()
	// Should join lower-case names in lexicographical order
	want := "json, text, yaml"
	got := f.String()

	require.Equal(t, want, got)
}

func TestOutputFormat_StringAndType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fmt  OutputFormat
		want string
	}{
		{
			"JSON",
			FormatJSON,
			"json",
		},
		{
			"Text",
			FormatText,
			"text",
		},
		{
			"YAML",
			FormatYAML,
			"yaml",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, tc.fmt.String())
			require.Equal(t, "format", tc.fmt.Type())
		})
	}
}

func TestOutputFormat_Set_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  OutputFormat
	}{
		{
			"json",
			"json",
			FormatJSON,
		},
		{
			"text",
			"text",
			FormatText,
		},
		{
			"yaml",
			"yaml",
			FormatYAML,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var f OutputFormat
			err := f.Set(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.want, f)
		})
	}
}

func TestOutputFormat_Set_Invalid(t *testing.T) {
	t.Parallel()

	invalid := "xml"
	var f OutputFormat
	err := f.Set(invalid)
	require.Error(t, err)
	// error message should mention invalid value and allowed list
	require.ErrorContains(t, err, fmt.Sprintf("invalid format '%s'", invalid))
	allowed := AllowedOutputFormats()
	require.Contains(t, err.Error(), allowed.String())
}

type linePrinter struct{}

func (linePrinter) Header(io.Writer, int) {}

func (linePrinter) Item(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}

func (linePrinter) Footer(io.Writer, int) {}

func TestNewOutputHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		format   OutputFormat
		expected string
	}{
		{name: "json", format: FormatJSON, expected: "{\n  \"results\": [\n    \"ready\"\n  ]\n}\n"},
		{name: "yaml", format: FormatYAML, expected: "results:\n  - ready\n"},
		{name: "text", format: FormatText, expected: "ready\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			h, err := NewOutputHandler[string](tc.format, buf, linePrinter{})
			require.NoError(t, err)

			require.NoError(t, h.HandleItem("ready"))
			require.NoError(t, h.Finish())
			require.Equal(t, tc.expected, buf.String())
		})
	}
}

func TestNewOutputHandler_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewOutputHandler[string](FormatText, &bytes.Buffer{}, nil)
	require.EqualError(t, err, "text output requires a printer")

	_, err = NewOutputHandler[string](OutputFormat("xml"), &bytes.Buffer{}, linePrinter{})
	require.EqualError(t, err, "unsupported format 'xml', must be one of json, text, yaml")

	var p output.Printer[string] = linePrinter{}
	_, err = NewOutputHandler(FormatJSON, &bytes.Buffer{}, p)
	require.NoError(t, err)
}
