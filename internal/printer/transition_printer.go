package printer

import (
	"fmt"
	"io"
	"time"

	"github.com/cvforge/payinit/internal/cmd/output"
	"github.com/cvforge/payinit/internal/domain"
)

var _ output.Printer[Transition] = (*TransitionPrinter)(nil)

// Transition is one observed state change of a payment dialog.
type Transition struct {
	State    domain.State  `json:"state"             yaml:"state"`
	Reason   domain.Reason `json:"reason,omitempty"  yaml:"reason,omitempty"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Detail   string        `json:"detail,omitempty"  yaml:"detail,omitempty"`
	Attempts int           `json:"attempts"          yaml:"attempts"`

	// ElapsedMS is the time since the dialog was opened, in milliseconds.
	ElapsedMS int64 `json:"elapsedMs" yaml:"elapsed_ms"`
}

// NewTransition records snap as observed elapsed after the dialog was opened.
func NewTransition(snap domain.Snapshot, elapsed time.Duration) Transition {
	return Transition{
		State:     snap.State,
		Reason:    snap.Reason,
		Message:   snap.Message,
		Detail:    snap.Detail,
		Attempts:  snap.Attempts,
		ElapsedMS: elapsed.Milliseconds(),
	}
}

// TransitionPrinter prints dialog transitions as a timeline.
type TransitionPrinter struct {
	headerFunc output.WriteFunc[Transition]
	footerFunc output.WriteFunc[Transition]
	last       Transition
}

func NewTransitionPrinter() *TransitionPrinter {
	return &TransitionPrinter{
		headerFunc: DefaultTransitionHeader(),
	}
}

func DefaultTransitionHeader() output.WriteFunc[Transition] {
	return func(w io.Writer, _ int) {
		_, _ = fmt.Fprintln(w, "Payment dialog transitions:")
		_, _ = fmt.Fprintln(w, "")
	}
}

func (p *TransitionPrinter) Header(w io.Writer, count int) {
	if p.headerFunc != nil {
		p.headerFunc(w, count)
	}
}

func (p *TransitionPrinter) SetHeader(fn output.WriteFunc[Transition]) {
	p.headerFunc = fn
}

func (p *TransitionPrinter) Item(w io.Writer, t Transition) error {
	p.last = t

	line := fmt.Sprintf("  %6dms  %-16s attempt %d", t.ElapsedMS, t.State, t.Attempts)
	if t.State == domain.StateError {
		line += fmt.Sprintf("  [%s] %s", t.Reason, t.Message)
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}

	if t.Detail != "" {
		if _, err := fmt.Fprintf(w, "            %s\n", t.Detail); err != nil {
			return err
		}
	}

	return nil
}

// Footer prints the final state, unless a custom footer was set.
func (p *TransitionPrinter) Footer(w io.Writer, count int) {
	if p.footerFunc != nil {
		p.footerFunc(w, count)
		return
	}

	_, _ = fmt.Fprintln(w, "")
	switch p.last.State {
	case domain.StateReady:
		_, _ = fmt.Fprintf(w, "✅ Payment SDK ready after %d transition(s)\n", count)
	case domain.StateError:
		_, _ = fmt.Fprintf(w, "❌ Payment SDK failed: %s\n", p.last.Reason)
	default:
		_, _ = fmt.Fprintf(w, "⏹ Stopped in state '%s'\n", p.last.State)
	}
}

func (p *TransitionPrinter) SetFooter(fn output.WriteFunc[Transition]) {
	p.footerFunc = fn
}
