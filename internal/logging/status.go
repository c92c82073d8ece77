package logging

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mitchellh/colorstring"
)

// Status prints human-facing progress lines such as
// "[12:04:05] scss → OK". Color codes use colorstring syntax
// ("[green]OK[reset]") and are stripped when color is disabled.
type Status struct {
	mu    sync.Mutex
	out   io.Writer
	color colorstring.Colorize
	now   func() time.Time
}

// NewStatus creates a status printer writing to out. A nil out discards.
func NewStatus(out io.Writer, noColor bool) *Status {
	if out == nil {
		out = io.Discard
	}

	return &Status{
		out: out,
		color: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: noColor,
			Reset:   true,
		},
		now: time.Now,
	}
}

// Printf writes one timestamped line. Color codes are interpreted in the
// format string only, never in args.
func (s *Status) Printf(format string, args ...any) {
	s.write(fmt.Sprintf(s.color.Color(format), args...))
}

// OK prints a success line for subject.
func (s *Status) OK(subject, detail string) {
	if detail == "" {
		s.Printf("%s → [green]OK", subject)
		return
	}

	s.Printf("%s → [green]OK[reset] (%s)", subject, detail)
}

// Fail prints a failure line for subject.
func (s *Status) Fail(subject string, err error) {
	s.Printf("%s → [red]ERROR:[reset] %v", subject, err)
}

func (s *Status) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "[%s] %s\n", s.now().Format("15:04:05"), line)
}
