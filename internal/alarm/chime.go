package alarm

import (
	"fmt"
	"io"
)

// TerminalBell is the default chime: a double ring of the terminal bell.
type TerminalBell struct {
	W io.Writer
}

func (b TerminalBell) Pulse() {
	fmt.Fprint(b.W, "\a\a")
}
