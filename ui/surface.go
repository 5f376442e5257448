package ui

import (
	"io"

	"enrolldash/dashboard"
	"enrolldash/inputs"
)

// Surface is a terminal renderer for the dashboard. Implementations must be
// safe for concurrent calls from the render loop and the logger.
type Surface interface {
	WaitReady()
	Stop()
	// Done is closed when the user asks to quit.
	Done() <-chan struct{}
	SetPage(page dashboard.Page, in inputs.Inputs)
	SetStats(lines []string)
	AppendSystem(line string)
	SystemWriter() io.Writer
}
