package ui

import (
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"enrolldash/dashboard"
	"enrolldash/inputs"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const maxSystemLines = 500

var _ Surface = (*Console)(nil)

// ConsoleOptions configures the terminal dashboard.
type ConsoleOptions struct {
	// OnReload runs on its own goroutine when the user presses 'r'.
	OnReload  func()
	TargetFPS int
}

// Console is the tview rendition of the dashboard page.
type Console struct {
	app       *tview.Application
	scheduler *frameScheduler
	onReload  func()

	ready    chan struct{}
	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once

	header   *tview.TextView
	kpis     *tview.TextView
	trend    *focusBox
	forecast *focusBox
	quality  *focusBox
	context  *focusBox
	inputs   *tview.TextView
	stats    *tview.TextView
	system   *focusBox
	focus    focusGroup

	systemMu    sync.Mutex
	systemLines []string
}

// NewConsole builds the layout and starts the tview event loop.
func NewConsole(opts ConsoleOptions) *Console {
	app := tview.NewApplication()
	c := &Console{
		app:      app,
		onReload: opts.OnReload,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(c.ready) })
		return false
	})

	c.header = tview.NewTextView().SetDynamicColors(true)
	c.kpis = newBoxedTextView("KPIs")
	c.trend = newFocusBox("Enrollment Trend")
	c.forecast = newFocusBox("Upcoming Enrollment")
	c.quality = newFocusBox("Model Quality")
	c.context = newFocusBox("Lebanon AI & DS interest (context)")
	c.inputs = newBoxedTextView("Data Inputs")
	c.stats = newBoxedTextView("Stats")
	c.system = newFocusBox("System Log")
	c.focus = newFocusGroup(c.trend, c.forecast, c.quality, c.context, c.system)

	middle := tview.NewFlex().
		AddItem(c.trend.tv, 0, 1, false).
		AddItem(c.forecast.tv, 0, 1, false)
	lower := tview.NewFlex().
		AddItem(c.quality.tv, 0, 1, false).
		AddItem(c.context.tv, 0, 1, false)
	bottom := tview.NewFlex().
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(c.inputs, 7, 0, false).
			AddItem(c.stats, 0, 1, false), 0, 1, false).
		AddItem(c.system.tv, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.header, 2, 0, false).
		AddItem(c.kpis, 6, 0, false).
		AddItem(middle, 0, 2, false).
		AddItem(lower, 0, 2, false).
		AddItem(bottom, 0, 1, false).
		AddItem(buildFooter(), 1, 0, false)
	app.SetRoot(root, true)
	c.focus.set(app, 0)
	c.installKeybindings()

	c.scheduler = newFrameScheduler(app, opts.TargetFPS, 100*time.Millisecond)
	c.scheduler.Start()

	go func() {
		if err := app.Run(); err != nil {
			log.Printf("UI: console error: %v", err)
		}
		c.markDone()
	}()
	return c
}

func buildFooter() *tview.TextView {
	return tview.NewTextView().SetDynamicColors(true).SetText(
		accentText("R") + "eload  " + accentText("Tab") + " Focus  " + accentText("↑↓ PgUp PgDn") + " Scroll  " + accentText("Q") + "uit",
	)
}

func (c *Console) installKeybindings() {
	c.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if box := c.focus.current(); box != nil && box.HandleScroll(event) {
			return nil
		}
		switch event.Key() {
		case tcell.KeyTab:
			c.focus.cycle(c.app, 1)
			return nil
		case tcell.KeyBacktab:
			c.focus.cycle(c.app, -1)
			return nil
		case tcell.KeyCtrlC:
			c.markDone()
			return nil
		}
		switch event.Rune() {
		case 'q', 'Q':
			c.markDone()
			return nil
		case 'r', 'R':
			if c.onReload != nil {
				go c.onReload()
			}
			return nil
		}
		return event
	})
}

func (c *Console) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Console) WaitReady() {
	if c == nil {
		return
	}
	select {
	case <-c.ready:
	case <-c.done:
	}
}

func (c *Console) Done() <-chan struct{} {
	return c.done
}

// Stop drains pending updates and releases the terminal.
func (c *Console) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		c.scheduler.Stop()
		c.app.Stop()
		c.markDone()
	})
}

// SetPage redraws every dashboard pane from page.
func (c *Console) SetPage(page dashboard.Page, in inputs.Inputs) {
	if c == nil {
		return
	}
	header := headerText(page)
	kpis := kpiText(page.KPIs)
	trend := trendText(page.Trend)
	forecast := forecastText(page.Forecast)
	quality := qualityText(page.Quality)
	context := contextText(page.Context)
	origins := inputsText(in)
	c.scheduler.Schedule("page", func() {
		c.header.SetText(header)
		c.kpis.SetText(kpis)
		c.trend.tv.SetText(trend)
		c.forecast.tv.SetText(forecast)
		c.quality.tv.SetText(quality)
		c.context.tv.SetText(context)
		c.inputs.SetText(origins)
	})
}

func (c *Console) SetStats(lines []string) {
	if c == nil {
		return
	}
	text := statsText(lines)
	c.scheduler.Schedule("stats", func() {
		c.stats.SetText(text)
	})
}

// AppendSystem adds a line to the bounded system log pane.
func (c *Console) AppendSystem(line string) {
	if c == nil {
		return
	}
	c.systemMu.Lock()
	c.systemLines = append(c.systemLines, tview.Escape(line))
	if over := len(c.systemLines) - maxSystemLines; over > 0 {
		c.systemLines = append(c.systemLines[:0], c.systemLines[over:]...)
	}
	text := strings.Join(c.systemLines, "\n")
	c.systemMu.Unlock()
	c.scheduler.Schedule("system", func() {
		c.system.tv.SetText(text)
		c.system.tv.ScrollToEnd()
	})
}

// SystemWriter is an io.Writer for log output that feeds the system pane.
func (c *Console) SystemWriter() io.Writer {
	if c == nil {
		return nil
	}
	return &paneWriter{emit: c.AppendSystem}
}
