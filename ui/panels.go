package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	accentTag   = "[#ff69b4]"
	accentReset = "[-]"
)

var (
	uiBorderColor      = tcell.ColorGray
	uiFocusBorderColor = tcell.ColorHotPink
	uiTitleColor       = tcell.ColorHotPink
)

// focusBox is a boxed TextView that can take focus and scroll.
type focusBox struct {
	tv        *tview.TextView
	baseTitle string
}

func newFocusBox(title string) *focusBox {
	b := &focusBox{tv: newBoxedTextView(title), baseTitle: title}
	b.tv.SetScrollable(true)
	return b
}

func (b *focusBox) SetFocused(focused bool) {
	if b == nil {
		return
	}
	applyFocusStyle(b.tv, b.baseTitle, focused)
}

func (b *focusBox) HandleScroll(event *tcell.EventKey) bool {
	if b == nil {
		return false
	}
	return scrollTextView(b.tv, event)
}

// focusGroup cycles focus over a fixed set of boxes.
type focusGroup struct {
	items []*focusBox
	index int
}

func newFocusGroup(items ...*focusBox) focusGroup {
	filtered := make([]*focusBox, 0, len(items))
	for _, item := range items {
		if item != nil && item.tv != nil {
			filtered = append(filtered, item)
		}
	}
	return focusGroup{items: filtered}
}

func (g *focusGroup) set(app *tview.Application, idx int) {
	if len(g.items) == 0 {
		return
	}
	if idx < 0 || idx >= len(g.items) {
		idx = 0
	}
	g.index = idx
	for i, item := range g.items {
		item.SetFocused(i == idx)
	}
	if app != nil {
		app.SetFocus(g.items[idx].tv)
	}
}

func (g *focusGroup) cycle(app *tview.Application, delta int) {
	if len(g.items) == 0 {
		return
	}
	next := (g.index + delta) % len(g.items)
	if next < 0 {
		next += len(g.items)
	}
	g.set(app, next)
}

func (g *focusGroup) current() *focusBox {
	if len(g.items) == 0 {
		return nil
	}
	return g.items[g.index]
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tv.SetBorder(true)
	if title != "" {
		tv.SetTitle(accentText(title)).SetTitleAlign(tview.AlignLeft)
	}
	tv.SetBorderColor(uiBorderColor)
	tv.SetTitleColor(uiTitleColor)
	return tv
}

func applyFocusStyle(tv *tview.TextView, title string, focused bool) {
	if tv == nil {
		return
	}
	if focused {
		tv.SetBorderColor(uiFocusBorderColor)
		tv.SetTitle(accentText("> " + title))
		return
	}
	tv.SetBorderColor(uiBorderColor)
	tv.SetTitle(accentText(title))
}

// scrollTextView moves target by a line or a page. It reports whether the key
// was a scroll key.
func scrollTextView(target *tview.TextView, event *tcell.EventKey) bool {
	if target == nil || event == nil {
		return false
	}
	row, col := target.GetScrollOffset()
	page := 10
	if _, _, _, height := target.GetInnerRect(); height > 1 {
		page = height - 1
	}
	switch event.Key() {
	case tcell.KeyUp:
		row--
	case tcell.KeyDown:
		row++
	case tcell.KeyPgUp:
		row -= page
	case tcell.KeyPgDn:
		row += page
	case tcell.KeyHome:
		row = 0
	case tcell.KeyEnd:
		target.ScrollToEnd()
		return true
	default:
		return false
	}
	if row < 0 {
		row = 0
	}
	target.ScrollTo(row, col)
	return true
}

func accentText(text string) string {
	if text == "" {
		return ""
	}
	return accentTag + text + accentReset
}
