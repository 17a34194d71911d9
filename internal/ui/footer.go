package ui

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/lianbang999-crypto/foyue/internal/engine"
	"github.com/rivo/tview"
)

// PauseIcon uses platform-specific character (Windows renders ⏸ as emoji)
var PauseIcon = func() string {
	if runtime.GOOS == "windows" {
		return "❚❚"
	}
	return "⏸"
}()

type StatusRenderer struct {
	engine        *engine.Engine
	animFrame     int
	maxAnimFrame  int
	tickCount     int
	ticksPerFrame int

	mu         sync.Mutex
	noticeKind engine.NoticeKind
	noticeMsg  string

	primaryColor string
}

func NewStatusRenderer(e *engine.Engine) *StatusRenderer {
	return &StatusRenderer{
		engine:        e,
		maxAnimFrame:  4,
		ticksPerFrame: 8, // Slow down animation (8 ticks per frame)
		noticeKind:    -1,
	}
}

func (s *StatusRenderer) SetPrimaryColor(color string) {
	s.primaryColor = color
}

// SetNotice records the latest engine notice for the status line. Transient
// notices (slow load, retrying) clear themselves on the next state render.
func (s *StatusRenderer) SetNotice(kind engine.NoticeKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noticeKind = kind
	s.noticeMsg = msg
}

func (s *StatusRenderer) clearNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noticeKind = -1
	s.noticeMsg = ""
}

func (s *StatusRenderer) notice() (engine.NoticeKind, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noticeKind, s.noticeMsg, s.noticeKind >= 0
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % s.maxAnimFrame
	}
}

func (s *StatusRenderer) Render() string {
	if s.engine == nil {
		return s.renderIdle()
	}

	if kind, msg, ok := s.notice(); ok {
		switch kind {
		case engine.NoticeSlowLoad, engine.NoticeRetrying:
			return "↻ " + msg
		case engine.NoticeSleepExpired:
			return "☾ " + msg
		default:
			return "✗ " + msg
		}
	}

	switch s.engine.State() {
	case engine.StateIdle:
		return s.renderIdle()
	case engine.StateBuffering:
		return s.renderBuffering()
	case engine.StatePlaying:
		return s.renderPlaying()
	case engine.StatePaused:
		return s.renderPaused()
	case engine.StateError:
		return "✗ ERROR"
	default:
		return s.renderIdle()
	}
}

func (s *StatusRenderer) renderIdle() string {
	return "○ IDLE │ Select a lecture"
}

func (s *StatusRenderer) renderBuffering() string {
	circles := []string{"◐", "◓", "◑", "◒"}
	return fmt.Sprintf("%s BUFFERING", circles[s.animFrame])
}

func (s *StatusRenderer) renderPlaying() string {
	s.clearNotice()

	dots := []string{"●", "◉", "○", "◉"}
	dot := dots[s.animFrame]

	if s.primaryColor != "" {
		dot = fmt.Sprintf("[%s]%s[-]", s.primaryColor, dot)
	}

	parts := []string{dot + " PLAYING"}

	snap := s.engine.Snapshot()
	if snap.Speed != 1.0 {
		parts = append(parts, fmt.Sprintf("%.2gx", snap.Speed))
	}
	if snap.LoopMode != engine.LoopAll {
		parts = append(parts, snap.LoopMode.String())
	}
	if sleep := s.engine.SleepStatus(); sleep.Active || sleep.AfterTrack {
		parts = append(parts, "☾ "+sleep.String())
	}

	return joinParts(parts)
}

func (s *StatusRenderer) renderPaused() string {
	parts := []string{PauseIcon + " PAUSED"}

	snap := s.engine.Snapshot()
	if snap.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%s / %s", formatClock(snap.Position), formatClock(snap.Duration)))
	}

	return joinParts(parts)
}

// formatClock renders seconds as M:SS, or H:MM:SS past the hour. Lectures
// routinely run past an hour.
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// renderSeekBar draws a fixed-width position bar.
func renderSeekBar(position, duration float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if duration > 0 {
		filled = int(position / duration * float64(width))
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("━", filled) + "●" + strings.Repeat("─", width-filled)
}

func joinParts(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += " │ " + parts[i]
	}
	return result
}

func (ui *UI) getPlaybackHint(keyColor string) string {
	switch ui.engine.State() {
	case engine.StatePaused:
		return fmt.Sprintf("[%s]Space[-] resume", keyColor)
	case engine.StatePlaying, engine.StateBuffering:
		return fmt.Sprintf("[%s]Space[-] pause", keyColor)
	default:
		return fmt.Sprintf("[%s]Enter[-] play", keyColor)
	}
}

func (ui *UI) getHelpText() string {
	keyColor := ui.colors.helpHotkey.String()
	playbackHint := ui.getPlaybackHint(keyColor)

	return fmt.Sprintf(" %s  [%s]n/p[-] track  [%s]l[-] loop  [%s]s[-] speed  [%s]t[-] sleep  [%s]h[-] history  [%s]k[-] ask  [%s]?[-] help  [%s]q[-] quit ",
		playbackHint, keyColor, keyColor, keyColor, keyColor, keyColor, keyColor, keyColor, keyColor)
}

func (ui *UI) handleFooterResize(width int) {
	isWide := width >= FooterBreakpoint
	wasWide := ui.lastFooterWidth >= FooterBreakpoint

	if ui.lastFooterWidth > 0 && isWide != wasWide && ui.contentLayout != nil {
		newHeight := FooterHeightWide
		if !isWide {
			newHeight = FooterHeightNarrow
		}
		ui.contentLayout.ResizeItem(ui.helpPanel, newHeight, 0)
	}
	ui.lastFooterWidth = width
}

func (ui *UI) drawWideFooter(screen tcell.Screen, x, y, width, height int, helpText, statusText string) {
	helpWidth := width / 2
	statusWidth := width - helpWidth

	for row := y; row < y+height; row++ {
		for col := x; col < x+helpWidth; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.helpBackground))
		}
	}

	for row := y; row < y+height; row++ {
		for col := x + helpWidth; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.background))
		}
	}

	centerY := y + height/2
	tview.Print(screen, helpText, x, centerY, helpWidth, tview.AlignCenter, ui.colors.helpForeground)
	tview.Print(screen, statusText, x+helpWidth, centerY, statusWidth-2, tview.AlignRight, ui.colors.foreground)
}

func (ui *UI) drawNarrowFooter(screen tcell.Screen, x, y, width, height int, helpText, statusText string) {
	helpHeight := height / 2
	if helpHeight < 1 {
		helpHeight = 1
	}
	statusHeight := height - helpHeight
	helpBoxEnd := y + helpHeight

	for row := y; row < helpBoxEnd; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.helpBackground))
		}
	}

	for row := helpBoxEnd; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.background))
		}
	}

	helpTextY := y + helpHeight/2
	tview.Print(screen, helpText, x, helpTextY, width, tview.AlignCenter, ui.colors.helpForeground)

	if statusHeight > 0 {
		statusTextY := helpBoxEnd + statusHeight/2
		tview.Print(screen, statusText, x, statusTextY, width-2, tview.AlignRight, ui.colors.foreground)
	}
}

func (ui *UI) createFooter() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.handleFooterResize(width)

		ui.statusRenderer.AdvanceAnimation()
		helpText := ui.getHelpText()
		statusText := " " + ui.statusRenderer.Render() + " "

		isWide := width >= FooterBreakpoint
		usedHeight := height
		if isWide && height > FooterHeightWide {
			usedHeight = FooterHeightWide
		}

		if isWide {
			ui.drawWideFooter(screen, x, y, width, usedHeight, helpText, statusText)
		} else {
			ui.drawNarrowFooter(screen, x, y, width, height, helpText, statusText)
		}

		return x, y, width, height
	})

	return box
}
