package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lianbang999-crypto/foyue/internal/config"
	"github.com/lianbang999-crypto/foyue/internal/persist"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

func extractErrorReason(err error) string {
	return friendlyErrorMessage(err.Error())
}

func friendlyErrorMessage(errStr string) string {
	if strings.Contains(errStr, "no such host") {
		return "Unable to connect to server.\nPlease check your internet connection."
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused by server.\nThe service may be temporarily unavailable."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out.\nPlease check your internet connection."
	}
	if strings.Contains(errStr, "network is unreachable") || strings.Contains(errStr, "network read error") {
		return "Network is unreachable.\nPlease check your internet connection."
	}
	if strings.Contains(errStr, "status 401") {
		return "Access denied (401)."
	}
	if strings.Contains(errStr, "status 403") {
		return "Access forbidden (403)."
	}
	if strings.Contains(errStr, "status 404") {
		return "Recording not found (404)."
	}

	if idx := strings.Index(errStr, ": dial"); idx > 0 {
		return errStr[:idx]
	}
	if len(errStr) > 100 {
		return errStr[:100] + "..."
	}
	return errStr
}

// showPlaybackErrorModal surfaces a terminal playback failure. retryable
// offers a manual retry; unplayable recordings only dismiss.
func (ui *UI) showPlaybackErrorModal(message string, retryable bool) {
	doDismiss := func() {
		ui.pages.RemovePage("error-modal")
		ui.app.SetFocus(ui.seriesList)
	}

	doRetry := func() {
		ui.pages.RemovePage("error-modal")
		ui.app.SetFocus(ui.seriesList)
		ui.engine.PlayCurrent()
	}

	hint := "[::d]Press [::b]Esc[::d] to dismiss[::-]"
	if retryable {
		hint = "[::d]Press [::b]R[::d] to retry  •  Press [::b]Esc[::d] to dismiss[::-]"
	}

	messageView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(fmt.Sprintf("\n[::b]Playback Error[::-]\n\n%s", friendlyErrorMessage(message)))
	messageView.SetTextColor(ui.colors.foreground)
	messageView.SetBackgroundColor(ui.colors.modalBackground)

	hintView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(hint)
	hintView.SetTextColor(tcell.ColorDarkGray)
	hintView.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(messageView, 0, 1, false).
		AddItem(hintView, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	frame := tview.NewFrame(content).
		SetBorders(0, 0, 1, 1, 1, 1)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.highlight).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" Error ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	modal := ui.centerModal(frame, 50, 10)

	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape, tcell.KeyEnter:
			doDismiss()
			return nil
		case tcell.KeyRune:
			if retryable && (event.Rune() == 'r' || event.Rune() == 'R') {
				doRetry()
				return nil
			}
		}
		return event
	})

	ui.pages.AddPage("error-modal", modal, true, true)
	ui.app.SetFocus(modal)
}

func (ui *UI) centerModal(frame tview.Primitive, width, height int) *tview.Flex {
	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(frame, height, 0, true).
			AddItem(nil, 0, 1, false),
			width, 0, true).
		AddItem(nil, 0, 1, false)
	modal.SetBackgroundColor(ui.colors.background)
	return modal
}

func (ui *UI) showHelpModal() {
	keyColor := ui.colors.helpHotkey.String()

	configPath, _ := config.GetConfigPath()

	helpText := fmt.Sprintf(`[::b]KEYBOARD SHORTCUTS[::-]

[%s]PLAYBACK[-]
  [%s]Enter[-]      Play selected episode
  [%s]Space[-]      Pause / Resume
  [%s]p[-]          Previous episode / restart
  [%s]n[-]          Next episode
  [%s]←[-] / [%s]→[-]      Seek -%ds / +%ds

[%s]MODES[-]
  [%s]l[-]          Cycle loop (all / one / shuffle)
  [%s]s[-]          Cycle playback speed
  [%s]t[-]          Cycle sleep timer

[%s]BROWSE[-]
  [%s]↑[-] / [%s]↓[-]      Navigate list
  [%s]Tab[-]        Switch series / episodes
  [%s]f[-]          Toggle favorite
  [%s]h[-]          Listening history
  [%s]k[-]          Ask about the lectures
  [%s]g[-]          Send appreciation

[%s]APPLICATION[-]
  [%s]?[-]          Show this help
  [%s]a[-]          About %s
  [%s]q[-] / [%s]Esc[-]    Quit

[%s]CONFIG[-]: %s`,
		keyColor,
		keyColor, keyColor, keyColor, keyColor, keyColor, keyColor, SeekStep, SeekStep,
		keyColor,
		keyColor, keyColor, keyColor,
		keyColor,
		keyColor, keyColor, keyColor, keyColor, keyColor, keyColor, keyColor,
		keyColor,
		keyColor, keyColor, config.AppName, keyColor, keyColor,
		keyColor, configPath)

	ui.showInfoModal("Help", helpText)
}

func (ui *UI) showAboutModal() {
	dimColor := "gray"
	linkColor := "skyblue"

	aboutText := fmt.Sprintf(`[::b]%s[::-]
[%s]%s[-]

Version: %s
Project: [%s:::%s]%s[-:::-]
License: MIT

───────────────────────────────────────────

[%s]%s[-]`,
		config.AppName,
		dimColor, config.AppTagline,
		config.AppVersion,
		linkColor, config.AppProjectURL, config.AppProjectShort,
		dimColor, config.AppDescription)

	ui.showInfoModal("About", aboutText)
}

func (ui *UI) showInfoModal(title, message string) {
	doDismiss := func() {
		ui.pages.RemovePage("modal")
		ui.app.SetFocus(ui.seriesList)
	}

	messageView := tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText("\n" + message)
	messageView.SetTextColor(ui.colors.foreground)
	messageView.SetBackgroundColor(ui.colors.modalBackground)

	hintView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]Press any key to close[::-]")
	hintView.SetTextColor(tcell.ColorDarkGray)
	hintView.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(messageView, 0, 1, false).
		AddItem(nil, 2, 0, false).
		AddItem(hintView, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	frame := tview.NewFrame(content).
		SetBorders(1, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" " + title + " ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	lines := strings.Count(message, "\n") + 1
	modalWidth := 50
	modalHeight := lines + 10
	if modalHeight > 40 {
		modalHeight = 40
	}

	modal := ui.centerModal(frame, modalWidth, modalHeight)

	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		doDismiss()
		return nil
	})

	ui.pages.AddPage("modal", modal, true, true)
	ui.app.SetFocus(modal)
}

// showHistoryModal lists recent listening, newest first. Enter resumes an
// entry at its saved position.
func (ui *UI) showHistoryModal() {
	entries := ui.bridge.History()

	doDismiss := func() {
		ui.pages.RemovePage("modal")
		ui.app.SetFocus(ui.seriesList)
	}

	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBackgroundColor(ui.colors.modalBackground)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	renderRows := func() {
		table.Clear()
		table.SetCell(0, 0, tview.NewTableCell("Series").
			SetTextColor(ui.colors.listHeaderFg).
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetExpansion(2).
			SetSelectable(false))
		table.SetCell(0, 1, tview.NewTableCell("Episode").
			SetTextColor(ui.colors.listHeaderFg).
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetExpansion(2).
			SetSelectable(false))
		table.SetCell(0, 2, tview.NewTableCell("At").
			SetTextColor(ui.colors.listHeaderFg).
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetAlign(tview.AlignRight).
			SetSelectable(false))
		table.SetCell(0, 3, tview.NewTableCell("When").
			SetTextColor(ui.colors.listHeaderFg).
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetAlign(tview.AlignRight).
			SetSelectable(false))

		for i, e := range entries {
			table.SetCell(i+1, 0, tview.NewTableCell(e.SeriesTitle).
				SetTextColor(ui.colors.foreground).
				SetExpansion(2))
			table.SetCell(i+1, 1, tview.NewTableCell(e.TrackTitle).
				SetTextColor(ui.colors.foreground).
				SetExpansion(2))
			table.SetCell(i+1, 2, tview.NewTableCell(formatClock(e.PositionSeconds)).
				SetTextColor(ui.colors.foreground).
				SetAlign(tview.AlignRight))
			table.SetCell(i+1, 3, tview.NewTableCell(relativeTime(e.TimestampMs)).
				SetTextColor(ui.colors.foreground).
				SetAlign(tview.AlignRight))
		}
	}
	renderRows()

	table.SetSelectedFunc(func(row, column int) {
		idx := row - 1
		if idx < 0 || idx >= len(entries) {
			return
		}
		entry := entries[idx]
		doDismiss()
		ui.resumeFromHistory(entry)
	})

	hintView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d][::b]Enter[::d] resume  •  [::b]d[::d] delete  •  [::b]c[::d] clear all  •  [::b]Esc[::d] close[::-]")
	hintView.SetTextColor(tcell.ColorDarkGray)
	hintView.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(hintView, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	frame := tview.NewFrame(content).
		SetBorders(1, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(fmt.Sprintf(" History (%d) ", len(entries))).
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	modal := ui.centerModal(frame, 70, 24)

	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			doDismiss()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'd', 'D':
				row, _ := table.GetSelection()
				idx := row - 1
				if idx >= 0 && idx < len(entries) {
					ui.bridge.RemoveHistoryAt(idx)
					entries = append(entries[:idx], entries[idx+1:]...)
					renderRows()
				}
				return nil
			case 'c', 'C':
				ui.bridge.ClearHistory()
				entries = nil
				renderRows()
				return nil
			}
		}
		return event
	})

	ui.pages.AddPage("modal", modal, true, true)
	ui.app.SetFocus(table)
}

func (ui *UI) resumeFromHistory(entry persist.HistoryEntry) {
	tracks := ui.catalogService.Tracks(entry.SeriesID)
	if tracks == nil || entry.TrackIndex < 0 || entry.TrackIndex >= len(tracks) {
		log.Debug().Msgf("History entry no longer playable: %s #%d", entry.SeriesID, entry.TrackIndex)
		return
	}
	ui.openSeries(entry.SeriesID)
	ui.selectSeriesRow(entry.SeriesID)
	ui.engine.LoadPlaylist(tracks, entry.TrackIndex, entry.PositionSeconds)
}

func relativeTime(timestampMs int64) string {
	d := time.Since(time.UnixMilli(timestampMs))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// showAskModal opens a free-form question prompt backed by the ask endpoint.
func (ui *UI) showAskModal() {
	doDismiss := func() {
		ui.pages.RemovePage("ask-modal")
		ui.app.SetFocus(ui.seriesList)
	}

	input := tview.NewInputField().
		SetLabel(" Question: ").
		SetFieldWidth(0)
	input.SetLabelColor(ui.colors.foreground)
	input.SetFieldBackgroundColor(ui.colors.background)
	input.SetFieldTextColor(ui.colors.foreground)
	input.SetBackgroundColor(ui.colors.modalBackground)

	answerView := tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetDynamicColors(true).
		SetWordWrap(true)
	answerView.SetTextColor(ui.colors.foreground)
	answerView.SetBackgroundColor(ui.colors.modalBackground)

	hintView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d][::b]Enter[::d] ask  •  [::b]Esc[::d] close[::-]")
	hintView.SetTextColor(tcell.ColorDarkGray)
	hintView.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(input, 1, 0, true).
		AddItem(nil, 1, 0, false).
		AddItem(answerView, 0, 1, false).
		AddItem(hintView, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	frame := tview.NewFrame(content).
		SetBorders(0, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" Ask about the lectures ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)

	modal := ui.centerModal(frame, 70, 20)

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		question := strings.TrimSpace(input.GetText())
		if question == "" {
			return
		}

		answerView.SetText("[::d]Thinking...[::-]")

		listeningTo := ""
		if snap := ui.engine.Snapshot(); snap.Track.SeriesTitle != "" {
			listeningTo = snap.Track.SeriesTitle
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			answer, err := ui.apiClient.Ask(ctx, question, listeningTo)
			ui.app.QueueUpdateDraw(func() {
				if err != nil {
					answerView.SetText("[red]" + friendlyErrorMessage(err.Error()) + "[-]")
					return
				}
				var sb strings.Builder
				sb.WriteString(answer.Answer)
				if len(answer.Sources) > 0 {
					sb.WriteString("\n\n[::d]Sources:[::-]")
					for _, src := range answer.Sources {
						sb.WriteString(fmt.Sprintf("\n  • %s – %s", src.SeriesTitle, src.TrackTitle))
					}
				}
				answerView.SetText(sb.String())
			})
		}()
	})

	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			doDismiss()
			return nil
		}
		return event
	})

	ui.pages.AddPage("ask-modal", modal, true, true)
	ui.app.SetFocus(input)
}

// showAppreciateModal thanks the speaker of the selected series and shows
// the running total.
func (ui *UI) showAppreciateModal() {
	row, _ := ui.seriesList.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(ui.rows) || ui.rows[idx].isHeader {
		return
	}
	seriesID := ui.rows[idx].seriesID
	title := ui.rows[idx].title

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		count, err := ui.apiClient.Appreciate(ctx, seriesID)
		ui.app.QueueUpdateDraw(func() {
			if err != nil {
				ui.showInfoModal("Appreciation", friendlyErrorMessage(err.Error()))
				return
			}
			ui.showInfoModal("Appreciation",
				fmt.Sprintf("🙏 Thanks sent for [::b]%s[::-].\n\nTotal appreciations: %d", title, count))
		})
	}()
}

func (ui *UI) showInitialErrorScreen(title, message string, onRetry, onQuit func()) {
	content := fmt.Sprintf("[::b]%s[::-]\n\n%s", title, message)

	textView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(content)
	textView.SetTextColor(ui.colors.foreground)
	textView.SetBackgroundColor(ui.colors.modalBackground)

	helpText := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]Press [::b]R[::d] to retry  •  Press [::b]Q[::d] to quit[::-]")
	helpText.SetTextColor(ui.colors.foreground)
	helpText.SetBackgroundColor(ui.colors.background)

	frame := tview.NewFrame(textView).
		SetBorders(2, 2, 2, 2, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(ui.colors.highlight).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" Connection Error ").
		SetTitleColor(ui.colors.highlight)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(frame, 60, 1, true).
			AddItem(nil, 0, 1, false), 10, 1, true).
		AddItem(helpText, 2, 0, false).
		AddItem(nil, 0, 1, false)
	layout.SetBackgroundColor(ui.colors.background)

	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r', 'R':
				if onRetry != nil {
					onRetry()
				}
				return nil
			case 'q', 'Q':
				if onQuit != nil {
					onQuit()
				}
				return nil
			}
		case tcell.KeyEscape:
			if onQuit != nil {
				onQuit()
			}
			return nil
		}
		return event
	})

	ui.app.SetRoot(layout, true)
	ui.app.SetFocus(layout)
}

func (ui *UI) handleInitialError(err error) {
	friendlyMsg := extractErrorReason(err)

	ui.showInitialErrorScreen(
		"Unable to Load Catalog",
		friendlyMsg,
		func() { // onRetry
			ui.app.SetRoot(ui.loadingScreen, true)
			go func() {
				if err := ui.fetchCatalogAndInitUI(); err != nil {
					ui.app.QueueUpdateDraw(func() {
						ui.handleInitialError(err)
					})
				}
			}()
		},
		func() { // onQuit
			ui.app.Stop()
		},
	)
}
