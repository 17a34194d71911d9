package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/lianbang999-crypto/foyue/internal/engine"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

// browseRow is one visual row of the series table: either a category header
// or a selectable series.
type browseRow struct {
	isHeader bool
	title    string

	seriesID string
	speaker  string
	episodes int
}

func (ui *UI) flattenCatalog() []browseRow {
	cat := ui.catalogService.CachedCatalog()
	if cat == nil {
		return nil
	}

	var rows []browseRow
	for _, c := range cat.Categories {
		rows = append(rows, browseRow{isHeader: true, title: c.Title})
		for _, s := range c.Series {
			rows = append(rows, browseRow{
				title:    s.Title,
				seriesID: s.ID,
				speaker:  s.Speaker,
				episodes: len(s.Episodes),
			})
		}
	}
	return rows
}

func (ui *UI) createSeriesTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(true, false).
		SetFixed(1, 0)

	table.SetBorder(true).
		SetTitle("Series").
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background).
		SetBorderPadding(1, 0, 1, 1)

	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	table.SetSelectedFunc(func(row, column int) {
		idx := row - 1
		if idx < 0 || idx >= len(ui.rows) {
			return
		}
		r := ui.rows[idx]
		if r.isHeader {
			return
		}
		ui.openSeries(r.seriesID)
		ui.app.SetFocus(ui.episodeList)
	})

	ui.seriesList = table
	ui.rebuildSeriesTable()
	return table
}

func (ui *UI) rebuildSeriesTable() {
	table := ui.seriesList
	if table == nil {
		return
	}
	table.Clear()

	table.SetCell(0, 0, tview.NewTableCell(" ").
		SetTextColor(ui.colors.listHeaderFg).
		SetBackgroundColor(ui.colors.listHeaderBg).
		SetMaxWidth(2).
		SetSelectable(false))

	table.SetCell(0, 1, tview.NewTableCell("Title").
		SetTextColor(ui.colors.listHeaderFg).
		SetBackgroundColor(ui.colors.listHeaderBg).
		SetExpansion(2).
		SetSelectable(false))

	table.SetCell(0, 2, tview.NewTableCell("Speaker").
		SetTextColor(ui.colors.listHeaderFg).
		SetBackgroundColor(ui.colors.listHeaderBg).
		SetExpansion(1).
		SetSelectable(false))

	table.SetCell(0, 3, tview.NewTableCell("Episodes").
		SetTextColor(ui.colors.listHeaderFg).
		SetBackgroundColor(ui.colors.listHeaderBg).
		SetAlign(tview.AlignRight).
		SetSelectable(false))

	ui.rows = ui.flattenCatalog()
	for i, r := range ui.rows {
		ui.setSeriesRow(table, i+1, r)
	}

	table.SetTitle(fmt.Sprintf("Series (%d)", ui.catalogService.SeriesCount()))
}

func (ui *UI) setSeriesRow(table *tview.Table, row int, r browseRow) {
	if r.isHeader {
		cell := tview.NewTableCell("▸ " + r.title).
			SetTextColor(ui.colors.listHeaderFg).
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetSelectable(false).
			SetExpansion(2)
		table.SetCell(row, 0, tview.NewTableCell(" ").
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetSelectable(false))
		table.SetCell(row, 1, cell)
		table.SetCell(row, 2, tview.NewTableCell("").
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetSelectable(false))
		table.SetCell(row, 3, tview.NewTableCell("").
			SetBackgroundColor(ui.colors.listHeaderBg).
			SetSelectable(false))
		return
	}

	favIcon := " "
	if ui.config.IsFavorite(r.seriesID) {
		favIcon = "★"
	}
	table.SetCell(row, 0, tview.NewTableCell(favIcon).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(2))

	title := r.title
	if r.seriesID == ui.playingSeriesID {
		title = "➤ " + title
	} else {
		title = "  " + title
	}
	table.SetCell(row, 1, tview.NewTableCell(title).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(40).
		SetExpansion(2))

	table.SetCell(row, 2, tview.NewTableCell(r.speaker).
		SetTextColor(ui.colors.foreground).
		SetMaxWidth(24).
		SetExpansion(1))

	table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", r.episodes)).
		SetTextColor(ui.colors.foreground).
		SetAlign(tview.AlignRight))
}

// selectSeriesRow moves the table selection onto the given series.
func (ui *UI) selectSeriesRow(seriesID string) {
	for i, r := range ui.rows {
		if r.seriesID == seriesID {
			ui.seriesList.Select(i+1, 0)
			return
		}
	}
}

func (ui *UI) createEpisodeTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(true, false).
		SetFixed(1, 0)

	table.SetBorder(true).
		SetTitle("Episodes").
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background).
		SetBorderPadding(1, 0, 1, 1)

	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	table.SetSelectedFunc(func(row, column int) {
		idx := row - 1
		if idx < 0 || ui.openSeriesID == "" {
			return
		}
		ui.playSeries(ui.openSeriesID, idx)
	})

	ui.episodeList = table
	return table
}

// openSeries shows the episode list of a series without starting playback.
func (ui *UI) openSeries(seriesID string) {
	ui.openSeriesID = seriesID
	ui.fillEpisodeTable(seriesID)
	log.Debug().Msgf("Opened series: %s", seriesID)
}

func (ui *UI) fillEpisodeTable(seriesID string) {
	table := ui.episodeList
	if table == nil {
		return
	}
	table.Clear()

	table.SetCell(0, 0, tview.NewTableCell(" ").
		SetTextColor(ui.colors.listHeaderFg).
		SetBackgroundColor(ui.colors.listHeaderBg).
		SetMaxWidth(2).
		SetSelectable(false))
	table.SetCell(0, 1, tview.NewTableCell("#").
		SetTextColor(ui.colors.listHeaderFg).
		SetBackgroundColor(ui.colors.listHeaderBg).
		SetAlign(tview.AlignRight).
		SetSelectable(false))
	table.SetCell(0, 2, tview.NewTableCell("Title").
		SetTextColor(ui.colors.listHeaderFg).
		SetBackgroundColor(ui.colors.listHeaderBg).
		SetExpansion(1).
		SetSelectable(false))

	tracks := ui.catalogService.Tracks(seriesID)
	for i, tr := range tracks {
		playIcon := " "
		if seriesID == ui.playingSeriesID && i == ui.playingIndex {
			if ui.engine.State() == engine.StatePaused {
				playIcon = "⏸"
			} else {
				playIcon = "➤"
			}
		}
		table.SetCell(i+1, 0, tview.NewTableCell(playIcon).
			SetTextColor(ui.colors.foreground).
			SetMaxWidth(2))
		table.SetCell(i+1, 1, tview.NewTableCell(fmt.Sprintf("%d", i+1)).
			SetTextColor(ui.colors.foreground).
			SetAlign(tview.AlignRight))
		table.SetCell(i+1, 2, tview.NewTableCell(tr.DisplayTitle()).
			SetTextColor(ui.colors.foreground).
			SetExpansion(1))
	}

	series := ui.catalogService.FindSeries(seriesID)
	if series != nil {
		table.SetTitle(fmt.Sprintf(" %s (%d) ", series.Title, len(tracks)))
	}
}

// playSeries loads the series playlist starting at the given episode.
func (ui *UI) playSeries(seriesID string, index int) {
	tracks := ui.catalogService.Tracks(seriesID)
	if tracks == nil || index < 0 || index >= len(tracks) {
		return
	}

	log.Info().Msgf("Starting playback: %s #%d", seriesID, index+1)
	ui.engine.LoadPlaylist(tracks, index, 0)
	ui.rebuildSeriesTable()
	ui.selectSeriesRow(seriesID)
}

// refreshEpisodeIndicators repaints the playing markers after state or track
// changes.
func (ui *UI) refreshEpisodeIndicators() {
	if ui.openSeriesID != "" {
		ui.fillEpisodeTable(ui.openSeriesID)
	}
	ui.rebuildSeriesTable()
}

func (ui *UI) toggleFavorite() {
	row, _ := ui.seriesList.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(ui.rows) || ui.rows[idx].isHeader {
		return
	}
	seriesID := ui.rows[idx].seriesID

	ui.config.ToggleFavorite(seriesID)

	favCell := ui.seriesList.GetCell(row, 0)
	if favCell != nil {
		if ui.config.IsFavorite(seriesID) {
			favCell.SetText("★")
		} else {
			favCell.SetText(" ")
		}
	}

	go func() {
		if err := ui.config.Save(); err != nil {
			log.Error().Err(err).Msg("Failed to save config")
		}
	}()

	log.Debug().Msgf("Toggled favorite for series: %s", seriesID)
}
