package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lianbang999-crypto/foyue/internal/api"
	"github.com/lianbang999-crypto/foyue/internal/catalog"
	"github.com/lianbang999-crypto/foyue/internal/config"
	"github.com/lianbang999-crypto/foyue/internal/engine"
	"github.com/lianbang999-crypto/foyue/internal/persist"
	"github.com/lianbang999-crypto/foyue/internal/service"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	SeekStep              = 15 // seconds per arrow-key seek
	HeaderHeight          = 3
	FooterHeightWide      = 3
	FooterHeightNarrow    = 6
	PlayerPanelHeight     = 7
	FooterBreakpoint      = 120
	CatalogRefreshPeriod  = 30 * time.Minute
	MinLoadingDisplayTime = 1200 * time.Millisecond
	MinStatusDisplayTime  = 300 * time.Millisecond
)

type UI struct {
	app            *tview.Application
	catalogService *service.CatalogService
	engine         *engine.Engine
	apiClient      *api.Client
	bridge         *persist.Bridge
	config         *config.Config

	seriesList     *tview.Table
	episodeList    *tview.Table
	playerPanel    *tview.Flex
	nowPlayingView *tview.TextView
	progressView   *tview.TextView
	transportView  *tview.TextView
	helpPanel      *tview.Box
	contentLayout  *tview.Flex
	mainLayout     *tview.Flex
	loadingScreen  *tview.Flex
	loadingText    *tview.TextView
	progressBar    *tview.TextView
	pages          *tview.Pages

	rows            []browseRow
	openSeriesID    string
	playingSeriesID string
	playingIndex    int
	resume          bool
	lastFooterWidth int
	mu              sync.Mutex
	statusRenderer  *StatusRenderer
	colors          struct {
		background       tcell.Color
		foreground       tcell.Color
		borders          tcell.Color
		highlight        tcell.Color
		headerBackground tcell.Color
		listHeaderBg     tcell.Color
		listHeaderFg     tcell.Color
		helpBackground   tcell.Color
		helpForeground   tcell.Color
		helpHotkey       tcell.Color
		noticeForeground tcell.Color
		modalBackground  tcell.Color
	}
}

func NewUI(eng *engine.Engine, catalogService *service.CatalogService, apiClient *api.Client, bridge *persist.Bridge, cfg *config.Config, resume bool) *UI {
	ui := &UI{
		app:            tview.NewApplication(),
		engine:         eng,
		catalogService: catalogService,
		apiClient:      apiClient,
		bridge:         bridge,
		config:         cfg,
		playingIndex:   -1,
		resume:         resume,
	}

	ui.colors.background = config.GetColor(cfg.Theme.Background)
	ui.colors.foreground = config.GetColor(cfg.Theme.Foreground)
	ui.colors.borders = config.GetColor(cfg.Theme.Borders)
	ui.colors.highlight = config.GetColor(cfg.Theme.Highlight)
	ui.colors.headerBackground = config.GetColor(cfg.Theme.HeaderBackground)
	ui.colors.listHeaderBg = config.GetColor(cfg.Theme.ListHeaderBg)
	ui.colors.listHeaderFg = config.GetColor(cfg.Theme.ListHeaderFg)
	ui.colors.helpBackground = config.GetColor(cfg.Theme.HelpBackground)
	ui.colors.helpForeground = config.GetColor(cfg.Theme.HelpForeground)
	ui.colors.helpHotkey = config.GetColor(cfg.Theme.HelpHotkey)
	ui.colors.noticeForeground = config.GetColor(cfg.Theme.NoticeForeground)
	ui.colors.modalBackground = config.GetColor(cfg.Theme.ModalBackground)

	ui.statusRenderer = NewStatusRenderer(eng)
	ui.statusRenderer.SetPrimaryColor(ui.colors.highlight.String())

	ui.attachEngine()

	return ui
}

// attachEngine subscribes UI refreshes to engine events. Callbacks may fire
// on any goroutine, so every redraw is queued asynchronously.
func (ui *UI) attachEngine() {
	ui.engine.OnTrackChange(func(tr catalog.Track, index, total int) {
		ui.mu.Lock()
		ui.playingSeriesID = tr.SeriesID
		ui.playingIndex = index
		ui.mu.Unlock()

		go ui.app.QueueUpdateDraw(func() {
			ui.renderNowPlaying(tr, index, total)
			ui.refreshEpisodeIndicators()
		})
	})

	// History records tracks that actually start loading, not skip intent:
	// OnTrackChange fires per press, so five rapid skips would log four
	// tracks that never played.
	ui.engine.OnTrackLoad(func(tr catalog.Track, index, total int) {
		ui.bridge.AppendHistory(persist.HistoryEntry{
			SeriesID:    tr.SeriesID,
			SeriesTitle: tr.SeriesTitle,
			Speaker:     tr.Speaker,
			CategoryID:  ui.catalogService.CategoryOf(tr.SeriesID),
			TrackIndex:  index,
			TrackTitle:  tr.DisplayTitle(),
			TimestampMs: time.Now().UnixMilli(),
		})
	})

	ui.engine.OnStateChange(func(st engine.State) {
		if st == engine.StatePaused {
			ui.saveSession()
		}
		go ui.app.QueueUpdateDraw(func() {
			ui.refreshEpisodeIndicators()
		})
	})

	ui.engine.OnProgress(func(position, duration float64) {
		go ui.app.QueueUpdateDraw(func() {
			ui.renderProgress(position, duration)
		})
	})

	ui.engine.OnNotice(func(kind engine.NoticeKind, msg string) {
		ui.statusRenderer.SetNotice(kind, msg)
		switch kind {
		case engine.NoticeLoadFailed, engine.NoticePlaybackFailed, engine.NoticeUnsupported:
			go ui.app.QueueUpdateDraw(func() {
				ui.showPlaybackErrorModal(msg, kind != engine.NoticeUnsupported)
			})
		default:
			go ui.app.QueueUpdateDraw(func() {})
		}
	})

	ui.engine.OnLoopModeChange(func(engine.LoopMode) {
		go ui.app.QueueUpdateDraw(func() { ui.renderTransport() })
	})

	ui.engine.OnSpeedChange(func(float64) {
		go ui.app.QueueUpdateDraw(func() { ui.renderTransport() })
	})
}

// saveSession snapshots the engine into the persistence bridge.
func (ui *UI) saveSession() {
	if state, ok := ui.sessionSnapshot(); ok {
		ui.bridge.SaveState(state)
	}
}

// sessionSnapshot converts the engine snapshot to a persistable state.
// Returns false while nothing is loaded.
func (ui *UI) sessionSnapshot() (persist.SavedState, bool) {
	snap := ui.engine.Snapshot()
	if snap.PlaylistLen == 0 || snap.Track.SeriesID == "" {
		return persist.SavedState{}, false
	}
	return persist.SavedState{
		SeriesID:        snap.Track.SeriesID,
		TrackIndex:      snap.Index,
		PositionSeconds: snap.Position,
		DurationSeconds: snap.Duration,
		ActiveTab:       ui.catalogService.CategoryOf(snap.Track.SeriesID),
		LoopMode:        snap.LoopMode.String(),
		Speed:           snap.Speed,
	}, true
}

func (ui *UI) stop() {
	ui.saveSession()
	ui.bridge.StopAutoSave()
	ui.catalogService.StopPeriodicRefresh()
	ui.engine.Close()
	ui.app.Stop()
}

// Shutdown stops the UI gracefully from external callers (e.g., signal handlers).
func (ui *UI) Shutdown() {
	ui.app.QueueUpdateDraw(func() {
		ui.stop()
	})
}

func (ui *UI) Run() error {
	ui.setupLoadingScreen()
	ui.app.SetRoot(ui.loadingScreen, true)
	ui.configureScreen()

	go ui.initAsync()

	return ui.app.Run()
}

func (ui *UI) configureScreen() {
	bgStyle := tcell.StyleDefault.Background(ui.colors.background)
	ui.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		screen.SetStyle(bgStyle)
		screen.Clear()
		return false
	})

	var titleSet sync.Once
	ui.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		titleSet.Do(func() { screen.SetTitle(config.AppName) })
	})
}

func (ui *UI) initAsync() {
	if err := ui.fetchCatalogAndInitUI(); err != nil {
		ui.app.QueueUpdateDraw(func() {
			ui.handleInitialError(err)
		})
	}
}

func (ui *UI) setupLoadingScreen() {
	ui.loadingText = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText("Fetching lecture catalog... (1/3)")
	ui.loadingText.SetTextColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background)

	ui.progressBar = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText(ui.renderLoadingBar(0))
	ui.progressBar.SetTextColor(ui.colors.highlight).
		SetBackgroundColor(ui.colors.background)

	content := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.loadingText, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.progressBar, 1, 0, false)
	content.SetBackgroundColor(ui.colors.background)

	ui.loadingScreen = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(content, 3, 0, false).
		AddItem(nil, 0, 1, false)

	ui.loadingScreen.SetBackgroundColor(ui.colors.background)
}

func (ui *UI) renderLoadingBar(percent int) string {
	const width = 30
	filled := (percent * width) / 100
	empty := width - filled
	return strings.Repeat("█", filled) + strings.Repeat("░", empty)
}

func (ui *UI) animateProgress(fromPercent, toPercent int, duration time.Duration) {
	steps := toPercent - fromPercent
	if steps <= 0 {
		return
	}
	stepDuration := duration / time.Duration(steps)
	lastBar := ui.renderLoadingBar(fromPercent)

	for p := fromPercent + 1; p <= toPercent; p++ {
		time.Sleep(stepDuration)
		if bar := ui.renderLoadingBar(p); bar != lastBar {
			ui.app.QueueUpdateDraw(func() {
				ui.progressBar.SetText(bar)
			})
			lastBar = bar
		}
	}
}

func (ui *UI) fetchCatalogAndInitUI() error {
	const totalStages = 3
	stagePercent := func(stage int) int { return (stage * 100) / totalStages }

	startTime := time.Now()

	animDone := make(chan struct{})
	go func() {
		ui.animateProgress(stagePercent(0), stagePercent(1), MinStatusDisplayTime)
		close(animDone)
	}()

	cat, err := ui.catalogService.GetCatalog(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch catalog: %w", err)
	}
	log.Debug().Msgf("Loaded %d series in %v", ui.catalogService.SeriesCount(), time.Since(startTime))

	<-animDone

	ui.app.QueueUpdateDraw(func() {
		ui.loadingText.SetText("Loading configuration... (2/3)")
	})

	validIDs := make(map[string]bool)
	for _, c := range cat.Categories {
		for _, s := range c.Series {
			validIDs[s.ID] = true
		}
	}
	ui.config.CleanupFavorites(validIDs)
	if err := ui.config.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save config")
	}

	ui.animateProgress(stagePercent(1), stagePercent(2), MinStatusDisplayTime)

	ui.app.QueueUpdateDraw(func() {
		ui.loadingText.SetText("Building interface... (3/3)")
	})

	ui.setupUI()
	ui.catalogService.StartPeriodicRefresh(CatalogRefreshPeriod, ui.onCatalogRefreshed)
	ui.bridge.StartAutoSave(persist.AutoSaveInterval, ui.sessionSnapshot)

	ui.animateProgress(stagePercent(2), stagePercent(3), MinStatusDisplayTime)

	// Floor, not ceiling: wait only if real work finished early.
	if elapsed := time.Since(startTime); elapsed < MinLoadingDisplayTime {
		time.Sleep(MinLoadingDisplayTime - elapsed)
	}
	log.Debug().Msgf("Total loading time: %v", time.Since(startTime))

	ui.app.QueueUpdateDraw(func() {
		ui.app.SetRoot(ui.pages, true).EnableMouse(true)
		ui.app.SetFocus(ui.seriesList)

		if ui.resume {
			ui.restoreLastSession()
		}
	})

	return nil
}

// restoreLastSession reopens the saved series and rearms the saved position
// without starting playback.
func (ui *UI) restoreLastSession() {
	state, ok := ui.bridge.RestoreState()
	if !ok {
		return
	}

	tracks := ui.catalogService.Tracks(state.SeriesID)
	if tracks == nil {
		log.Debug().Msgf("Saved series '%s' no longer in catalog", state.SeriesID)
		return
	}
	if state.TrackIndex < 0 || state.TrackIndex >= len(tracks) {
		log.Debug().Msgf("Saved track index %d out of range for '%s'", state.TrackIndex, state.SeriesID)
		return
	}

	ui.engine.RestoreSession(tracks, state.TrackIndex, state.PositionSeconds,
		engine.ParseLoopMode(state.LoopMode), state.Speed)
	ui.openSeries(state.SeriesID)
	ui.selectSeriesRow(state.SeriesID)
	log.Debug().Msgf("Restored session: %s #%d @ %.0fs", state.SeriesID, state.TrackIndex, state.PositionSeconds)
}

func (ui *UI) setupUI() {
	header := ui.createHeader()

	ui.playerPanel = ui.createPlayerPanel()
	ui.seriesList = ui.createSeriesTable()
	ui.episodeList = ui.createEpisodeTable()
	ui.helpPanel = ui.createFooter()

	lists := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(ui.seriesList, 0, 2, true).
		AddItem(nil, 1, 0, false).
		AddItem(ui.episodeList, 0, 3, false)
	lists.SetBackgroundColor(ui.colors.background)

	ui.contentLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.playerPanel, PlayerPanelHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(lists, 0, 1, true).
		AddItem(ui.helpPanel, FooterHeightWide, 0, false)
	ui.contentLayout.SetBackgroundColor(ui.colors.background)

	wrapper := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 3, 0, false).
		AddItem(ui.contentLayout, 0, 1, true).
		AddItem(nil, 3, 0, false)
	wrapper.SetBackgroundColor(ui.colors.background)

	ui.mainLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(wrapper, 0, 1, true).
		AddItem(nil, 1, 0, false)
	ui.mainLayout.SetBackgroundColor(ui.colors.background)

	ui.pages = tview.NewPages().
		AddPage("main", ui.mainLayout, true, true)
	ui.pages.SetBackgroundColor(ui.colors.background)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.pages.HasPage("modal") || ui.pages.HasPage("error-modal") || ui.pages.HasPage("ask-modal") {
			return event
		}
		return ui.globalInputHandler(event)
	})
}

func (ui *UI) createHeader() tview.Primitive {
	titleView := tview.NewTextView()
	titleView.SetText(" " + config.AppName + " · " + config.AppTagline)
	titleView.SetTextAlign(tview.AlignLeft)
	titleView.SetTextColor(ui.colors.foreground)
	titleView.SetBackgroundColor(ui.colors.headerBackground)

	versionView := tview.NewTextView()
	versionView.SetText("v" + config.AppVersion + " ")
	versionView.SetTextAlign(tview.AlignRight)
	versionView.SetTextColor(ui.colors.foreground)
	versionView.SetBackgroundColor(ui.colors.headerBackground)

	textFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(titleView, 0, 1, false).
		AddItem(versionView, 10, 0, false)
	textFlex.SetBackgroundColor(ui.colors.headerBackground)

	topSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	bottomSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	leftSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	rightSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)

	textWithPadding := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(leftSpacer, 1, 0, false).
		AddItem(textFlex, 0, 1, false).
		AddItem(rightSpacer, 1, 0, false)
	textWithPadding.SetBackgroundColor(ui.colors.headerBackground)

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topSpacer, 1, 0, false).
		AddItem(textWithPadding, 1, 0, false).
		AddItem(bottomSpacer, 1, 0, false)
	headerFlex.SetBackgroundColor(ui.colors.headerBackground)

	return headerFlex
}

func (ui *UI) createPlayerPanel() *tview.Flex {
	ui.nowPlayingView = tview.NewTextView()
	ui.nowPlayingView.SetDynamicColors(true)
	ui.nowPlayingView.SetText(" Nothing playing")
	ui.nowPlayingView.SetTextColor(ui.colors.highlight)
	ui.nowPlayingView.SetBackgroundColor(ui.colors.background)
	ui.nowPlayingView.SetWrap(false)
	ui.nowPlayingView.SetTextStyle(tcell.StyleDefault.Background(ui.colors.background).Attributes(tcell.AttrBold))

	ui.progressView = tview.NewTextView()
	ui.progressView.SetDynamicColors(true)
	ui.progressView.SetTextColor(ui.colors.foreground)
	ui.progressView.SetBackgroundColor(ui.colors.background)
	ui.progressView.SetWrap(false)

	ui.transportView = tview.NewTextView()
	ui.transportView.SetDynamicColors(true)
	ui.transportView.SetTextColor(ui.colors.foreground)
	ui.transportView.SetBackgroundColor(ui.colors.background)
	ui.transportView.SetWrap(false)

	panel := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(ui.nowPlayingView, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.progressView, 1, 0, false).
		AddItem(ui.transportView, 1, 0, false).
		AddItem(nil, 0, 1, false)
	panel.SetBackgroundColor(ui.colors.background)
	panel.SetBorder(true).
		SetTitle(" Now Playing ").
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background)

	ui.renderTransport()

	return panel
}

func (ui *UI) renderNowPlaying(tr catalog.Track, index, total int) {
	if ui.nowPlayingView == nil {
		return
	}
	ui.nowPlayingView.SetText(fmt.Sprintf(" [%s]%s[-] · %s (%d/%d)",
		ui.colors.highlight.String(),
		tr.SeriesTitle,
		tr.DisplayTitle(),
		index+1, total))
	ui.renderTransport()
}

func (ui *UI) renderProgress(position, duration float64) {
	if ui.progressView == nil {
		return
	}
	ui.progressView.SetText(" " + renderSeekBar(position, duration, 40) +
		fmt.Sprintf("  %s / %s", formatClock(position), formatClock(duration)))
}

func (ui *UI) renderTransport() {
	if ui.transportView == nil {
		return
	}
	snap := ui.engine.Snapshot()
	sleep := ui.engine.SleepStatus()

	parts := []string{
		"Loop: " + snap.LoopMode.String(),
		fmt.Sprintf("Speed: %.2gx", snap.Speed),
	}
	if sleep.Active || sleep.AfterTrack {
		parts = append(parts, "Sleep: "+sleep.String())
	}
	ui.transportView.SetText(" " + joinParts(parts))
}

func (ui *UI) onCatalogRefreshed(*catalog.Catalog) {
	ui.app.QueueUpdateDraw(func() {
		ui.rebuildSeriesTable()
		if ui.openSeriesID != "" {
			ui.fillEpisodeTable(ui.openSeriesID)
		}
	})
}

func (ui *UI) globalInputHandler(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			ui.stop()
			return nil
		case ' ':
			ui.engine.Toggle()
			return nil
		case 'n', 'N':
			ui.engine.SkipNext()
			return nil
		case 'p', 'P':
			ui.engine.SkipPrevious()
			return nil
		case 'l', 'L':
			ui.engine.CycleLoopMode()
			return nil
		case 's', 'S':
			ui.engine.CycleSpeed()
			return nil
		case 't', 'T':
			ui.engine.CycleSleepTimer()
			ui.renderTransport()
			return nil
		case 'h', 'H':
			ui.showHistoryModal()
			return nil
		case 'k', 'K':
			ui.showAskModal()
			return nil
		case 'f', 'F':
			ui.toggleFavorite()
			return nil
		case 'g', 'G':
			ui.showAppreciateModal()
			return nil
		case '?':
			ui.showHelpModal()
			return nil
		case 'a', 'A':
			ui.showAboutModal()
			return nil
		}
	case tcell.KeyTab:
		if ui.app.GetFocus() == ui.seriesList {
			ui.app.SetFocus(ui.episodeList)
		} else {
			ui.app.SetFocus(ui.seriesList)
		}
		return nil
	case tcell.KeyEscape:
		ui.stop()
		return nil
	case tcell.KeyRight:
		ui.engine.SeekBy(SeekStep)
		return nil
	case tcell.KeyLeft:
		ui.engine.SeekBy(-SeekStep)
		return nil
	}
	return event
}
