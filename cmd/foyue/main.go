package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lianbang999-crypto/foyue/internal/api"
	"github.com/lianbang999-crypto/foyue/internal/cache"
	"github.com/lianbang999-crypto/foyue/internal/config"
	"github.com/lianbang999-crypto/foyue/internal/engine"
	"github.com/lianbang999-crypto/foyue/internal/media"
	"github.com/lianbang999-crypto/foyue/internal/persist"
	"github.com/lianbang999-crypto/foyue/internal/service"
	"github.com/lianbang999-crypto/foyue/internal/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	versionFlag  = flag.Bool("version", false, "Show version information")
	debugFlag    = flag.Bool("debug", false, "Enable debug logging")
	noResumeFlag = flag.Bool("no-resume", false, "Do not restore the last listening session")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s v%s - %s\n\n", config.AppName, config.AppVersion, config.AppDescription)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()

		configPath, err := config.GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Fprintf(os.Stderr, "\nConfig file: %s\n", configPath)
			} else {
				fmt.Fprintf(os.Stderr, "\nConfig file will be created on first use.\n")
			}
		}
	}
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		fmt.Println(config.AppDescription)
		os.Exit(0)
	}

	if *debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)

		cacheDir, err := cache.GetCacheDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
			cacheDir = os.TempDir()
		}
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
		}
		logPath := filepath.Join(cacheDir, "debug.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
			logFile = os.Stderr
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, TimeFormat: "15:04:05"})
		fmt.Printf("Debug log: %s\n", logPath)
		log.Info().Msgf("Starting %s v%s (debug mode)", config.AppName, config.AppVersion)
	} else {
		// Avoid TUI corruption by only logging errors to /dev/null
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		logFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0644)
		if err == nil {
			log.Logger = log.Output(logFile)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
	}

	if *debugFlag {
		if configPath, err := config.GetConfigPath(); err == nil {
			log.Debug().Msgf("Config: %s", configPath)
		}
		if cacheDir, err := cache.GetCacheDir(); err == nil {
			log.Debug().Msgf("Cache: %s", cacheDir)
		}
	}

	statePath, err := config.GetStatePath()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to resolve state path, session persistence disabled")
		statePath = filepath.Join(os.TempDir(), config.StateFileName)
	}
	bridge := persist.NewBridge(persist.NewFileStore(statePath))

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.CatalogURL)
	catalogService := service.NewCatalogService(apiClient, cfg.CatalogURL)

	handle := media.NewStreamHandle()
	opts := engine.Options{
		Timing:     engine.DefaultTiming(),
		RecordPlay: apiClient.RecordPlay,
	}
	if !cfg.DisablePreload {
		opts.Preloader = media.NewPreloader()
	}
	eng := engine.New(handle, opts)

	appUI := ui.NewUI(eng, catalogService, apiClient, bridge, cfg, !*noResumeFlag)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	uiDone := make(chan error, 1)

	go func() {
		<-sigChan
		if *debugFlag {
			log.Info().Msg("Received shutdown signal, cleaning up...")
		}
		appUI.Shutdown()
	}()

	if *debugFlag {
		log.Info().Msg("Starting UI...")
	}

	// Run UI in a goroutine so we can handle signals properly
	go func() {
		uiDone <- appUI.Run()
	}()

	if err := <-uiDone; err != nil {
		if *debugFlag {
			log.Error().Err(err).Msg("Error running UI")
		}
		handle.Stop()
		os.Exit(1)
	}

	// Ensure audio output is fully released before exiting
	handle.Stop()
	if *debugFlag {
		log.Info().Msg("Foyue stopped")
	}
}
