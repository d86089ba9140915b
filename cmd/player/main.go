// Package main provides the terminal player entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/api/sse"
	"github.com/osa030/zora/internal/app/keys"
	"github.com/osa030/zora/internal/app/playback"
	"github.com/osa030/zora/internal/app/resume"
	"github.com/osa030/zora/internal/domain/track"
	"github.com/osa030/zora/internal/infra/catalog"
	"github.com/osa030/zora/internal/infra/config"
	"github.com/osa030/zora/internal/infra/logger"
	"github.com/osa030/zora/internal/infra/output"
	"github.com/osa030/zora/internal/infra/prefstore"
	"github.com/osa030/zora/internal/ui/tui"
)

var (
	app        = kingpin.New("zora-player", "zora terminal music player")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (overrides log.file)").String()

	// headless command
	headlessCmd = app.Command("headless", "Resume and play without the terminal UI")

	// list-outputs command
	listOutputsCmd = app.Command("list-outputs", "List available media outputs and exit")
)

func init() {
	// play command (default) - no need to store the command
	app.Command("play", "Start the terminal player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listOutputsCmd.FullCommand() {
		printOutputs()
		return
	}
	headless := command == headlessCmd.FullCommand()

	// Console logging until the config says otherwise
	if _, err := logger.Init(logger.Config{Level: levelFlag("info")}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	loggerConfig := logger.Config{Level: levelFlag(cfg.Log.Level), File: cfg.Log.File}
	if *logfile != "" {
		loggerConfig.File = *logfile
	}
	if !headless && loggerConfig.File == "" {
		// The terminal UI owns the screen
		loggerConfig.File = "zora.log"
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}
	defer closer.Close()

	if err := run(cfg, headless); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

func levelFlag(level string) string {
	if *verbose {
		return "debug"
	}
	return level
}

// run wires the player. Using a separate function ensures deferred cleanup
// runs even when returning with an error.
func run(cfg *config.Config, headless bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := prefstore.New(cfg.Preferences.Type, cfg.Preferences.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to create preference store")
	}
	defer store.Close()
	prefs := prefstore.NewPreferences(store)

	out, err := output.New(cfg.Output.Type, cfg.Output.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to create media output")
	}
	defer out.Close()

	client, err := catalog.New(catalog.Config{
		BaseURL:      cfg.API.BaseURL,
		AccessToken:  cfg.API.AccessToken,
		RefreshToken: cfg.API.RefreshToken,
		Timeout:      cfg.API.Timeout,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create catalog client")
	}

	engine := playback.NewEngine(out, cfg.EngineConfig(), playback.WithReporter(client))
	defer engine.Close()

	if v, ok := prefs.LoadVolume(); ok {
		engine.RestoreVolume(v.Volume, v.IsMuted)
	}

	writer := resume.NewWriter(engine, prefs, cfg.User, cfg.Playback.SnapshotMinDelta)
	go writer.Run(ctx)

	if cfg.Events.Addr != "" {
		publisher := sse.NewPublisher(engine, cfg.Events.AllowedOrigins)
		go publisher.Run(ctx)
		go func() {
			if err := publisher.ListenAndServe(ctx, cfg.Events.Addr); err != nil {
				zlog.Error().Err(err).Msg("Event stream stopped")
			}
		}()
	}

	coordinator := resume.NewCoordinator(engine, prefs)
	go func() {
		cat, err := loadCatalog(ctx, client)
		if err != nil {
			zlog.Error().Err(err).Msg("Catalog unavailable, nothing to resume")
			return
		}
		zlog.Info().Msgf("Catalog loaded: %d tracks", cat.Len())
		seeded := coordinator.Run(cfg.User, cat)
		if headless && !seeded && cat.Len() > 0 {
			engine.PlayContext(cat.Tracks(), 0)
		}
	}()

	executeHooks(cfg.Hooks.OnStarted, "on_started")
	defer executeHooks(cfg.Hooks.OnStopped, "on_stopped")

	if headless {
		logEvents(ctx, engine)
		zlog.Info().Msg("Received shutdown signal...")
		return nil
	}

	binder := keys.NewBinder(engine, cfg.KeysConfig())
	if err := tui.Run(ctx, engine, binder, client); err != nil {
		return err
	}
	zlog.Info().Msg("Player stopped")
	return nil
}

// loadCatalog fetches the catalog, retrying transient failures.
func loadCatalog(ctx context.Context, client *catalog.Client) (*track.Catalog, error) {
	maxRetries := 5
	baseDelay := 1 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying catalog load in %v...", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		tracks, err := client.GetAllTracks(ctx)
		if err != nil {
			lastErr = err
			zlog.Warn().Msgf("Failed to load catalog (attempt %d/%d): %v", i+1, maxRetries, err)
			var apiErr *catalog.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
				break
			}
			continue
		}
		return track.NewCatalog(tracks), nil
	}
	return nil, errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

// logEvents logs track and state changes until ctx is done or the engine closes.
func logEvents(ctx context.Context, engine *playback.Engine) {
	id, events := engine.Subscribe()
	defer engine.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case playback.EventTrackChanged, playback.EventStateChanged:
				s := engine.Status()
				if s.Track == nil {
					zlog.Info().Msgf("Player %s: nothing loaded", s.State)
					continue
				}
				zlog.Info().Msgf("Player %s: %s - %s [%d/%d]", s.State, s.Track.ArtistName, s.Track.Title, s.Index+1, len(s.Queue))
			}
		}
	}
}

// printOutputs prints available media outputs.
func printOutputs() {
	fmt.Println("Available Outputs:")
	for _, typ := range output.Types {
		note := ""
		if typ == "beep" && !output.BeepAvailable {
			note = " (unavailable in this build)"
		}
		fmt.Printf("  %s%s\n", typ, note)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
