package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pixivwatch/internal/daemon"
	"pixivwatch/pkg/auth"
	"pixivwatch/pkg/config"
	"pixivwatch/pkg/logger"
	"pixivwatch/pkg/notify"
	"pixivwatch/pkg/pixiv"
	"pixivwatch/pkg/state"
	"pixivwatch/pkg/wake"
	"pixivwatch/pkg/walker"
)

const imageFile = "img.jpg"

var (
	// Watch command flags
	watchDir     string
	pollDelay    int
	maxPages     int
	minSkipPages int
	webhookURL   string
	accountName  string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watch loop",
	Long: `Run the watch loop: poll the follow feed on a fixed delay, track the
most recent bookmarked work, and notify the configured sinks when the count
of newer works changes.

The loop wakes early when the wake file in the watch directory is touched,
and persists its state on SIGINT/SIGTERM before exiting.`,
	Example: `  # Watch with defaults (config.yaml in the current directory)
  pixivwatch watch

  # Watch a dedicated directory with a 60s delay
  pixivwatch watch --dir ~/pixiv --delay 60

  # Post change events to a webhook
  pixivwatch watch --webhook-url https://example.com/hook`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", "", "watch directory holding state and config (default: current directory)")
	watchCmd.Flags().IntVar(&pollDelay, "delay", 0, "poll delay in seconds")
	watchCmd.Flags().IntVar(&maxPages, "max-pages", 0, "page fetch ceiling per tick")
	watchCmd.Flags().IntVar(&minSkipPages, "min-skip-pages", 0, "minimum depth before the skip heuristic may trigger")
	watchCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "webhook URL receiving change events")
	watchCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")

	// The same flags work on the bare root command
	rootCmd.Flags().AddFlagSet(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if watchDir != "" {
		flags["dir"] = watchDir
	}
	if pollDelay > 0 {
		flags["delay"] = pollDelay
	}
	if maxPages > 0 {
		flags["max-pages"] = maxPages
	}
	if minSkipPages > 0 {
		flags["min-skip-pages"] = minSkipPages
	}
	if webhookURL != "" {
		flags["webhook-url"] = webhookURL
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	// Malformed configuration is fatal at startup
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		logger.WithError(err).Fatal("failed to initialize logging")
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("pixivwatch starting")

	if cfg.Pixiv.RefreshToken == "" {
		resolveStoredToken(cfg)
	}
	if cfg.Pixiv.RefreshToken == "" {
		log.Error("no refresh token found")
		log.Fatal("provide pixiv.refresh_token in config, PIXIVWATCH_REFRESH_TOKEN, or run 'pixivwatch auth login'")
	}

	store, err := state.NewStore(cfg.Watch.Dir)
	if err != nil {
		log.WithError(err).Fatal("failed to open state store")
	}

	ctx := context.Background()
	session, st := restoreOrBootstrap(ctx, cfg, store)

	w := walker.New(session, session, filepath.Join(cfg.Watch.Dir, imageFile))
	dispatcher := notify.NewDispatcher(buildSinks(cfg)...)
	log.WithField("sinks", dispatcher.Sinks()).Info("notification sinks configured")

	source := wake.New(cfg.Watch.PollDelay())
	defer source.Close()
	if cfg.Notify.WakeFile != "" {
		wakePath := filepath.Join(cfg.Watch.Dir, cfg.Notify.WakeFile)
		if err := source.WatchFile(wakePath); err != nil {
			log.WithError(err).Warn("wake file watch unavailable")
		}
	}

	d := daemon.New(cfg, session, w, dispatcher, source, store, st)
	if err := d.Run(ctx); err != nil {
		log.WithError(err).Error("watch loop failed")
		os.Exit(1)
	}
	return nil
}

// resolveStoredToken falls back to the credential manager when the config
// carries no refresh token
func resolveStoredToken(cfg *config.Config) {
	log := logger.GetLogger()

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("credential manager unavailable")
		return
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		return
	}

	cfg.Pixiv.RefreshToken = account.RefreshToken
	log.WithField("account", account.Name).Info("using stored credentials")
}

// restoreOrBootstrap rebuilds the session and traversal state from the
// durable record, or bootstraps fresh ones when no usable record exists.
// State-load failure is non-fatal; a fresh token exchange failure is.
func restoreOrBootstrap(ctx context.Context, cfg *config.Config, store *state.Store) (*pixiv.Session, *state.State) {
	log := logger.GetLogger()

	if dump := store.Load(); dump != nil && dump.Auth.RefreshToken != "" {
		session := pixiv.RestoreSession(dump.Auth, pixiv.WithUserAgent(cfg.Pixiv.UserAgent))
		st := dump.State
		return session, &st
	}

	log.Info("no prior state, starting fresh")
	session, err := pixiv.NewSession(ctx, cfg.Pixiv.RefreshToken, pixiv.WithUserAgent(cfg.Pixiv.UserAgent))
	if err != nil {
		log.WithError(err).Fatal("failed to authenticate")
	}
	return session, state.New()
}

// buildSinks assembles the notification sinks selected by configuration
func buildSinks(cfg *config.Config) []notify.Sink {
	log := logger.GetLogger()
	var sinks []notify.Sink

	if cfg.Notify.CallbackPath != "" {
		path := cfg.Notify.CallbackPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Watch.Dir, path)
		}
		sink, err := notify.NewExecSink(path)
		if err != nil {
			log.WithError(err).Warn("callback sink unavailable")
		} else if sink != nil {
			sinks = append(sinks, sink)
		}
	}

	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL))
	}

	if cfg.Notify.Desktop {
		if sink := notify.NewDesktopSink(); sink != nil {
			sinks = append(sinks, sink)
		} else {
			log.Warn("desktop notifications unsupported on this platform")
		}
	}

	return sinks
}
