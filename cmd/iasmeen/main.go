// Package main provides the iasmeen CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"iasmeen/internal/analysis"
	"iasmeen/internal/config"
	"iasmeen/internal/generation"
	"iasmeen/internal/i18n"
	"iasmeen/internal/logging"
	"iasmeen/internal/session"
	"iasmeen/internal/store"
	"iasmeen/internal/usage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgPath string
	apiKey  string
	model   string
	timeout time.Duration
	lang    string
	dataDir string
	verbose bool

	// Loaded by PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// newGenerator builds the Gemini client. Tests replace it.
var newGenerator = func(ctx context.Context, c *config.Config) (generation.Generator, error) {
	if err := c.ValidateLLM(); err != nil {
		return nil, err
	}
	return generation.NewGeminiGenerator(ctx, generation.GeminiConfig{
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.Model,
		Timeout:     c.LLM.GetTimeout(),
		Temperature: float32(c.LLM.Temperature),
	})
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "iasmeen",
	Short: "iasmeen - OSINT analysis dashboard",
	Long: `iasmeen looks up domains, IP addresses and email addresses through Gemini
structured output, reads metadata from uploaded images, and reviews the
reliability of each result.

Run without arguments to start the terminal dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := loadConfig(); err != nil {
			return err
		}
		return initLogging(isInteractive(cmd))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runDashboard,
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the terminal dashboard",
	Args:  cobra.NoArgs,
	RunE:  runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ~/.iasmeen/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Gemini model (default: "+config.DefaultModel+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default: llm.timeout)")
	rootCmd.PersistentFlags().StringVar(&lang, "lang", "", "Language: fr or en")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for history, usage and logs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(whoisCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(emailCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() error {
	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if apiKey != "" {
		c.LLM.APIKey = apiKey
	}
	if model != "" {
		c.LLM.Model = model
	}
	if timeout > 0 {
		c.LLM.Timeout = timeout.String()
	}
	if lang != "" {
		c.UI.Language = lang
	}
	if dataDir != "" {
		c.Storage.DataDir = dataDir
	}
	if verbose {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = c
	return nil
}

// isInteractive reports whether cmd takes over the terminal.
func isInteractive(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "dashboard"
}

// initLogging sends category logs to the log file in debug mode. Otherwise
// the dashboard stays silent and the other commands log through logger.
func initLogging(interactive bool) error {
	if cfg.Logging.DebugMode {
		return logging.Initialize(logging.Options{
			Dir:        cfg.LogsDir(),
			DebugMode:  true,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.Format == "json",
			Categories: cfg.Logging.Categories,
		})
	}
	if interactive {
		logging.SetRoot(zap.NewNop())
		return nil
	}
	logging.SetRoot(logger)
	return nil
}

// app holds the collaborators shared by every command.
type app struct {
	store      *store.Store
	tracker    *usage.Tracker
	dispatcher *analysis.Dispatcher
}

// openApp opens the history store and usage file. withGenerator also builds
// the Gemini pipeline; commands that only read history skip it.
func openApp(ctx context.Context, withGenerator bool) (*app, error) {
	st, err := store.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	tracker, err := usage.NewTracker(cfg.UsagePath())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to open usage file: %w", err)
	}
	a := &app{store: st, tracker: tracker}

	if withGenerator {
		gen, err := newGenerator(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		traced := generation.Tracing(generation.Validating(gen), st).WithUsage(tracker)
		a.dispatcher = analysis.NewDispatcher(traced)
	}
	logger.Debug("app opened", zap.String("database", st.Path()), zap.Bool("generator", withGenerator))
	return a, nil
}

// newSession creates a session that records into history and reviews in
// loc's language.
func (a *app) newSession(loc *i18n.Localizer) *session.Session {
	return session.New(a.dispatcher,
		session.WithRecorder(a.store),
		session.WithLanguage(func() string { return string(loc.Language()) }),
	)
}

// localizer returns a localizer for the configured language.
func localizer() (*i18n.Localizer, error) {
	l, err := i18n.ParseLanguage(cfg.UI.Language)
	if err != nil {
		return nil, err
	}
	return i18n.New(l)
}

func (a *app) Close() {
	if err := a.tracker.Close(); err != nil {
		logger.Warn("failed to save usage", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("failed to close history", zap.Error(err))
	}
}
