package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mrecommender/pkg/config"
)

// app carries what every command needs once PersistentPreRunE has run
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	logLevel string
}

// NewRootCmd builds the mrecommender command tree. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "mrecommender",
		Short: "Mock mRecommender endpoint and recommendation checker",
		Long: `
Mock mRecommender endpoint and recommendation checker

Run without a subcommand to start the mock: every POST to localhost:3000
answers 200 with the body [12345].

Configurable Options:

Options may be supplied in $APPLICATION_CONFIGURATION_DIR/application.yaml
(default ./configs), in application-<profile>.yaml for each profile listed in
$APPLICATION_PROFILES_ACTIVE, or via environment variables.

  server:
      host               (string)  (SERVER_HOST)            default localhost
      port               (int)     (SERVER_PORT)            default 3000
  response:
      body               (string)  (RESPONSE_BODY)          default [12345]
  latency:
      enabled            (bool)    (LATENCY_ENABLED)        default false
      min-ms, max-ms     (int)                              default 0, 100
  admin:
      enabled            (bool)    (ADMIN_ENABLED)          default false
      host, port                                            default localhost, 3001
  logging:
      level              (string)  (LOGGING_LEVEL)          default info
  checker:
      timeout-seconds    (int)                              default 30
      max-retries        (int)                              default 3
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides logging.level")

	rootCmd.AddCommand(
		createServeCmd(a),
		createPrepareCmd(a),
		createValidateCmd(a),
	)
	return rootCmd
}

// setup loads configuration and builds the logger. Logs go to w so that command
// output on stdout stays clean.
func (a *app) setup(w io.Writer) error {
	bootLogger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(bootLogger)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if err := cfg.Set("logging.level", a.logLevel); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(slog.LevelInfo),
	}))
	return nil
}
