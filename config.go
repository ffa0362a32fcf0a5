package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Seednode/mash/plan"
)

type Config struct {
	bind            string
	catalog         string
	llmAPIKey       string
	llmModel        string
	llmProvider     string
	llmTimeout      time.Duration
	maxOutputTokens int
	metrics         bool
	playbackDelay   time.Duration
	port            int
	prefix          string
	profile         bool
	sessionTimeout  time.Duration
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool

	logger *zap.SugaredLogger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if c.playbackDelay < 0 {
		return fmt.Errorf("invalid playback delay (must not be negative): %s", c.playbackDelay)
	}
	return nil
}

// validateLLM checks the settings shared by the server and mash play.
func (c *Config) validateLLM() error {
	switch c.llmProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("invalid llm provider (must be openai or gemini): %q", c.llmProvider)
	}
	if c.llmTimeout <= 0 {
		return fmt.Errorf("invalid llm timeout (must be positive): %s", c.llmTimeout)
	}
	if c.maxOutputTokens < 1 || c.maxOutputTokens > math.MaxInt32 {
		return fmt.Errorf("invalid max output tokens (must be between 1-%d inclusive): %d", math.MaxInt32, c.maxOutputTokens)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// apiKey returns the configured key, falling back to the provider's usual
// environment variable.
func (c *Config) apiKey() string {
	if c.llmAPIKey != "" {
		return c.llmAPIKey
	}

	switch c.llmProvider {
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

func (c *Config) newGenerator() plan.Generator {
	switch c.llmProvider {
	case "gemini":
		return plan.NewGemini(c.apiKey(), c.llmModel)
	default:
		return plan.NewOpenAI(plan.OpenAIConfig{
			APIKey:  c.apiKey(),
			Model:   c.llmModel,
			Timeout: c.llmTimeout,
		})
	}
}

func (c *Config) newLogger() error {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(logDate)
	zc.DisableStacktrace = true
	if c.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c.logger = logger.Sugar()

	return nil
}

func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MASH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "mash",
		Short:         "A MASH-style life quiz that counts out your future and turns it into a plan.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.newLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cfg.logger != nil {
				_ = cfg.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.catalog, "catalog", "", "path to a yaml file replacing the built-in categories and moods (env: MASH_CATALOG)")
	pfs.StringVar(&cfg.llmAPIKey, "llm-api-key", "", "api key for the plan generator, defaults to OPENAI_API_KEY or GEMINI_API_KEY (env: MASH_LLM_API_KEY)")
	pfs.StringVar(&cfg.llmModel, "llm-model", "", "model used to write plans, defaults per provider (env: MASH_LLM_MODEL)")
	pfs.StringVar(&cfg.llmProvider, "llm-provider", "openai", "plan generator backend, openai or gemini (env: MASH_LLM_PROVIDER)")
	pfs.DurationVar(&cfg.llmTimeout, "llm-timeout", 2*time.Minute, "time allowed for a single plan to be written (env: MASH_LLM_TIMEOUT)")
	pfs.IntVar(&cfg.maxOutputTokens, "max-output-tokens", plan.DefaultMaxOutputTokens, "upper bound on generated plan length (env: MASH_MAX_OUTPUT_TOKENS)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: MASH_VERBOSE)")

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: MASH_BIND)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: MASH_METRICS)")
	fs.DurationVar(&cfg.playbackDelay, "playback-delay", 300*time.Millisecond, "pause between eliminations when replaying over websocket (env: MASH_PLAYBACK_DELAY)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: MASH_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: MASH_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: MASH_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle quiz sessions are forgotten (env: MASH_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: MASH_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: MASH_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: MASH_VERSION)")

	bindEnv(v, pfs)
	bindEnv(v, fs)

	cmd.AddCommand(newPlayCmd(cfg, v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("mash v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
