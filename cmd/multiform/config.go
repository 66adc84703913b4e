package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-multiform/pkg/prompt"
)

const envPrefix = "MULTIFORM"

type config struct {
	Definitions    string   `mapstructure:"definitions"`
	OpenAPI        string   `mapstructure:"openapi"`
	Components     []string `mapstructure:"components"`
	Forms          []string `mapstructure:"forms"`
	SuccessURL     string   `mapstructure:"success-url"`
	SuccessMessage string   `mapstructure:"success-message"`
	TemplateDir    string   `mapstructure:"template-dir"`
	MessageStore   string   `mapstructure:"message-store"`
	RedisAddr      string   `mapstructure:"redis-addr"`
	DatabaseURL    string   `mapstructure:"database-url"`
	Listen         string   `mapstructure:"listen"`
	BasePath       string   `mapstructure:"base-path"`
	Route          string   `mapstructure:"route"`
	MaxAttempts    int      `mapstructure:"max-attempts"`
	LogLevel       string   `mapstructure:"log-level"`
}

type cli struct {
	v      *viper.Viper
	cfg    config
	logger *zap.Logger
	logOut io.Writer
	driver prompt.Driver
}

func newCLI() *cli {
	return &cli{v: viper.New(), logOut: os.Stderr}
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:               "multiform",
		Short:             "Serve, fill and lint multi-form pages",
		SilenceUsage:      true,
		PersistentPreRunE: c.setupConfig,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	setupFlags(root.PersistentFlags())
	root.AddCommand(c.serveCommand(), c.fillCommand(), c.lintCommand())
	return root
}

func setupFlags(flags *pflag.FlagSet) {
	flags.String("config-file", "", "Path to config file.")
	flags.String("definitions", "", "directory of JSON/YAML form definitions")
	flags.String("openapi", "", "OpenAPI document whose component schemas become forms")
	flags.StringSlice("components", nil, "OpenAPI component schemas to use, in order")
	flags.StringSlice("forms", nil, "forms to show, in order; defaults to every loaded form")
	flags.String("success-url", "/", "redirect target after a successful submission")
	flags.String("success-message", "", "message shown on the page after a successful submission")
	flags.String("template-dir", "", "directory overriding the built-in page templates")
	flags.String("message-store", "memory", "success message store: none, memory or redis")
	flags.String("redis-addr", "localhost:6379", "redis host:port for the redis message store")
	flags.String("database-url", "", "postgres URL for saved records; empty keeps records in memory")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
}

func (c *cli) setupConfig(cmd *cobra.Command, _ []string) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		c.v.SetConfigFile(configFile)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if err := c.v.Unmarshal(&c.cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	c.cfg.Components = splitList(c.cfg.Components)
	c.cfg.Forms = splitList(c.cfg.Forms)

	logger, err := newLogger(c.cfg.LogLevel, c.logOut)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// splitList accepts both repeated values and comma separated strings, which
// is what environment variables provide.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func newLogger(level string, out io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if out == nil {
		out = os.Stderr
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(out), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
