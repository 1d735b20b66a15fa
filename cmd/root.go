package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/strata/internal/config"
	"github.com/zjrosen/strata/internal/log"
)

// localConfigPath is where init writes and where lookup starts.
const localConfigPath = ".strata/config.yaml"

var (
	version  = "dev"
	cfgFile  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "A mutation-controlled state tree container",
	Long: `strata runs scripted scenarios against a module tree described by a
YAML manifest. State changes only through named mutations; actions
orchestrate commits; getters derive values.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .strata/config.yaml, then ~/.config/strata/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().Bool("strict", false,
		"panic on state changes made outside mutation handlers")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("strict", rootCmd.PersistentFlags().Lookup("strict"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("strict", defaults.Strict)
	viper.SetDefault("devtools", defaults.Devtools)
	viper.SetDefault("getters.cache", defaults.Getters.Cache)
	viper.SetDefault("log.path", defaults.Log.Path)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	viper.SetEnvPrefix("STRATA")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .strata/config.yaml (current directory)
		// 2. ~/.config/strata/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "strata"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// Running without any config file is fine; defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "warning: reading config: %v\n", err)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// setupLogging routes the store's log output to the configured file, or to
// w when no file is set.
func setupLogging(w io.Writer) (func(), error) {
	var cleanup func()
	if cfg.Log.Path != "" {
		c, err := log.Init(cfg.Log.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing logging: %w", err)
		}
		cleanup = c
	} else {
		cleanup = log.InitWriter(w)
	}
	log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	log.Debug(log.CatConfig, "configuration loaded", "file", viper.ConfigFileUsed(), "strict", cfg.Strict)
	return cleanup, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
