package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/hubertat/servicemaker"
	"github.com/spf13/cobra"

	"github.com/hubertat/pacball"
)

var (
	Version string
	Build   string

	configPath string
	logLevel   string

	pbService = servicemaker.ServiceMaker{
		User:               "pacball",
		UserGroups:         []string{"gpio", "i2c"},
		ServicePath:        "/etc/systemd/system/pacball.service",
		ServiceDescription: "PacBall service: ball machine io over WebSocket. github.com/hubertat/pacball",
		ExecDir:            "/srv/pacball",
		ExecName:           "pacball",
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pacball",
	Short: "Ball machine controller",
	Long: `Polls the three MCP23017 expanders of the ball machine and streams their
state to a browser over a WebSocket on the listen address.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path of the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides log_level from the config (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, installCmd, ioCmd, versionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll loop and the WebSocket server",
	RunE:  runServe,
}

func loadConfig() (pacball.Config, error) {
	cfg := pacball.DefaultConfig()
	_, err := os.Stat(configPath)
	if err == nil {
		cfg, err = pacball.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
	} else if cmdFlagChanged("config") {
		return cfg, fmt.Errorf("can't find config file %s: %w", configPath, err)
	} else {
		log.Warn("config file not found, using defaults", "path", configPath)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	return cfg, nil
}

func cmdFlagChanged(name string) bool {
	flag := rootCmd.PersistentFlags().Lookup(name)
	return flag != nil && flag.Changed
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("pacball started", "version", Version, "build", Build)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pb := pacball.New(cfg, Version)
	log.Info("will init pacball drivers...")
	err = pb.InitDrivers(ctx)
	defer pb.Close()
	if err != nil {
		return err
	}
	pb.InitTelemetry()
	pb.PrintIoStatus(os.Stdout)

	return pb.Run(ctx)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install pacball as a systemd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := pbService.InstallService()
		if err != nil {
			return err
		}
		log.Info("service installed!")
		return nil
	},
}

var ioCmd = &cobra.Command{
	Use:   "io",
	Short: "Print the expander address and bit of every field",
	Run: func(cmd *cobra.Command, args []string) {
		pacball.PrintIoTable(os.Stdout)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pacball %s (build: %s)\n", Version, Build)
	},
}
