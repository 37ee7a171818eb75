package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"soundbridge/internal/bridge"
	"soundbridge/internal/config"
	"soundbridge/internal/pulsegraph"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "soundbridged",
	Short: "Soundbridge daemon",
	Long:  `Soundbridge - bridges host graph audio to a peer process over a local socket`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bridge",
	Run: func(cmd *cobra.Command, args []string) {
		runBridge()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("soundbridged v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/soundbridge/soundbridge.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBridge() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Socket connect failure is fatal; there is no retry or reconnect.
	ch, err := bridge.Dial(cfg.SocketPath)
	if err != nil {
		logger.Fatal("audio socket connect failed", zap.Error(err))
	}

	ring := bridge.NewRing(bridge.RingCapacity)
	br := bridge.New(ch, ring, logger)

	feed := bridge.NewFeed(ch, ring, logger)
	go feed.Run()

	g, err := pulsegraph.Connect(cfg, br, logger)
	if err != nil {
		ch.Close()
		logger.Fatal("host graph connect failed", zap.Error(err))
	}

	logger.Info("bridge running",
		zap.String("socket", cfg.SocketPath),
		zap.String("sink", cfg.SinkName),
		zap.String("source", cfg.SourceName))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-g.Fatal():
		logger.Error("host graph connection lost", zap.Error(err))
	}

	g.Close()
	ch.Close()
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
