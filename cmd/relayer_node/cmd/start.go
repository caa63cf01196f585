package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	nlogger "github.com/neutron-org/neutron-logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/app"
	"github.com/bcnmy/relayer-node/internal/config"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relayer node",
	Run: func(cmd *cobra.Command, args []string) {
		startRelayerNode()
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func startRelayerNode() {
	loggerCfg, err := config.NewLoggerConfig()
	if err != nil {
		log.Fatalf("couldn't load logger config: %s", err)
	}
	globalLogger, err := loggerCfg.Build()
	if err != nil {
		log.Fatalf("couldn't build global logger: %s", err)
	}
	defer zap.ReplaceGlobals(globalLogger)()

	logRegistry, err := nlogger.NewRegistry(app.LoggerContexts()...)
	if err != nil {
		zap.L().Fatal("couldn't initialize loggers registry", zap.Error(err))
	}
	logger := logRegistry.Get(app.MainContext)
	logger.Info("relayer-node starts...", zap.String("version", app.Version), zap.String("commit", app.Commit))

	cfg, managers, err := config.NewRelayerNodeConfig(logger)
	if err != nil {
		logger.Fatal("cannot initialize relayer node config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		s := <-sigs
		logger.Info("Received termination signal, gracefully shutting down...",
			zap.String("signal", s.String()))
		cancel()
	}()

	node, err := app.NewNode(ctx, cfg, managers, logRegistry)
	if err != nil {
		logger.Fatal("failed to create relayer node", zap.Error(err))
	}
	defer node.Close()

	if err := node.Run(ctx); err != nil {
		logger.Error("relayer node exited with an error", zap.Error(err))
	}
}
