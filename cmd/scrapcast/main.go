// Command scrapcast runs the tweet pipeline outside Lambda: it watches the
// tweets stream, polls for new quote tweets and seeds test records.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/config"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/logging"
)

var (
	configFile string
	logLevel   string

	cfg     *config.Config
	logger  *zap.Logger
	clients *aws.AWSClients
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scrapcast",
	Short: "Local runner for the ScrapCast tweet pipeline",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		clients, err = aws.NewAWSClients(cmd.Context(), cfg.AWS)
		if err != nil {
			return fmt.Errorf("init aws clients: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
