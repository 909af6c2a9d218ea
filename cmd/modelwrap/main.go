// Command modelwrap 打包、调用并发布房源价格标签模型。
//
//	modelwrap package --config wrapper.yaml --delegate forest.json --out ./airbnb
//	modelwrap predict --model ./airbnb --input listings.csv
//	modelwrap serve   --model ./airbnb --addr :5000
//	modelwrap push    --model ./airbnb --name airbnb --redis-addr localhost:6379
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/pkg/logging"
)

var (
	// 全局参数
	verbose bool
	logFile string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "modelwrap",
	Short: "Package and serve a preprocess -> regress -> label model",
	Long: `modelwrap wraps a trained regressor with its feature preprocessing and a
labeling step, so that raw listing rows go in and price labels come out.

The packaged model directory is self-describing (MLmodel + artifacts) and can
be loaded for batch prediction, served over HTTP, or pushed to Redis.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Options{Verbose: verbose, File: logFile})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file (rotated)")

	rootCmd.AddCommand(packageCmd, predictCmd, serveCmd, pushCmd, pullCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
