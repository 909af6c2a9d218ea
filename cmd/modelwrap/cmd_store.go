package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/packaging"
	"github.com/rushteam/modelwrap/store"
)

var (
	storeModel     string
	storeName      string
	storeTTL       int
	storeOverwrite bool
	redisCfg       store.RedisConfig
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Export a model directory to Redis",
	RunE:  runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import a model from Redis into a local directory",
	RunE:  runPull,
}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		f := c.Flags()
		f.StringVarP(&storeModel, "model", "m", "", "local model directory")
		f.StringVar(&storeName, "name", "", "model name in the store")
		f.StringVar(&redisCfg.Addr, "redis-addr", "localhost:6379", "redis address")
		f.StringVar(&redisCfg.Password, "redis-password", "", "redis password")
		f.IntVar(&redisCfg.DB, "redis-db", 0, "redis database")
		_ = c.MarkFlagRequired("model")
		_ = c.MarkFlagRequired("name")
	}
	pushCmd.Flags().IntVar(&storeTTL, "ttl", 0, "expire keys after this many seconds (0 = never)")
	pullCmd.Flags().BoolVar(&storeOverwrite, "overwrite", false, "replace an existing non-empty model directory")
}

func runPush(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := store.NewRedisStore(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := packaging.Export(ctx, s, storeName, storeModel, storeTTL)
	if err != nil {
		return err
	}
	logger.Info("model pushed", zap.String("name", storeName), zap.String("uuid", m.ModelUUID), zap.Int("files", len(m.Files)))
	fmt.Fprintf(cmd.OutOrStdout(), "pushed %s (%d files)\n", storeName, len(m.Files))
	return nil
}

func runPull(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := store.NewRedisStore(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := packaging.Import(ctx, s, storeName, storeModel, storeOverwrite)
	if err != nil {
		return err
	}
	logger.Info("model pulled", zap.String("name", storeName), zap.String("uuid", m.ModelUUID), zap.String("dir", storeModel))
	fmt.Fprintf(cmd.OutOrStdout(), "pulled %s into %s\n", storeName, storeModel)
	return nil
}
