package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/modelwrap/serving"
)

var (
	serveModel   string
	serveAddr    string
	serveTimeout time.Duration
	serveWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a model directory over HTTP (/invocations, /ping)",
	RunE:  runServe,
}

func init() {
	def := serving.DefaultConfig()
	f := serveCmd.Flags()
	f.StringVarP(&serveModel, "model", "m", "", "model directory")
	f.StringVar(&serveAddr, "addr", def.Addr, "listen address")
	f.DurationVar(&serveTimeout, "timeout", def.Timeout, "request read/write timeout")
	f.BoolVar(&serveWatch, "watch", def.Watch, "reload the model when its MLmodel changes")
	_ = serveCmd.MarkFlagRequired("model")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := serving.NewServer(ctx, serving.Config{
		Addr:     serveAddr,
		ModelDir: serveModel,
		Timeout:  serveTimeout,
		Watch:    serveWatch,
	}, serving.WithLogger(logger))
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
