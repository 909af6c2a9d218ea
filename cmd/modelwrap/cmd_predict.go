package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rushteam/modelwrap/packaging"
	"github.com/rushteam/modelwrap/serving"
)

var (
	predictModel string
	predictInput string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run batch prediction on a CSV or JSON file, one result per line",
	RunE:  runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVarP(&predictModel, "model", "m", "", "model directory")
	f.StringVarP(&predictInput, "input", "i", "", "input rows (.csv with header, or split/records .json)")
	_ = predictCmd.MarkFlagRequired("model")
	_ = predictCmd.MarkFlagRequired("input")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	m, err := packaging.LoadModel(ctx, predictModel, packaging.WithLoadLogger(logger))
	if err != nil {
		return err
	}
	defer m.Close(ctx)

	f, err := os.Open(predictInput)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := serving.ContentTypeJSON
	if strings.EqualFold(filepath.Ext(predictInput), ".csv") {
		contentType = serving.ContentTypeCSV
	}
	frame, err := serving.DecodeFrame(contentType, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", predictInput, err)
	}

	out, err := m.Predict(ctx, frame)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if out.Labels != nil {
		for _, l := range out.Labels {
			fmt.Fprintln(w, l)
		}
		return nil
	}
	for _, v := range out.Values {
		fmt.Fprintln(w, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return nil
}
