package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/config"
	_ "github.com/rushteam/modelwrap/config/builders"
	"github.com/rushteam/modelwrap/packaging"
	"github.com/rushteam/modelwrap/wrapper"
)

var (
	packageConfig    string
	packageDelegate  string
	packageKind      string
	packageOut       string
	packageName      string
	packageOverwrite bool
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Wrap a trained delegate model and save it as a model directory",
	Long: `Builds the wrapper from a config file (or the built-in Airbnb defaults),
loads the delegate model artifact and saves everything as a model directory.

Example:
  modelwrap package --delegate forest.json --kind random_forest --out ./airbnb --overwrite`,
	RunE: runPackage,
}

func init() {
	f := packageCmd.Flags()
	f.StringVarP(&packageConfig, "config", "c", "", "wrapper config (yaml/json); defaults to the built-in listing steps")
	f.StringVar(&packageDelegate, "delegate", "", "delegate model artifact, overrides model.path")
	f.StringVar(&packageKind, "kind", "", "delegate model kind, overrides model.kind")
	f.StringVarP(&packageOut, "out", "o", "", "output model directory")
	f.StringVar(&packageName, "name", "", "model name, overrides the config name")
	f.BoolVar(&packageOverwrite, "overwrite", false, "replace an existing non-empty output directory")
	_ = packageCmd.MarkFlagRequired("out")
}

func runPackage(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if packageConfig != "" {
		loaded, err := config.Load(packageConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if packageKind != "" {
		cfg.Model.Kind = packageKind
	}
	if packageDelegate != "" {
		abs, err := filepath.Abs(packageDelegate)
		if err != nil {
			return err
		}
		cfg.Model.Path = abs
	}
	if packageName != "" {
		cfg.Name = packageName
	}

	m, err := config.Build(cfg, wrapper.WithName(cfg.Name), wrapper.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := packaging.SaveModel(packageOut, &packaging.SaveRequest{
		Name:      cfg.Name,
		Wrapper:   m,
		Remote:    &cfg.Model,
		Overwrite: packageOverwrite,
	}); err != nil {
		return err
	}
	logger.Info("model packaged",
		zap.String("name", cfg.Name),
		zap.String("delegate", m.Delegate().Name()),
		zap.Strings("inputs", m.RequiredColumns()),
		zap.String("out", packageOut))
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s\n", cfg.Name, packageOut)
	return nil
}
