package builders

import (
	"fmt"
	"time"

	"github.com/rushteam/modelwrap/config"
	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/pkg/conv"
	"github.com/rushteam/modelwrap/postprocess"
	"github.com/rushteam/modelwrap/service"
)

func init() {
	config.RegisterStep(feature.StepTypeSum, BuildSumStep)
	config.RegisterStep(feature.StepTypeTruncate, BuildTruncateStep)
	config.RegisterStep(feature.StepTypeBin, BuildBinStep)
	config.RegisterStep(feature.StepTypeScale, BuildScaleStep)
	config.RegisterStep(feature.StepTypeDrop, BuildDropStep)

	config.RegisterLabeler(postprocess.LabelerTypeThreshold, BuildThresholdLabeler)
	config.RegisterLabeler(postprocess.LabelerTypeRule, BuildRuleLabeler)

	config.RegisterModel(model.KindLinear, BuildLocalModel)
	config.RegisterModel(model.KindRandomForest, BuildLocalModel)
	config.RegisterModel(KindRPC, BuildRPCModel)
	config.RegisterModel(string(service.ServiceTypeTFServing), BuildServiceModel)
	config.RegisterModel(string(service.ServiceTypeKServe), BuildServiceModel)
}

// KindRPC 自定义 HTTP JSON 模型服务
const KindRPC = "rpc"

func BuildSumStep(cfg map[string]any) (feature.Step, error) {
	output := conv.ConfigGet(cfg, "output", "")
	if output == "" {
		return nil, fmt.Errorf("output not found")
	}
	inputs, err := conv.ConfigGetStrings(cfg, "inputs")
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("inputs not found")
	}
	return feature.NewSumStep(output, inputs...), nil
}

func BuildTruncateStep(cfg map[string]any) (feature.Step, error) {
	input := conv.ConfigGet(cfg, "input", "")
	if input == "" {
		return nil, fmt.Errorf("input not found")
	}
	return feature.NewTruncateStep(
		input,
		conv.ConfigGet(cfg, "output", ""),
		conv.ConfigGetInt(cfg, "decimals", feature.DefaultCoordDecimals),
		conv.ConfigGet(cfg, "mode", feature.TruncateModeRound),
	)
}

func BuildBinStep(cfg map[string]any) (feature.Step, error) {
	input := conv.ConfigGet(cfg, "input", "")
	if input == "" {
		return nil, fmt.Errorf("input not found")
	}
	boundaries, err := conv.ConfigGetFloats(cfg, "boundaries")
	if err != nil {
		return nil, err
	}
	return feature.NewBinStep(input, conv.ConfigGet(cfg, "output", ""), boundaries)
}

func BuildScaleStep(cfg map[string]any) (feature.Step, error) {
	input := conv.ConfigGet(cfg, "input", "")
	if input == "" {
		return nil, fmt.Errorf("input not found")
	}
	output := conv.ConfigGet(cfg, "output", input)

	var scaler feature.Scaler
	switch method := conv.ConfigGet(cfg, "method", ""); method {
	case "zscore":
		scaler = feature.ZScoreScaler{
			Mean: conv.ConfigGetFloat64(cfg, "mean", 0),
			Std:  conv.ConfigGetFloat64(cfg, "std", 1),
		}
	case "minmax":
		scaler = feature.MinMaxScaler{
			Min: conv.ConfigGetFloat64(cfg, "min", 0),
			Max: conv.ConfigGetFloat64(cfg, "max", 1),
		}
	case "log":
		scaler = feature.LogScaler{}
	default:
		return nil, fmt.Errorf("unknown scale method: %q", method)
	}
	return &feature.ScaleStep{Input: input, Output: output, Scaler: scaler}, nil
}

func BuildDropStep(cfg map[string]any) (feature.Step, error) {
	columns, err := conv.ConfigGetStrings(cfg, "columns")
	if err != nil {
		return nil, err
	}
	return &feature.DropStep{Columns: columns}, nil
}

func BuildThresholdLabeler(cfg map[string]any) (postprocess.Labeler, error) {
	return &postprocess.ThresholdLabeler{
		Threshold: conv.ConfigGetFloat64(cfg, "threshold", postprocess.DefaultThreshold),
		Above:     conv.ConfigGet(cfg, "above", postprocess.DefaultAboveLabel),
		Below:     conv.ConfigGet(cfg, "below", postprocess.DefaultBelowLabel),
	}, nil
}

func BuildRuleLabeler(cfg map[string]any) (postprocess.Labeler, error) {
	rulesConfig, ok := cfg["rules"].([]any)
	if !ok || len(rulesConfig) == 0 {
		return nil, fmt.Errorf("rules not found or invalid")
	}
	rules := make([]postprocess.Rule, 0, len(rulesConfig))
	for i, rc := range rulesConfig {
		ruleMap, ok := rc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rules[%d]: expected map, got %T", i, rc)
		}
		rules = append(rules, postprocess.Rule{
			When:  conv.ConfigGet(ruleMap, "when", ""),
			Label: conv.ConfigGet(ruleMap, "label", ""),
		})
	}
	return postprocess.NewRuleLabeler(rules, conv.ConfigGet(cfg, "default", postprocess.DefaultBelowLabel))
}

func BuildLocalModel(cfg *config.ModelConfig) (model.Regressor, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path not found")
	}
	return model.Load(cfg.Kind, cfg.Path)
}

func BuildRPCModel(cfg *config.ModelConfig) (model.Regressor, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint not found")
	}
	columns, err := remoteColumns(cfg)
	if err != nil {
		return nil, err
	}
	opts := []model.RPCOption{}
	if cfg.Timeout > 0 {
		opts = append(opts, model.WithRPCTimeout(time.Duration(cfg.Timeout)*time.Second))
	}
	if cfg.BatchSize > 0 || cfg.MaxConcurrent > 0 {
		opts = append(opts, model.WithRPCBatch(cfg.BatchSize, cfg.MaxConcurrent))
	}
	return model.NewRPCRegressor(KindRPC, cfg.Endpoint, columns, opts...), nil
}

func BuildServiceModel(cfg *config.ModelConfig) (model.Regressor, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("service not found")
	}
	columns, err := remoteColumns(cfg)
	if err != nil {
		return nil, err
	}
	svcCfg := *cfg.Service
	if svcCfg.Type == "" {
		svcCfg.Type = service.ServiceType(cfg.Kind)
	}
	if svcCfg.Timeout == 0 {
		svcCfg.Timeout = cfg.Timeout
	}
	svc, err := service.NewMLService(&svcCfg)
	if err != nil {
		return nil, err
	}
	m := model.NewServiceRegressor(cfg.Kind+":"+svcCfg.ModelName, columns, svc)
	m.ModelVersion = svcCfg.ModelVersion
	return m, nil
}

// remoteColumns 远程模型的列签名：优先 columns，否则读 metadata 文件
func remoteColumns(cfg *config.ModelConfig) ([]string, error) {
	if len(cfg.Columns) > 0 {
		return cfg.Columns, nil
	}
	if cfg.Metadata == "" {
		return nil, fmt.Errorf("columns not found")
	}
	meta, err := feature.LoadFeatureMetadata(cfg.Metadata)
	if err != nil {
		return nil, err
	}
	return meta.FeatureColumns, nil
}
