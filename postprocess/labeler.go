package postprocess

import (
	"context"
	"fmt"

	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/pkg/dsl"
)

// 默认阈值与标签，对应房源价格模型：预测价格高于 100 视为昂贵。
const (
	DefaultThreshold  = 100.0
	DefaultAboveLabel = "Expensive"
	DefaultBelowLabel = "Not Expensive"
)

// Labeler 把数值预测映射为类别标签。
// values 与 rows 的行一一对应；rows 是委托模型实际看到的输入，可为 nil。
type Labeler interface {
	Name() string
	Label(ctx context.Context, values []float64, rows *core.Frame) ([]string, error)
	Config() LabelerConfig
}

// LabelerConfig 标签器配置（支持 YAML/JSON）
type LabelerConfig struct {
	Type   string         `yaml:"type" json:"type"` // threshold / rule
	Config map[string]any `yaml:"config" json:"config"`
}

// 标签器类型
const (
	LabelerTypeThreshold = "threshold"
	LabelerTypeRule      = "rule"
)

// ThresholdLabeler 单阈值二分类：value > Threshold 为 Above，否则为 Below。
// 恰好等于阈值归为 Below。
type ThresholdLabeler struct {
	Threshold float64
	Above     string
	Below     string
}

// NewThresholdLabeler 使用默认阈值与标签
func NewThresholdLabeler() *ThresholdLabeler {
	return &ThresholdLabeler{
		Threshold: DefaultThreshold,
		Above:     DefaultAboveLabel,
		Below:     DefaultBelowLabel,
	}
}

func (l *ThresholdLabeler) Name() string { return LabelerTypeThreshold }

// Apply 是纯函数：同长度、同顺序，任何输入都不会失败。
func (l *ThresholdLabeler) Apply(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v > l.Threshold {
			out[i] = l.Above
		} else {
			out[i] = l.Below
		}
	}
	return out
}

func (l *ThresholdLabeler) Label(_ context.Context, values []float64, _ *core.Frame) ([]string, error) {
	return l.Apply(values), nil
}

func (l *ThresholdLabeler) Config() LabelerConfig {
	return LabelerConfig{Type: LabelerTypeThreshold, Config: map[string]any{
		"threshold": l.Threshold,
		"above":     l.Above,
		"below":     l.Below,
	}}
}

// Rule 是一条标签规则：When 为 CEL 表达式，命中时输出 Label。
type Rule struct {
	When  string `yaml:"when" json:"when"`
	Label string `yaml:"label" json:"label"`
}

// RuleLabeler 按顺序匹配规则，第一条命中的规则决定标签；都不命中时使用 Default。
//
// 表达式可访问 prediction（double）与 row（对齐后的输入行）：
//
//	rules:
//	  - when: prediction > 300.0
//	    label: Luxury
//	  - when: prediction > 100.0 && row.bedrooms <= 1.0
//	    label: Expensive
//	default: Not Expensive
type RuleLabeler struct {
	Rules   []Rule
	Default string

	compiled []*dsl.Rule
}

// NewRuleLabeler 编译所有规则，任何一条编译失败都返回错误。
func NewRuleLabeler(rules []Rule, defaultLabel string) (*RuleLabeler, error) {
	l := &RuleLabeler{
		Rules:    append([]Rule(nil), rules...),
		Default:  defaultLabel,
		compiled: make([]*dsl.Rule, 0, len(rules)),
	}
	for i, r := range rules {
		if r.Label == "" {
			return nil, core.NewDomainError(core.ModulePostprocess, core.ErrorCodeInvalidInput,
				fmt.Sprintf("rule %d: label is required", i))
		}
		c, err := dsl.Compile(r.When)
		if err != nil {
			return nil, core.NewDomainError(core.ModulePostprocess, core.ErrorCodeInvalidInput,
				fmt.Sprintf("rule %d: %v", i, err))
		}
		l.compiled = append(l.compiled, c)
	}
	return l, nil
}

func (l *RuleLabeler) Name() string { return LabelerTypeRule }

func (l *RuleLabeler) Label(ctx context.Context, values []float64, rows *core.Frame) ([]string, error) {
	if rows != nil && rows.Len() != len(values) {
		return nil, core.NewDomainError(core.ModulePostprocess, core.ErrorCodeInvalidInput,
			fmt.Sprintf("rule labeler: %d values but %d rows", len(values), rows.Len()))
	}
	out := make([]string, len(values))
	for i, v := range values {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var record map[string]float64
		if rows != nil {
			record = rows.Record(i)
		}
		out[i] = l.Default
		for j, rule := range l.compiled {
			ok, err := rule.Evaluate(v, record)
			if err != nil {
				return nil, fmt.Errorf("row %d rule %d: %w", i, j, err)
			}
			if ok {
				out[i] = l.Rules[j].Label
				break
			}
		}
	}
	return out, nil
}

func (l *RuleLabeler) Config() LabelerConfig {
	rules := make([]any, 0, len(l.Rules))
	for _, r := range l.Rules {
		rules = append(rules, map[string]any{"when": r.When, "label": r.Label})
	}
	return LabelerConfig{Type: LabelerTypeRule, Config: map[string]any{
		"rules":   rules,
		"default": l.Default,
	}}
}

var (
	_ Labeler = (*ThresholdLabeler)(nil)
	_ Labeler = (*RuleLabeler)(nil)
)
