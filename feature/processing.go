package feature

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/rushteam/modelwrap/core"
)

// Step 是预处理步骤的统一接口：读取若干输入列，写入若干输出列。
//
// Step 直接修改传入的 Frame，调用方（Preprocessor）保证传入的是副本。
// Inputs 用于在执行任何步骤之前统一校验原始列是否齐全。
type Step interface {
	// Name 返回步骤名称（用于日志/错误）
	Name() string
	// Inputs 返回步骤依赖的列
	Inputs() []string
	// Outputs 返回步骤产出的列
	Outputs() []string
	// Apply 在 frame 上执行变换
	Apply(frame *core.Frame) error
	// Config 返回可重建该步骤的配置，用于打包持久化
	Config() StepConfig
}

// StepConfig 是单个预处理步骤的配置（支持 YAML/JSON）。
type StepConfig struct {
	Type   string         `yaml:"type" json:"type"`     // sum / truncate / bin / scale / drop
	Config map[string]any `yaml:"config" json:"config"` // 步骤特定配置
}

// 步骤类型
const (
	StepTypeSum      = "sum"
	StepTypeTruncate = "truncate"
	StepTypeBin      = "bin"
	StepTypeScale    = "scale"
	StepTypeDrop     = "drop"
)

// SumStep 行内求和：Output = sum(Inputs)。
// 典型用法：把各项评分相加得到 review_scores_sum。
type SumStep struct {
	Output  string
	Columns []string
}

// NewSumStep 创建求和步骤
func NewSumStep(output string, columns ...string) *SumStep {
	return &SumStep{Output: output, Columns: columns}
}

func (s *SumStep) Name() string      { return "sum:" + s.Output }
func (s *SumStep) Inputs() []string  { return s.Columns }
func (s *SumStep) Outputs() []string { return []string{s.Output} }

func (s *SumStep) Apply(frame *core.Frame) error {
	sums := make([]float64, frame.Len())
	for _, col := range s.Columns {
		values, err := frame.Column(col)
		if err != nil {
			return err
		}
		for i, v := range values {
			sums[i] += v
		}
	}
	return frame.SetColumn(s.Output, sums)
}

func (s *SumStep) Config() StepConfig {
	return StepConfig{Type: StepTypeSum, Config: map[string]any{
		"output": s.Output,
		"inputs": append([]string(nil), s.Columns...),
	}}
}

// 精度截取方式
const (
	TruncateModeRound = "round" // 按二进制精确值就近舍入，恰为一半时取偶
	TruncateModeTrunc = "trunc" // 直接舍弃多余小数位（向零取整）
)

// TruncateStep 把数值截取到固定小数位，典型用法：经纬度降精度得到 trunc_lat / trunc_long。
type TruncateStep struct {
	Input    string
	Output   string
	Decimals int
	Mode     string
}

// NewTruncateStep 创建截取步骤，mode 为空时使用 TruncateModeRound。
func NewTruncateStep(input, output string, decimals int, mode string) (*TruncateStep, error) {
	if mode == "" {
		mode = TruncateModeRound
	}
	if mode != TruncateModeRound && mode != TruncateModeTrunc {
		return nil, fmt.Errorf("truncate %s: unknown mode %q", input, mode)
	}
	if decimals < 0 {
		return nil, fmt.Errorf("truncate %s: decimals must be >= 0, got %d", input, decimals)
	}
	if output == "" {
		output = input
	}
	return &TruncateStep{Input: input, Output: output, Decimals: decimals, Mode: mode}, nil
}

func (s *TruncateStep) Name() string      { return "truncate:" + s.Output }
func (s *TruncateStep) Inputs() []string  { return []string{s.Input} }
func (s *TruncateStep) Outputs() []string { return []string{s.Output} }

func (s *TruncateStep) Apply(frame *core.Frame) error {
	values, err := frame.Column(s.Input)
	if err != nil {
		return err
	}
	for i, v := range values {
		values[i] = s.TruncateValue(v)
	}
	return frame.SetColumn(s.Output, values)
}

func (s *TruncateStep) Config() StepConfig {
	return StepConfig{Type: StepTypeTruncate, Config: map[string]any{
		"input":    s.Input,
		"output":   s.Output,
		"decimals": s.Decimals,
		"mode":     s.Mode,
	}}
}

// TruncateValue 对单个值截取精度。
// round 模式经十进制格式化舍入，2.675 得到 2.67 而不是 2.68，与训练时的 round(x, 2) 一致。
func (s *TruncateStep) TruncateValue(value float64) float64 {
	switch s.Mode {
	case TruncateModeTrunc:
		p := math.Pow(10, float64(s.Decimals))
		return math.Trunc(value*p) / p
	default:
		rounded, err := strconv.ParseFloat(strconv.FormatFloat(value, 'f', s.Decimals, 64), 64)
		if err != nil {
			return value
		}
		return rounded
	}
}

// BinStep 自定义分桶（指定分桶边界），输出桶下标。
//
// 边界升序；值 < 第一个边界落入 0 号桶，值 >= 最后一个边界落入最后一个桶。
type BinStep struct {
	Input      string
	Output     string
	Boundaries []float64
}

// NewBinStep 创建分桶步骤，边界会被复制并排序
func NewBinStep(input, output string, boundaries []float64) (*BinStep, error) {
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("bin %s: boundaries are required", input)
	}
	sorted := make([]float64, len(boundaries))
	copy(sorted, boundaries)
	sort.Float64s(sorted)
	if output == "" {
		output = input
	}
	return &BinStep{Input: input, Output: output, Boundaries: sorted}, nil
}

func (s *BinStep) Name() string      { return "bin:" + s.Output }
func (s *BinStep) Inputs() []string  { return []string{s.Input} }
func (s *BinStep) Outputs() []string { return []string{s.Output} }

func (s *BinStep) Apply(frame *core.Frame) error {
	values, err := frame.Column(s.Input)
	if err != nil {
		return err
	}
	for i, v := range values {
		values[i] = float64(s.Bin(v))
	}
	return frame.SetColumn(s.Output, values)
}

func (s *BinStep) Config() StepConfig {
	return StepConfig{Type: StepTypeBin, Config: map[string]any{
		"input":      s.Input,
		"output":     s.Output,
		"boundaries": append([]float64(nil), s.Boundaries...),
	}}
}

// Bin 返回值所在的桶下标
func (s *BinStep) Bin(value float64) int {
	last := len(s.Boundaries) - 1
	if value >= s.Boundaries[last] {
		return last
	}
	// 第一个大于 value 的边界的前一个桶
	idx := sort.Search(len(s.Boundaries), func(i int) bool { return s.Boundaries[i] > value })
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// Scaler 是单值缩放接口（Z-score / Min-Max / Log 等）
type Scaler interface {
	Scale(value float64) float64
	// Params 返回缩放方法名与参数，用于持久化
	Params() map[string]any
}

// ZScoreScaler Z-score 标准化
// 公式: z = (x - μ) / σ，σ <= 0 时保持原值
type ZScoreScaler struct {
	Mean float64
	Std  float64
}

func (s ZScoreScaler) Scale(value float64) float64 {
	if s.Std > 0 {
		return (value - s.Mean) / s.Std
	}
	return value
}

func (s ZScoreScaler) Params() map[string]any {
	return map[string]any{"method": "zscore", "mean": s.Mean, "std": s.Std}
}

// MinMaxScaler Min-Max 归一化
// 公式: x' = (x - min) / (max - min)，区间为 0 时保持原值
type MinMaxScaler struct {
	Min float64
	Max float64
}

func (s MinMaxScaler) Scale(value float64) float64 {
	if r := s.Max - s.Min; r > 0 {
		return (value - s.Min) / r
	}
	return value
}

func (s MinMaxScaler) Params() map[string]any {
	return map[string]any{"method": "minmax", "min": s.Min, "max": s.Max}
}

// LogScaler Log 变换
// 公式: x' = log(x + 1)，负值截为 0
type LogScaler struct{}

func (LogScaler) Scale(value float64) float64 {
	if value < 0 {
		return 0
	}
	return math.Log1p(value)
}

func (LogScaler) Params() map[string]any {
	return map[string]any{"method": "log"}
}

// ScaleStep 对单列做缩放
type ScaleStep struct {
	Input  string
	Output string
	Scaler Scaler
}

func (s *ScaleStep) Name() string      { return "scale:" + s.Output }
func (s *ScaleStep) Inputs() []string  { return []string{s.Input} }
func (s *ScaleStep) Outputs() []string { return []string{s.Output} }

func (s *ScaleStep) Apply(frame *core.Frame) error {
	values, err := frame.Column(s.Input)
	if err != nil {
		return err
	}
	for i, v := range values {
		values[i] = s.Scaler.Scale(v)
	}
	return frame.SetColumn(s.Output, values)
}

func (s *ScaleStep) Config() StepConfig {
	cfg := s.Scaler.Params()
	cfg["input"] = s.Input
	cfg["output"] = s.Output
	return StepConfig{Type: StepTypeScale, Config: cfg}
}

// DropStep 显式删除列。对齐训练列签名时多余列本来就会被丢弃，
// DropStep 用于让中间结果更清晰，或在多个步骤之间释放列名。
type DropStep struct {
	Columns []string
}

func (s *DropStep) Name() string      { return "drop" }
func (s *DropStep) Inputs() []string  { return nil }
func (s *DropStep) Outputs() []string { return nil }

func (s *DropStep) Apply(frame *core.Frame) error {
	frame.Drop(s.Columns...)
	return nil
}

func (s *DropStep) Config() StepConfig {
	return StepConfig{Type: StepTypeDrop, Config: map[string]any{
		"columns": append([]string(nil), s.Columns...),
	}}
}

// 评分列与坐标列的默认命名，对应房源价格模型的训练数据。
var ReviewScoreColumns = []string{
	"review_scores_accuracy",
	"review_scores_cleanliness",
	"review_scores_checkin",
	"review_scores_communication",
	"review_scores_location",
	"review_scores_value",
}

const (
	ReviewScoresSumColumn = "review_scores_sum"
	LatitudeColumn        = "latitude"
	LongitudeColumn       = "longitude"
	TruncLatColumn        = "trunc_lat"
	TruncLongColumn       = "trunc_long"
	DefaultCoordDecimals  = 2
)

// DefaultListingSteps 返回房源价格模型使用的默认预处理步骤：
// 评分求和 + 经纬度保留两位小数。
func DefaultListingSteps() []Step {
	lat, _ := NewTruncateStep(LatitudeColumn, TruncLatColumn, DefaultCoordDecimals, TruncateModeRound)
	long, _ := NewTruncateStep(LongitudeColumn, TruncLongColumn, DefaultCoordDecimals, TruncateModeRound)
	return []Step{
		NewSumStep(ReviewScoresSumColumn, ReviewScoreColumns...),
		lat,
		long,
	}
}
