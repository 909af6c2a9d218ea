package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		// 委托模型对该行的数值预测
		cel.Variable("prediction", cel.DoubleType),
		// 对齐后的模型输入行，列名 -> 数值
		cel.Variable("row", cel.MapType(cel.StringType, cel.DoubleType)),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Rule 是编译后的布尔表达式，使用 CEL (Common Expression Language) 实现。
// 编译一次，可被多个 goroutine 并发求值。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：prediction > 100.0 / prediction >= 50.0 && prediction < 100.0
//   - 按列访问：row.bedrooms >= 3.0 / row["trunc_lat"] > 37.7
//   - 存在性："bedrooms" in row
//
// 注意：CEL 不做 int / double 隐式转换，数值字面量需要写成 100.0。
type Rule struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，表达式必须返回 bool。
func Compile(expr string) (*Rule, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	if expr == "" {
		return nil, fmt.Errorf("compile error: empty expression")
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

// MustCompile 与 Compile 相同，出错时 panic
func MustCompile(expr string) *Rule {
	r, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// String 返回原始表达式
func (r *Rule) String() string { return r.expr }

// Evaluate 对一行预测求值
func (r *Rule) Evaluate(prediction float64, row map[string]float64) (bool, error) {
	if row == nil {
		row = map[string]float64{}
	}
	out, _, err := r.prg.Eval(map[string]any{
		"prediction": prediction,
		"row":        row,
	})
	if err != nil {
		// 访问不存在的列会报错，用 "col" in row 先判断
		return false, fmt.Errorf("eval %q: %w", r.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", r.expr, out.Value())
	}
	return result, nil
}
