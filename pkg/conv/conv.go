// Package conv 提供从 YAML/JSON 解析结果（map[string]any）中读取配置值的泛型工具，
// 供预处理步骤、模型加载器等按配置构建的组件使用。
package conv

import "fmt"

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32、uint64；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ConfigGet 从 map[string]any 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 从 config 取 int。YAML 解析得到 int，JSON 解析得到 float64，此处统一。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if m == nil {
		return defaultVal
	}
	switch val := m[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case float32:
		return int(val)
	default:
		return defaultVal
	}
}

// ConfigGetFloat64 从 config 取 float64，兼容整数写法（如 `threshold: 100`）。
func ConfigGetFloat64(m map[string]any, key string, defaultVal float64) float64 {
	if m == nil {
		return defaultVal
	}
	if f, ok := ToFloat64(m[key]); ok {
		return f
	}
	return defaultVal
}

// ConfigGetStrings 从 config 取字符串列表，兼容 []string 与 []any。
// 元素类型不是 string 时返回错误，避免配置写错被静默忽略。
func ConfigGetStrings(m map[string]any, key string) ([]string, error) {
	if m == nil {
		return nil, nil
	}
	switch val := m[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		out := make([]string, 0, len(val))
		for i, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected string, got %T", key, i, e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected list, got %T", key, val)
	}
}

// ConfigGetFloats 从 config 取数值列表，兼容 []float64 与 []any。
func ConfigGetFloats(m map[string]any, key string) ([]float64, error) {
	if m == nil {
		return nil, nil
	}
	switch val := m[key].(type) {
	case nil:
		return nil, nil
	case []float64:
		return append([]float64(nil), val...), nil
	case []any:
		out := make([]float64, 0, len(val))
		for i, e := range val {
			f, ok := ToFloat64(e)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected number, got %T", key, i, e)
			}
			out = append(out, f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected list, got %T", key, val)
	}
}
