package core

import (
	"fmt"
	"strings"
)

// Schema 是有序的列名列表，描述一张表的列签名。
// 模型训练时的 Schema 决定了推理输入必须具备的列集合与列顺序。
type Schema []string

// Equal 判断两个 Schema 的列名与顺序是否完全一致。
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Index 返回列名在 Schema 中的位置，不存在返回 -1。
func (s Schema) Index(name string) int {
	for i, col := range s {
		if col == name {
			return i
		}
	}
	return -1
}

// Missing 返回 required 中不在 s 里的列（保持 required 的顺序）。
func (s Schema) Missing(required []string) []string {
	have := make(map[string]struct{}, len(s))
	for _, col := range s {
		have[col] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

func (s Schema) String() string {
	return "[" + strings.Join(s, ", ") + "]"
}

// Frame 是推理链路中的统一表格结构：有序列名 + 按行存储的数值。
//
// 原始输入（Input Record）与对齐后的模型输入（Processed Record）都用 Frame 表示。
// Frame 本身不做并发保护；需要修改时先 Copy。
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]float64
}

// NewFrame 创建 Frame，校验列名不重复且每行长度与列数一致。
// rows 会被复制，调用方之后修改 rows 不影响 Frame。
func NewFrame(columns []string, rows [][]float64) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if col == "" {
			return nil, NewDomainError(ModuleFrame, ErrorCodeInvalidInput, fmt.Sprintf("frame: empty column name at position %d", i))
		}
		if _, dup := index[col]; dup {
			return nil, NewDomainError(ModuleFrame, ErrorCodeInvalidInput, fmt.Sprintf("frame: duplicate column %q", col))
		}
		index[col] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, NewDomainError(ModuleFrame, ErrorCodeInvalidInput,
				fmt.Sprintf("frame: row %d has %d values, expected %d", i, len(row), len(columns)))
		}
	}
	owned := make([][]float64, len(rows))
	for i, row := range rows {
		owned[i] = append([]float64(nil), row...)
	}
	return &Frame{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    owned,
	}, nil
}

// MustFrame 与 NewFrame 相同，出错时 panic，便于测试与示例。
func MustFrame(columns []string, rows [][]float64) *Frame {
	f, err := NewFrame(columns, rows)
	if err != nil {
		panic(err)
	}
	return f
}

// FrameFromRecords 按 columns 顺序从 map 形式的记录构建 Frame。
// 记录缺少某列时返回 SchemaMismatch。
func FrameFromRecords(columns []string, records []map[string]float64) (*Frame, error) {
	rows := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, len(columns))
		var missing []string
		for j, col := range columns {
			v, ok := rec[col]
			if !ok {
				missing = append(missing, col)
				continue
			}
			row[j] = v
		}
		if len(missing) > 0 {
			return nil, NewSchemaMismatch(ModuleFrame, missing)
		}
		rows[i] = row
	}
	return NewFrame(columns, rows)
}

// Schema 返回列签名的副本。
func (f *Frame) Schema() Schema {
	return append(Schema(nil), f.columns...)
}

// Columns 同 Schema，返回 []string。
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len 返回行数。
func (f *Frame) Len() int { return len(f.rows) }

// Has 判断是否包含某列。
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column 返回某列的值（副本）。
func (f *Frame) Column(name string) ([]float64, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, NewSchemaMismatch(ModuleFrame, []string{name})
	}
	out := make([]float64, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[j]
	}
	return out, nil
}

// Row 返回第 i 行（副本）。
func (f *Frame) Row(i int) []float64 {
	return append([]float64(nil), f.rows[i]...)
}

// Rows 返回所有行的深拷贝。
func (f *Frame) Rows() [][]float64 {
	out := make([][]float64, len(f.rows))
	for i := range f.rows {
		out[i] = f.Row(i)
	}
	return out
}

// Record 返回第 i 行的 map 形式，用于规则表达式等按列名访问的场景。
func (f *Frame) Record(i int) map[string]float64 {
	rec := make(map[string]float64, len(f.columns))
	for j, col := range f.columns {
		rec[col] = f.rows[i][j]
	}
	return rec
}

// Copy 返回与原 Frame 完全独立的深拷贝。
func (f *Frame) Copy() *Frame {
	index := make(map[string]int, len(f.index))
	for k, v := range f.index {
		index[k] = v
	}
	return &Frame{
		columns: append([]string(nil), f.columns...),
		index:   index,
		rows:    f.Rows(),
	}
}

// SetColumn 写入一列：列已存在则覆盖，否则追加到末尾。
// values 长度必须等于行数。
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != len(f.rows) {
		return NewDomainError(ModuleFrame, ErrorCodeInvalidInput,
			fmt.Sprintf("frame: column %q has %d values, expected %d", name, len(values), len(f.rows)))
	}
	if j, ok := f.index[name]; ok {
		for i := range f.rows {
			f.rows[i][j] = values[i]
		}
		return nil
	}
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, name)
	for i := range f.rows {
		f.rows[i] = append(f.rows[i], values[i])
	}
	return nil
}

// Drop 删除指定列；不存在的列忽略。
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := f.index[n]; ok {
			drop[n] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return
	}
	keep := make([]string, 0, len(f.columns)-len(drop))
	for _, col := range f.columns {
		if _, ok := drop[col]; !ok {
			keep = append(keep, col)
		}
	}
	// Select 不会失败：keep 中的列都存在
	selected, _ := f.Select(keep)
	*f = *selected
}

// Select 按给定顺序挑选列，返回新的 Frame；缺失列返回 SchemaMismatch。
func (f *Frame) Select(columns []string) (*Frame, error) {
	if missing := Schema(f.columns).Missing(columns); len(missing) > 0 {
		return nil, NewSchemaMismatch(ModuleFrame, missing)
	}
	positions := make([]int, len(columns))
	for i, col := range columns {
		positions[i] = f.index[col]
	}
	rows := make([][]float64, len(f.rows))
	for i, row := range f.rows {
		out := make([]float64, len(positions))
		for k, j := range positions {
			out[k] = row[j]
		}
		rows[i] = out
	}
	return NewFrame(columns, rows)
}

// Slice 返回 [start, end) 行组成的新 Frame（行数据深拷贝）。
func (f *Frame) Slice(start, end int) *Frame {
	rows := make([][]float64, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, f.Row(i))
	}
	out, _ := NewFrame(f.columns, rows)
	return out
}
