package serving

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"sort"
	"strconv"
	"strings"

	"github.com/rushteam/modelwrap/core"
)

// 支持的请求格式
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"
)

// SplitFrame 是 split 朝向的 JSON 数据帧：{"columns": [...], "data": [[...], ...]}
type SplitFrame struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

// invocationRequest 兼容三种写法：顶层 split、dataframe_split、dataframe_records
type invocationRequest struct {
	SplitFrame
	DataframeSplit   *SplitFrame          `json:"dataframe_split,omitempty"`
	DataframeRecords []map[string]float64 `json:"dataframe_records,omitempty"`
}

// InvocationResponse 预测响应。包装器输出标签，裸回归器输出数值。
type InvocationResponse struct {
	Predictions any `json:"predictions"`
}

// DecodeFrame 按 Content-Type 解析请求体，空 Content-Type 按 JSON 处理
func DecodeFrame(contentType string, body io.Reader) (*core.Frame, error) {
	mediaType := ContentTypeJSON
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, invalidInput(fmt.Sprintf("bad content type %q", contentType))
		}
		mediaType = mt
	}
	switch mediaType {
	case ContentTypeJSON:
		return decodeJSON(body)
	case ContentTypeCSV:
		return DecodeCSV(body)
	default:
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeNotSupported,
			fmt.Sprintf("unsupported content type %q (supported: %s, %s)", mediaType, ContentTypeJSON, ContentTypeCSV))
	}
}

func decodeJSON(body io.Reader) (*core.Frame, error) {
	var req invocationRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return nil, invalidInput(fmt.Sprintf("parse json: %v", err))
	}
	switch {
	case req.DataframeSplit != nil:
		return splitToFrame(req.DataframeSplit)
	case req.DataframeRecords != nil:
		if len(req.DataframeRecords) == 0 {
			return nil, invalidInput("dataframe_records is empty")
		}
		// 记录之间列不一致时返回 SchemaMismatch
		return core.FrameFromRecords(recordColumns(req.DataframeRecords), req.DataframeRecords)
	default:
		return splitToFrame(&req.SplitFrame)
	}
}

func splitToFrame(s *SplitFrame) (*core.Frame, error) {
	if len(s.Columns) == 0 {
		return nil, invalidInput("columns is empty")
	}
	return core.NewFrame(s.Columns, s.Data)
}

// recordColumns 取第一条记录的列，按字母序保证确定性
func recordColumns(records []map[string]float64) []string {
	cols := make([]string, 0, len(records[0]))
	for k := range records[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// DecodeCSV 解析带表头的 CSV，所有单元格必须是数值
func DecodeCSV(r io.Reader) (*core.Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalidInput("csv: empty input")
		}
		return nil, invalidInput(fmt.Sprintf("csv: %v", err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]float64
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidInput(fmt.Sprintf("csv: %v", err))
		}
		row := make([]float64, len(record))
		for i, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, invalidInput(fmt.Sprintf("csv line %d column %q: %v", line, header[i], err))
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return core.NewFrame(header, rows)
}

// EncodePredictions 把模型输出转为响应
func EncodePredictions(out *core.Output) *InvocationResponse {
	if out.Labels != nil {
		return &InvocationResponse{Predictions: out.Labels}
	}
	return &InvocationResponse{Predictions: out.Values}
}

func invalidInput(msg string) error {
	return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, msg)
}
