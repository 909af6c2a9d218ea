package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewFrame_Validation(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		rows    [][]float64
		wantErr bool
	}{
		{name: "valid", columns: []string{"a", "b"}, rows: [][]float64{{1, 2}, {3, 4}}},
		{name: "no rows", columns: []string{"a"}, rows: nil},
		{name: "duplicate column", columns: []string{"a", "a"}, rows: nil, wantErr: true},
		{name: "empty column name", columns: []string{"a", ""}, rows: nil, wantErr: true},
		{name: "ragged row", columns: []string{"a", "b"}, rows: [][]float64{{1}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrame(tt.columns, tt.rows)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsInvalidInput(err) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestFrame_CopyIsIndependent(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}}
	f := MustFrame([]string{"a", "b"}, rows)

	rows[0][0] = 100
	if got := f.Row(0)[0]; got != 1 {
		t.Fatalf("frame shares caller rows: got %v", got)
	}

	c := f.Copy()
	if err := c.SetColumn("a", []float64{9, 9}); err != nil {
		t.Fatalf("SetColumn() error = %v", err)
	}
	if err := c.SetColumn("c", []float64{5, 6}); err != nil {
		t.Fatalf("SetColumn() error = %v", err)
	}

	if !f.Schema().Equal(Schema{"a", "b"}) {
		t.Errorf("original schema changed: %v", f.Schema())
	}
	if got := f.Row(1); got[0] != 3 || got[1] != 4 {
		t.Errorf("original row changed: %v", got)
	}
	if !c.Schema().Equal(Schema{"a", "b", "c"}) {
		t.Errorf("copy schema = %v", c.Schema())
	}
}

func TestFrame_SelectOrdersAndDrops(t *testing.T) {
	f := MustFrame([]string{"a", "b", "c"}, [][]float64{{1, 2, 3}})

	got, err := f.Select([]string{"c", "a"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !got.Schema().Equal(Schema{"c", "a"}) {
		t.Errorf("schema = %v", got.Schema())
	}
	if row := got.Row(0); row[0] != 3 || row[1] != 1 {
		t.Errorf("row = %v", row)
	}

	_, err = f.Select([]string{"a", "z"})
	if !IsSchemaMismatch(err) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	de := GetDomainError(err)
	if len(de.Columns) != 1 || de.Columns[0] != "z" {
		t.Errorf("missing columns = %v", de.Columns)
	}
}

func TestFrame_Drop(t *testing.T) {
	f := MustFrame([]string{"a", "b", "c"}, [][]float64{{1, 2, 3}})
	f.Drop("b", "missing")
	if !f.Schema().Equal(Schema{"a", "c"}) {
		t.Fatalf("schema = %v", f.Schema())
	}
	if !f.Has("c") || f.Has("b") {
		t.Errorf("index not rebuilt after drop")
	}
}

func TestFrameFromRecords(t *testing.T) {
	f, err := FrameFromRecords([]string{"x", "y"}, []map[string]float64{{"x": 1, "y": 2, "z": 3}})
	if err != nil {
		t.Fatalf("FrameFromRecords() error = %v", err)
	}
	if rec := f.Record(0); rec["x"] != 1 || rec["y"] != 2 || len(rec) != 2 {
		t.Errorf("record = %v", rec)
	}

	_, err = FrameFromRecords([]string{"x", "y"}, []map[string]float64{{"x": 1}})
	if !IsSchemaMismatch(err) {
		t.Errorf("expected schema mismatch, got %v", err)
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	base := NewSchemaMismatch(ModuleFeature, []string{"latitude"})
	wrapped := fmt.Errorf("preprocess: %w", base)

	if !IsSchemaMismatch(wrapped) {
		t.Fatal("IsSchemaMismatch should see through %w")
	}
	var de *DomainError
	if !errors.As(wrapped, &de) || de.Module != ModuleFeature {
		t.Errorf("errors.As = %v", de)
	}
	if IsNotFound(wrapped) {
		t.Error("IsNotFound should be false")
	}
	if IsSchemaMismatch(nil) {
		t.Error("nil is not a schema mismatch")
	}
}
