package dsl

import (
	"testing"
)

func TestRule_Evaluate(t *testing.T) {
	row := map[string]float64{"bedrooms": 3, "trunc_lat": 37.77}

	tests := []struct {
		expr       string
		prediction float64
		want       bool
	}{
		{"prediction > 100.0", 150, true},
		{"prediction > 100.0", 100, false},
		{"prediction > 50.0 && row.bedrooms >= 3.0", 60, true},
		{`row["trunc_lat"] > 37.8`, 60, false},
		{`"bathrooms" in row`, 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			got, err := r.Evaluate(tt.prediction, row)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, expr := range []string{
		"",
		"prediction >",
		"prediction + 1.0",
		"price > 1.0",
	} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) expected error", expr)
		}
	}
}

func TestRule_EvaluateMissingColumn(t *testing.T) {
	r := MustCompile("row.bathrooms > 1.0")
	if _, err := r.Evaluate(10, map[string]float64{"bedrooms": 1}); err == nil {
		t.Error("expected error for missing column")
	}
}
