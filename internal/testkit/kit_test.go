package testkit

import (
	"strings"
	"testing"
)

func TestCustomersPlantedProperties(t *testing.T) {
	cfg := DefaultCustomerConfig()
	cfg.Rows = 100
	cfg.MissingAgeRate = 0.2
	cfg.DuplicateRows = 3
	cfg.SpendOutliers = []float64{1000, -500}

	frame, err := Customers(cfg)
	if err != nil {
		t.Fatalf("generating: %v", err)
	}
	if frame.NumRows() != 105 {
		t.Errorf("rows = %d, want 100 + 3 duplicates + 2 outliers", frame.NumRows())
	}
	if frame.DuplicateRowCount() < 3 {
		t.Errorf("duplicate rows = %d, want at least the 3 planted", frame.DuplicateRowCount())
	}

	age, _ := frame.Column("age")
	if age.MissingCount() == 0 {
		t.Error("missing age cells were configured but none generated")
	}

	spend, _ := frame.Column("spend")
	sawHigh, sawLow := false, false
	for _, v := range spend.Values {
		if v.Valid && v.Num >= 1000 {
			sawHigh = true
		}
		if v.Valid && v.Num <= -500 {
			sawLow = true
		}
	}
	if !sawHigh || !sawLow {
		t.Error("planted spend outliers missing from the frame")
	}
}

func TestCustomersDeterministicUnderSeed(t *testing.T) {
	cfg := DefaultCustomerConfig()
	a, err := Customers(cfg)
	if err != nil {
		t.Fatalf("generating: %v", err)
	}
	b, err := Customers(cfg)
	if err != nil {
		t.Fatalf("generating: %v", err)
	}
	sa, _ := a.Column("spend")
	sb, _ := b.Column("spend")
	for i := range sa.Values {
		if sa.Values[i].Num != sb.Values[i].Num {
			t.Fatalf("row %d differs across identically seeded runs", i)
		}
	}
}

func TestCustomersCSVShape(t *testing.T) {
	cfg := DefaultCustomerConfig()
	cfg.Rows = 10
	text, err := CustomersCSV(cfg)
	if err != nil {
		t.Fatalf("rendering: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 11 {
		t.Fatalf("csv has %d lines, want header + 10 rows", len(lines))
	}
	if lines[0] != "customer_id,age,spend,group,region" {
		t.Errorf("header = %q", lines[0])
	}
}

func TestNumericFrame(t *testing.T) {
	frame, err := NumericFrame(map[string][]float64{
		"b": {1, 2, 3},
		"a": {4, 5, 6},
	})
	if err != nil {
		t.Fatalf("building: %v", err)
	}
	names := frame.ColumnNames()
	if names[0] != "a" || names[1] != "b" {
		t.Errorf("column order = %v, want sorted", names)
	}

	if _, err := NumericFrame(map[string][]float64{"a": {1}, "b": {1, 2}}); err == nil {
		t.Error("ragged columns should be rejected")
	}
}
