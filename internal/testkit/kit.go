// Package testkit generates seeded synthetic tabular data with known
// statistical properties, so tests can assert on effects they planted
// rather than on fixture files.
package testkit

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"datawhisperer/domain/dataset"
)

// CustomerConfig shapes the synthetic customer table. Every knob is a
// planted property a test can later assert on.
type CustomerConfig struct {
	Rows int
	Seed int64

	// MeanSpend and SpendStd shape the normally distributed spend
	// column before any group effect.
	MeanSpend float64
	SpendStd  float64

	// GroupEffect is added to spend for the "treatment" group, so a
	// two-sample test has a real difference to find.
	GroupEffect float64

	// MissingAgeRate is the fraction of age cells left empty.
	MissingAgeRate float64

	// DuplicateRows appends exact copies of the first row.
	DuplicateRows int

	// SpendOutliers appends rows whose spend sits far outside the
	// normal bulk.
	SpendOutliers []float64

	// ConstantRegion fills the region column with a single value.
	ConstantRegion bool
}

// DefaultCustomerConfig plants a modest effect with no data defects.
func DefaultCustomerConfig() CustomerConfig {
	return CustomerConfig{
		Rows:        200,
		Seed:        42,
		MeanSpend:   100,
		SpendStd:    15,
		GroupEffect: 10,
	}
}

// Customers builds the synthetic frame: id, age, spend, group, region.
func Customers(cfg CustomerConfig) (*dataset.Frame, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	regions := []string{"north", "south", "east", "west"}

	total := cfg.Rows + cfg.DuplicateRows + len(cfg.SpendOutliers)
	ids := make([]dataset.Value, 0, total)
	ages := make([]dataset.Value, 0, total)
	spends := make([]dataset.Value, 0, total)
	groups := make([]dataset.Value, 0, total)
	regionVals := make([]dataset.Value, 0, total)

	for i := 0; i < cfg.Rows; i++ {
		ids = append(ids, dataset.Number(float64(i+1)))

		if rng.Float64() < cfg.MissingAgeRate {
			ages = append(ages, dataset.Null)
		} else {
			ages = append(ages, dataset.Number(float64(20+rng.Intn(50))))
		}

		group := "control"
		effect := 0.0
		if i%2 == 1 {
			group = "treatment"
			effect = cfg.GroupEffect
		}
		groups = append(groups, dataset.String(group))
		spends = append(spends, dataset.Number(cfg.MeanSpend+effect+rng.NormFloat64()*cfg.SpendStd))

		region := regions[rng.Intn(len(regions))]
		if cfg.ConstantRegion {
			region = regions[0]
		}
		regionVals = append(regionVals, dataset.String(region))
	}

	for i := 0; i < cfg.DuplicateRows && cfg.Rows > 0; i++ {
		ids = append(ids, ids[0])
		ages = append(ages, ages[0])
		spends = append(spends, spends[0])
		groups = append(groups, groups[0])
		regionVals = append(regionVals, regionVals[0])
	}

	for _, v := range cfg.SpendOutliers {
		ids = append(ids, dataset.Number(float64(len(ids)+1)))
		ages = append(ages, dataset.Number(40))
		spends = append(spends, dataset.Number(v))
		groups = append(groups, dataset.String("control"))
		regionVals = append(regionVals, dataset.String(regions[0]))
	}

	return dataset.NewFrame(
		dataset.Column{Name: "customer_id", DType: dataset.DTypeInt, Values: ids},
		dataset.Column{Name: "age", DType: dataset.DTypeFloat, Values: ages},
		dataset.Column{Name: "spend", DType: dataset.DTypeFloat, Values: spends},
		dataset.Column{Name: "group", DType: dataset.DTypeString, Values: groups},
		dataset.Column{Name: "region", DType: dataset.DTypeString, Values: regionVals},
	)
}

// CustomersCSV renders the same synthetic table as CSV text for
// ingestion tests.
func CustomersCSV(cfg CustomerConfig) (string, error) {
	frame, err := Customers(cfg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(frame.ColumnNames(), ","))
	sb.WriteByte('\n')
	cols := frame.Columns()
	for r := 0; r < frame.NumRows(); r++ {
		cells := make([]string, len(cols))
		for i := range cols {
			cells[i] = cols[i].Values[r].Render(cols[i].DType)
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// NormalSample draws n values from N(mean, std) under a fixed seed.
func NormalSample(n int, mean, std float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + rng.NormFloat64()*std
	}
	return out
}

// NumericFrame wraps named float slices as a single frame, for tests
// that need exact values rather than generated ones.
func NumericFrame(columns map[string][]float64) (*dataset.Frame, error) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	// Deterministic column order keeps rendered output stable.
	sort.Strings(names)

	rows := -1
	cols := make([]dataset.Column, 0, len(names))
	for _, name := range names {
		vals := columns[name]
		if rows >= 0 && len(vals) != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", name, len(vals), rows)
		}
		rows = len(vals)
		cells := make([]dataset.Value, len(vals))
		for i, v := range vals {
			cells[i] = dataset.Number(v)
		}
		cols = append(cols, dataset.Column{Name: name, DType: dataset.DTypeFloat, Values: cells})
	}
	return dataset.NewFrame(cols...)
}
