package testkit

import (
	"fmt"
	"math/rand"

	"fieldload/domain/fieldvalue"
)

// ValuesGeneratorConfig configures the synthetic spreadsheet generator
type ValuesGeneratorConfig struct {
	Rows          int     `json:"rows"`
	DistinctCount int     `json:"distinct_count"`
	EmptyRate     float64 `json:"empty_rate"`
	ParentRate    float64 `json:"parent_rate"`
	Seed          int64   `json:"seed"`
}

// DefaultValuesConfig returns a mid-sized sheet with heavy duplication
func DefaultValuesConfig() ValuesGeneratorConfig {
	return ValuesGeneratorConfig{
		Rows:          2000,
		DistinctCount: 150,
		EmptyRate:     0.05,
		ParentRate:    0.4,
		Seed:          42,
	}
}

// ValuesGenerator produces field value rows drawn from a fixed pool of
// distinct entries, so the expected dedup result is known up front
type ValuesGenerator struct {
	config ValuesGeneratorConfig
	rng    *rand.Rand
	pool   []fieldvalue.Row
}

// GeneratedValues is a generated sheet plus what a correct load of it yields
type GeneratedValues struct {
	Rows          []fieldvalue.Row
	DistinctUsed  int
	EmptyRows     int
	DuplicateRows int
}

// NewValuesGenerator creates a generator. The pool is derived from the seed.
func NewValuesGenerator(config ValuesGeneratorConfig) *ValuesGenerator {
	if config.DistinctCount <= 0 {
		config.DistinctCount = 1
	}
	g := &ValuesGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
	g.pool = g.buildPool()
	return g
}

func (g *ValuesGenerator) buildPool() []fieldvalue.Row {
	pool := make([]fieldvalue.Row, g.config.DistinctCount)
	for i := range pool {
		row := fieldvalue.Row{
			fieldvalue.ColumnValue:    fmt.Sprintf("Valor %04d", i+1),
			fieldvalue.ColumnAcronym:  "",
			fieldvalue.ColumnParentID: "",
		}
		if i%3 == 0 {
			row[fieldvalue.ColumnAcronym] = fmt.Sprintf("V%d", i+1)
		}
		if g.rng.Float64() < g.config.ParentRate {
			row[fieldvalue.ColumnParentID] = fmt.Sprintf("%d", 1000+g.rng.Intn(50))
		}
		pool[i] = row
	}
	return pool
}

// Generate draws the configured number of rows. Rows are copies; callers
// may modify them.
func (g *ValuesGenerator) Generate() GeneratedValues {
	out := GeneratedValues{Rows: make([]fieldvalue.Row, 0, g.config.Rows)}
	seen := make(map[int]bool)

	for i := 0; i < g.config.Rows; i++ {
		if g.rng.Float64() < g.config.EmptyRate {
			out.Rows = append(out.Rows, fieldvalue.Row{
				fieldvalue.ColumnValue:    "",
				fieldvalue.ColumnAcronym:  "XX",
				fieldvalue.ColumnParentID: "",
			})
			out.EmptyRows++
			continue
		}

		idx := g.rng.Intn(len(g.pool))
		if seen[idx] {
			out.DuplicateRows++
		} else {
			seen[idx] = true
		}
		row := make(fieldvalue.Row, len(g.pool[idx]))
		for k, v := range g.pool[idx] {
			row[k] = v
		}
		out.Rows = append(out.Rows, row)
	}

	out.DistinctUsed = len(seen)
	return out
}
