// Package viz defines visualization specs, their normalization, and
// render results.
package viz

import (
	"fmt"
	"strings"

	"datawhisperer/domain/core"
)

// ChartType is the closed set of renderable chart kinds.
type ChartType string

const (
	ChartHistogram ChartType = "histogram"
	ChartBox       ChartType = "box"
	ChartScatter   ChartType = "scatter"
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartPie       ChartType = "pie"
)

// AllChartTypes lists the closed set for error hints.
func AllChartTypes() []ChartType {
	return []ChartType{ChartHistogram, ChartBox, ChartScatter, ChartBar, ChartLine, ChartPie}
}

// chartAliases maps loose names, lowercased with separators stripped,
// onto the closed set.
var chartAliases = map[string]ChartType{
	"histogram":   ChartHistogram,
	"hist":        ChartHistogram,
	"box":         ChartBox,
	"boxplot":     ChartBox,
	"scatter":     ChartScatter,
	"scatterplot": ChartScatter,
	"bar":         ChartBar,
	"barchart":    ChartBar,
	"line":        ChartLine,
	"linechart":   ChartLine,
	"pie":         ChartPie,
	"piechart":    ChartPie,
}

// NormalizeChartType resolves a loose chart-type string ("box_plot",
// "Hist", "bar-chart") to the closed set.
func NormalizeChartType(raw string) (ChartType, error) {
	key := strings.ToLower(raw)
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, "-", "")
	if ct, ok := chartAliases[key]; ok {
		return ct, nil
	}
	allowed := make([]string, 0, len(chartAliases))
	for _, ct := range AllChartTypes() {
		allowed = append(allowed, string(ct))
	}
	return "", fmt.Errorf("invalid chart type %q, allowed: %s", raw, strings.Join(allowed, ", "))
}

// Role is the high-level analytic role of a chart.
type Role string

const (
	RoleDistribution Role = "distribution"
	RoleRelationship Role = "relationship"
	RoleComparison   Role = "comparison"
	RoleComposition  Role = "composition"
	RoleUnknown      Role = "unknown"
)

// ChartRole maps chart types to their analytic role.
func ChartRole(ct ChartType) Role {
	switch ct {
	case ChartHistogram, ChartBox:
		return RoleDistribution
	case ChartScatter, ChartLine:
		return RoleRelationship
	case ChartBar:
		return RoleComparison
	case ChartPie:
		return RoleComposition
	default:
		return RoleUnknown
	}
}

// DefaultBins is the histogram bin count used when none is given.
const DefaultBins = 10

// Spec is a validated visualization request. Y and Hue are empty when
// unused; Bins always carries an explicit value so identical specs
// hash identically regardless of how defaults were supplied.
type Spec struct {
	DatasetID core.DatasetID `json:"dataset_id"`
	ChartType ChartType      `json:"chart_type"`
	X         string         `json:"x"`
	Y         string         `json:"y,omitempty"`
	Hue       string         `json:"hue,omitempty"`
	Bins      int            `json:"bins"`
	Role      Role           `json:"role"`
}

// CacheKey derives the canonical render-cache key from the normalized
// spec tuple.
func (s Spec) CacheKey() core.SpecKey {
	return core.NewSpecKey(
		s.DatasetID.String(),
		string(s.ChartType),
		s.X,
		s.Y,
		s.Hue,
		fmt.Sprintf("%d", s.Bins),
	)
}

// Result is a render outcome. Reused is true when an identical spec
// had already been rendered and the artifact was returned as-is.
type Result struct {
	Spec
	FilePath string `json:"file_path"`
	Reused   bool   `json:"reused"`
	Message  string `json:"message,omitempty"`
}
