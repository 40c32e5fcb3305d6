package model

import "fmt"

// Unit describes how a metric value is denominated.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitUSD     Unit = "usd"
	UnitRatio   Unit = "ratio"
	UnitCount   Unit = "count"
)

// Metric is a named numeric value with a unit. Immutable once computed.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (m Metric) String() string {
	switch m.Unit {
	case UnitPercent:
		return fmt.Sprintf("%s: %.2f%%", m.Name, m.Value)
	case UnitUSD:
		return fmt.Sprintf("%s: $%.2f", m.Name, m.Value)
	case UnitCount:
		return fmt.Sprintf("%s: %.0f", m.Name, m.Value)
	default:
		return fmt.Sprintf("%s: %.4f", m.Name, m.Value)
	}
}
