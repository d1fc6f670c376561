// Package params holds the simulation's configuration and validates it
// before a run starts, so that configuration errors are reported at
// startup rather than partway through a simulation.
package params

import (
	"fmt"

	"github.com/Bren2010/ageingsim/network/node"
)

// SplitStrategy controls when a Section decides it has grown enough to
// split.
type SplitStrategy int

const (
	// Always splits as soon as the raw membership threshold is reached.
	Always SplitStrategy = iota
	// Complete splits only when both resulting children would
	// themselves be complete sections.
	Complete
)

// ParseSplitStrategy parses the --split flag/config value.
func ParseSplitStrategy(s string) (SplitStrategy, error) {
	switch s {
	case "always":
		return Always, nil
	case "complete", "":
		return Complete, nil
	default:
		return 0, fmt.Errorf("params: unknown split strategy %q (want always or complete)", s)
	}
}

func (s SplitStrategy) String() string {
	if s == Always {
		return "always"
	}
	return "complete"
}

// Params is the full set of knobs governing one simulation run. The zero
// value is not valid; use Defaults() and override fields from there.
type Params struct {
	InitAge       uint8
	SplitStrategy SplitStrategy
	MaxYoung      int
	Iterations    int
	SummaryIntervals int
	PAdd, PDrop   int
	DropDist      node.DropDist
	AgeInc        bool

	StructureOutputFile string
}

// Defaults returns the configuration defaults documented in the external
// interface: init_age=4, split=complete, max_young=1, iterations=100000,
// summary_intervals=10000, p_add=90, p_drop=7, drop_dist=exp, age_inc=false.
func Defaults() Params {
	return Params{
		InitAge:          4,
		SplitStrategy:    Complete,
		MaxYoung:         1,
		Iterations:       100000,
		SummaryIntervals: 10000,
		PAdd:             90,
		PDrop:            7,
		DropDist:         node.Exp,
		AgeInc:           false,
	}
}

// Validate checks the cross-field constraints the external interface
// requires: p_add < 100, p_drop < 100, p_add + p_drop <= 100.
func (p Params) Validate() error {
	if p.PAdd < 0 || p.PAdd >= 100 {
		return fmt.Errorf("params: p_add must be in [0, 100), got %d", p.PAdd)
	}
	if p.PDrop < 0 || p.PDrop >= 100 {
		return fmt.Errorf("params: p_drop must be in [0, 100), got %d", p.PDrop)
	}
	if p.PAdd+p.PDrop > 100 {
		return fmt.Errorf("params: p_add + p_drop must be at most 100, got %d", p.PAdd+p.PDrop)
	}
	if p.Iterations < 0 {
		return fmt.Errorf("params: iterations must be non-negative, got %d", p.Iterations)
	}
	if p.SummaryIntervals <= 0 {
		return fmt.Errorf("params: summary_intervals must be positive, got %d", p.SummaryIntervals)
	}
	if p.MaxYoung < 0 {
		return fmt.Errorf("params: max_young must be non-negative, got %d", p.MaxYoung)
	}
	return nil
}
