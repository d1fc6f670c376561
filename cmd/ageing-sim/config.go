package main

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/Bren2010/ageingsim/network/node"
	"github.com/Bren2010/ageingsim/network/params"
)

// Config specifies the file format of the optional --config override file.
// Every field is optional; anything left unset keeps its flag-derived
// default. Fields with a meaningful zero value use pointers so "unset" is
// distinguishable from "explicitly zero/false".
type Config struct {
	InitAge          *uint8 `yaml:"init-age"`
	SplitStrategy    string `yaml:"split"`
	MaxYoung         *int   `yaml:"max-young"`
	Iterations       *int   `yaml:"iterations"`
	SummaryIntervals *int   `yaml:"summary-intervals"`
	PAdd             *int   `yaml:"p-add"`
	PDrop            *int   `yaml:"p-drop"`
	DropDist         string `yaml:"drop-dist"`
	AgeInc           *bool  `yaml:"age-inc"`

	StructureOutputFile string `yaml:"structure-output-file"`
	MetricsAddr         string `yaml:"metrics-addr"`
	LevelDBDir          string `yaml:"leveldb-dir"`
}

// ReadConfig loads and parses a --config file.
func ReadConfig(filename string) (*Config, error) {
	raw, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var parsed Config
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Apply overlays any field this config sets on top of p, which is expected
// to already hold the flag-derived defaults.
func (c *Config) Apply(p *params.Params) error {
	if c.InitAge != nil {
		p.InitAge = *c.InitAge
	}
	if c.SplitStrategy != "" {
		strategy, err := params.ParseSplitStrategy(c.SplitStrategy)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		p.SplitStrategy = strategy
	}
	if c.MaxYoung != nil {
		p.MaxYoung = *c.MaxYoung
	}
	if c.Iterations != nil {
		p.Iterations = *c.Iterations
	}
	if c.SummaryIntervals != nil {
		p.SummaryIntervals = *c.SummaryIntervals
	}
	if c.PAdd != nil {
		p.PAdd = *c.PAdd
	}
	if c.PDrop != nil {
		p.PDrop = *c.PDrop
	}
	if c.DropDist != "" {
		dist, err := node.ParseDropDist(c.DropDist)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		p.DropDist = dist
	}
	if c.AgeInc != nil {
		p.AgeInc = *c.AgeInc
	}
	if c.StructureOutputFile != "" {
		p.StructureOutputFile = c.StructureOutputFile
	}
	return nil
}
