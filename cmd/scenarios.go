package cmd

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seir-sim/seir-sim/sim"
)

// defaultScenariosPath is looked up relative to the working directory.
const defaultScenariosPath = "scenarios.yaml"

// Scenario is a named preset request in scenarios.yaml.
type Scenario struct {
	Description string            `yaml:"description"`
	Request     sim.SolverRequest `yaml:"request"`
}

// ScenarioFile represents the full scenarios.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type ScenarioFile struct {
	Version   string              `yaml:"version"`
	Scenarios map[string]Scenario `yaml:"scenarios"`
}

// LoadScenarios parses a scenario file with strict field checking, so a
// misspelled parameter is an error rather than a silent zero.
func LoadScenarios(path string) (ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScenarioFile{}, fmt.Errorf("read scenarios file: %w", err)
	}
	var f ScenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return ScenarioFile{}, fmt.Errorf("parse scenarios file %s: %w", path, err)
	}
	for _, name := range f.Names() {
		if err := f.Scenarios[name].Request.Validate(); err != nil {
			return ScenarioFile{}, fmt.Errorf("scenario %q: %w", name, err)
		}
	}
	return f, nil
}

// Names returns the scenario names in sorted order.
func (f ScenarioFile) Names() []string {
	names := make([]string, 0, len(f.Scenarios))
	for name := range f.Scenarios {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the named scenario.
func (f ScenarioFile) Lookup(name string) (Scenario, error) {
	s, ok := f.Scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q; available: %s", name, strings.Join(f.Names(), ", "))
	}
	return s, nil
}

var scenariosPath string // Path to scenarios.yaml

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the preset scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := LoadScenarios(scenariosPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range f.Names() {
			s := f.Scenarios[name]
			if _, err := fmt.Fprintf(out, "%-20s duration=%-8s %s\n", name, sim.FormatTime(s.Request.Duration), s.Description); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	scenariosCmd.Flags().StringVar(&scenariosPath, "scenarios", defaultScenariosPath, "Path to scenarios YAML file")
}
