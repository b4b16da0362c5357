package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seir-sim/seir-sim/sim"
)

var (
	solveRequestPath  string  // JSON request file
	solveScenario     string  // Preset name from the scenarios file
	solveScenarioPath string  // Path to scenarios.yaml
	solveFormat       string  // Trajectory encoding
	solveOutputStep   float64 // Regular output grid spacing (0 = solver steps)
)

// solveCmd runs one request locally and prints the trajectory.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve one request and print the trajectory",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadSolveRequest(solveRequestPath, solveScenario, solveScenarioPath)
		if err != nil {
			return err
		}
		format, err := sim.ParseResultFormat(solveFormat)
		if err != nil {
			return err
		}
		cfg := sim.DefaultSolverConfig()
		cfg.OutputStep = solveOutputStep
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		tr, err := sim.NewSolver(cfg, logrus.StandardLogger()).Solve(ctx, req)
		if err != nil {
			return err
		}
		logrus.Infof("Solved to t=%s with %d samples.", sim.FormatTime(req.Duration), len(tr))

		w := bufio.NewWriter(cmd.OutOrStdout())
		if err := sim.EncodeTrajectory(w, tr, format); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		return w.Flush()
	},
}

// loadSolveRequest reads exactly one of a JSON request file or a named preset.
func loadSolveRequest(requestPath, scenario, scenarioFile string) (sim.SolverRequest, error) {
	switch {
	case requestPath != "" && scenario != "":
		return sim.SolverRequest{}, errors.New("--request and --scenario are mutually exclusive")
	case requestPath != "":
		data, err := os.ReadFile(requestPath)
		if err != nil {
			return sim.SolverRequest{}, fmt.Errorf("read request: %w", err)
		}
		return sim.DecodeRequest(data)
	case scenario != "":
		f, err := LoadScenarios(scenarioFile)
		if err != nil {
			return sim.SolverRequest{}, err
		}
		s, err := f.Lookup(scenario)
		if err != nil {
			return sim.SolverRequest{}, err
		}
		return s.Request, nil
	default:
		return sim.SolverRequest{}, errors.New("one of --request or --scenario is required")
	}
}

func init() {
	solveCmd.Flags().StringVar(&solveRequestPath, "request", "", "JSON request file")
	solveCmd.Flags().StringVar(&solveScenario, "scenario", "", "Preset scenario name")
	solveCmd.Flags().StringVar(&solveScenarioPath, "scenarios", defaultScenariosPath, "Path to scenarios YAML file")
	solveCmd.Flags().StringVar(&solveFormat, "format", "map", "Trajectory encoding (map, records)")
	solveCmd.Flags().Float64Var(&solveOutputStep, "output-step", 0, "Sample on a regular grid of this spacing (0 = every accepted step)")
}
