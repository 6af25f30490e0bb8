package pddl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecSolver is the real Solver: it shells out to an external PDDL planner
// binary, passing the written problem file as its sole argument, and reads
// back a plan as one action per stdout line ("action arg1 arg2 ...").
// Injected behind the Solver interface so GoToPDDLFactory and the rest of
// internal/plan never know a subprocess is involved.
type ExecSolver struct {
	BinPath string
}

var _ Solver = ExecSolver{}

// Solve runs BinPath against problemPath and parses its stdout into Steps.
// A non-zero exit or empty output is reported as an error; GoToPDDLFactory's
// goToPDDLPlan already treats any Solve error as a fail-soft "no path"
// rather than propagating it to the intention loop.
func (s ExecSolver) Solve(ctx context.Context, problemPath string) ([]Step, error) {
	cmd := exec.CommandContext(ctx, s.BinPath, problemPath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pddl solver %s: %w: %s", s.BinPath, err, stderr.String())
	}

	var steps []Step
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		steps = append(steps, Step{Action: fields[0], Args: fields[1:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pddl solver output: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("pddl solver %s: empty plan", s.BinPath)
	}
	return steps, nil
}
