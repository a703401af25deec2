package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/degreeplan/pkg/artifacts"
	"github.com/Mindburn-Labs/degreeplan/pkg/audit"
	"github.com/Mindburn-Labs/degreeplan/pkg/config"
	"github.com/Mindburn-Labs/degreeplan/pkg/minizinc"
	"github.com/Mindburn-Labs/degreeplan/pkg/planner"
)

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeJSON(stdout io.Writer, v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// runTreeCmd implements `degreeplan tree`: the indentation tree of the
// requirements section, before classification.
func runTreeCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("tree", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		pf         planFlags
		jsonOutput bool
	)
	pf.register(cmd)
	cmd.BoolVar(&jsonOutput, "json", false, "Output the tree as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	ref, err := pf.ref()
	if err != nil {
		return exitCode(stderr, err)
	}

	ctx, stop := commandContext()
	defer stop()
	s, err := newSession(ctx, cfg, &pf)
	if err != nil {
		return exitCode(stderr, err)
	}
	defer s.Close()

	_, tree, err := s.newPlanner(nil).Layout(ctx, ref)
	if err != nil {
		return exitCode(stderr, err)
	}
	dump := tree.Dump(tree.Root())
	if jsonOutput {
		return exitCode(stderr, writeJSON(stdout, dump))
	}
	_, _ = fmt.Fprint(stdout, dump.String())
	return 0
}

// runClassifyCmd implements `degreeplan classify`.
func runClassifyCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("classify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		pf     planFlags
		tokens bool
	)
	pf.register(cmd)
	cmd.BoolVar(&tokens, "tokens", false, "Print the linearised token stream instead of JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	ref, err := pf.ref()
	if err != nil {
		return exitCode(stderr, err)
	}

	ctx, stop := commandContext()
	defer stop()
	s, err := newSession(ctx, cfg, &pf)
	if err != nil {
		return exitCode(stderr, err)
	}
	defer s.Close()

	run, err := s.newPlanner(nil).Classify(ctx, planner.Request{Ref: ref})
	if err != nil {
		return exitCode(stderr, err)
	}
	if !tokens {
		return exitCode(stderr, writeJSON(stdout, run.Result.Root))
	}
	prog, err := minizinc.Linearize(run.Result.Root, run.Result.Registry)
	if err != nil {
		return exitCode(stderr, err)
	}
	_, _ = fmt.Fprintln(stdout, prog.String())
	return 0
}

// runCompileCmd implements `degreeplan compile`.
func runCompileCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("compile", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		pf          planFlags
		catalogPath string
		outDir      string
		prefsPath   string
		oldPlanPath string
		undesired   string
		focus       int
		publish     bool
	)
	pf.register(cmd)
	cmd.StringVar(&catalogPath, "catalog", "", "Course catalog YAML (default $CATALOG_PATH, else the catalog database)")
	cmd.StringVar(&outDir, "out", ".", "Directory to write the model files to")
	cmd.StringVar(&prefsPath, "prefs", "", "YAML map of course code to preference in [0, 1]")
	cmd.StringVar(&oldPlanPath, "old-plan", "", "YAML map of course code to semester from a previous plan")
	cmd.StringVar(&undesired, "undesired", "", "Comma-separated courses to drop from the previous plan")
	cmd.IntVar(&focus, "focus", 0, "1-based qualification to enforce as a standalone constraint")
	cmd.BoolVar(&publish, "publish", false, "Also publish the artifacts to the configured store")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	ref, err := pf.ref()
	if err != nil {
		return exitCode(stderr, err)
	}
	if focus < 0 {
		return exitCode(stderr, fmt.Errorf("%w: --focus must not be negative", errUsage))
	}

	opts := minizinc.Options{Focus: focus}
	if prefsPath != "" {
		if err := readYAML(prefsPath, &opts.Preferences); err != nil {
			return exitCode(stderr, err)
		}
	}
	if oldPlanPath != "" {
		if err := readYAML(oldPlanPath, &opts.OldPlan); err != nil {
			return exitCode(stderr, err)
		}
	}
	for _, code := range strings.Split(undesired, ",") {
		if code = strings.TrimSpace(code); code != "" {
			opts.Undesired = append(opts.Undesired, code)
		}
	}

	ctx, stop := commandContext()
	defer stop()
	s, err := newSession(ctx, cfg, &pf)
	if err != nil {
		return exitCode(stderr, err)
	}
	defer s.Close()

	rel, err := loadRelations(ctx, cfg, catalogPath)
	if err != nil {
		return exitCode(stderr, err)
	}

	var popts []planner.Option
	if publish {
		store, err := artifacts.NewStoreFromEnv(ctx)
		if err != nil {
			return exitCode(stderr, err)
		}
		popts = append(popts, planner.WithStore(store))
	}
	p := s.newPlanner(rel, popts...)

	run, err := p.Compile(ctx, planner.Request{Ref: ref, Options: opts})
	if err != nil {
		return exitCode(stderr, err)
	}

	if err := writeModel(outDir, ref.Code, run.Model); err != nil {
		return exitCode(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "run %s: wrote %s.mzn and %s.dzn to %s (%d lists, %d qualifications, %d graduate courses)\n",
		run.ID, ref.Code, ref.Code, outDir, len(run.Model.Program.Lists()), len(run.Model.Scopes), len(run.Model.Closure.Grad))

	if publish {
		m, d, err := p.Publish(ctx, run)
		if err != nil {
			return exitCode(stderr, err)
		}
		_, _ = fmt.Fprintf(stdout, "manifest %s (%d artifacts)\n", d.Digest, len(m.Artifacts))
	}
	return 0
}

func writeModel(dir, code string, m *minizinc.Model) error {
	//nolint:gosec // G301: model files are read by the solver
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	files := []struct {
		name string
		body string
	}{
		{minizinc.LibraryName, minizinc.Library()},
		{code + ".mzn", m.Declarations},
		{code + ".dzn", m.Data},
	}
	for _, f := range files {
		//nolint:gosec // G306: model text
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.body), 0644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

// runAuditCmd implements `degreeplan audit`. A plan that does not satisfy
// the requirements exits 1.
func runAuditCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		pf         planFlags
		takenPath  string
		jsonOutput bool
	)
	pf.register(cmd)
	cmd.StringVar(&takenPath, "taken", "", "YAML map of course code to units taken (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	ref, err := pf.ref()
	if err != nil {
		return exitCode(stderr, err)
	}
	if takenPath == "" {
		return exitCode(stderr, fmt.Errorf("%w: --taken is required", errUsage))
	}
	var taken audit.Plan
	if err := readYAML(takenPath, &taken); err != nil {
		return exitCode(stderr, err)
	}

	ctx, stop := commandContext()
	defer stop()
	s, err := newSession(ctx, cfg, &pf)
	if err != nil {
		return exitCode(stderr, err)
	}
	defer s.Close()

	_, report, err := s.newPlanner(nil).Audit(ctx, planner.Request{Ref: ref}, taken)
	if err != nil {
		return exitCode(stderr, err)
	}

	if jsonOutput {
		if err := writeJSON(stdout, report); err != nil {
			return exitCode(stderr, err)
		}
	} else {
		for _, o := range report.Outcomes {
			status := "PASS"
			if !o.Satisfied {
				status = "FAIL"
			}
			_, _ = fmt.Fprintf(stdout, "%s %-4s %s %d (achieved %d)  %s\n", status, o.Name, o.Operator, o.Required, o.Achieved, o.Text)
		}
		if report.Satisfied {
			_, _ = fmt.Fprintln(stdout, "plan satisfies the requirements")
		} else {
			_, _ = fmt.Fprintln(stdout, "plan does not satisfy the requirements")
		}
	}
	if !report.Satisfied {
		return 1
	}
	return 0
}
