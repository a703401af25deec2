package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Mindburn-Labs/degreeplan/pkg/config"
	"github.com/Mindburn-Labs/degreeplan/pkg/document"
	"github.com/Mindburn-Labs/degreeplan/pkg/minizinc"
	"github.com/Mindburn-Labs/degreeplan/pkg/observability"
	"github.com/Mindburn-Labs/degreeplan/pkg/planner"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = success
//	1 = runtime failure (or a failed audit)
//	2 = usage error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel, stderr)

	switch args[1] {
	case "tree":
		return runTreeCmd(args[2:], cfg, stdout, stderr)
	case "classify":
		return runClassifyCmd(args[2:], cfg, stdout, stderr)
	case "compile":
		return runCompileCmd(args[2:], cfg, stdout, stderr)
	case "audit":
		return runAuditCmd(args[2:], cfg, stdout, stderr)
	case "catalog":
		return runCatalogCmd(args[2:], cfg, stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorCyan  = "\033[36m"
	colorGreen = "\033[32m"
)

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sdegreeplan%s compiles degree rules into MiniZinc models\n", colorBold, colorReset)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sUSAGE:%s\n", colorBold, colorReset)
	_, _ = fmt.Fprintln(w, "  degreeplan <command> [flags]")
	_, _ = fmt.Fprintln(w, "")

	printSection(w, "REQUIREMENTS")
	printCommand(w, "tree", "Print the layout tree of a plan page (--plan)")
	printCommand(w, "classify", "Print the requirement tree as JSON (--plan, --tokens)")
	printCommand(w, "audit", "Check taken courses against a plan (--plan, --taken)")

	printSection(w, "MODELS")
	printCommand(w, "compile", "Emit general.mzn, <CODE>.mzn and <CODE>.dzn (--plan, --out, --publish)")

	printSection(w, "DATA")
	printCommand(w, "catalog", "Import or show course relations (import --file, show)")
	_, _ = fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintf(w, "%s%s:%s\n", colorBold+colorCyan, title, colorReset)
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %s%-10s%s %s\n", colorGreen, name, colorReset, desc)
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// planFlags are shared by every command that reads a plan page.
type planFlags struct {
	plan    string
	pages   string
	profile string
}

func (f *planFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.plan, "plan", "", "Plan URL or <year>/<kind>/<CODE> path (REQUIRED)")
	fs.StringVar(&f.pages, "pages", "", "Directory of saved pages (default $DOCUMENT_ROOT, else fetch over HTTP)")
	fs.StringVar(&f.profile, "profile", "", "Planner profile YAML (default $PROFILE_PATH)")
}

var errUsage = errors.New("usage")

// ref parses the --plan flag. Bare paths are resolved by the source.
func (f *planFlags) ref() (document.Ref, error) {
	if f.plan == "" {
		return document.Ref{}, fmt.Errorf("%w: --plan is required", errUsage)
	}
	ref, err := document.ParseRef(f.plan)
	if err != nil {
		return document.Ref{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if !strings.Contains(f.plan, "://") {
		ref.URL = ""
	}
	return ref, nil
}

// session holds what a command needs to run the pipeline.
type session struct {
	cfg     *config.Config
	profile *config.Profile
	source  document.Source
	obs     *observability.Provider
	closers []func() error
}

func newSession(ctx context.Context, cfg *config.Config, f *planFlags) (*session, error) {
	profilePath := f.profile
	if profilePath == "" {
		profilePath = cfg.ProfilePath
	}
	profile, err := config.LoadProfileOrDefault(profilePath)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	if cfg.OTLPEndpoint != "" {
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, profile: profile, obs: obs}
	s.closers = append(s.closers, func() error { return obs.Shutdown(context.Background()) })
	s.source = s.openSource(f.pages)
	return s, nil
}

func (s *session) openSource(pages string) document.Source {
	if pages == "" {
		pages = s.cfg.DocumentRoot
	}
	if pages != "" {
		return document.NewFileSource(pages)
	}

	var cache document.Cache = document.NewMemoryCache()
	if s.cfg.RedisAddr != "" {
		rc := document.NewRedisCache(s.cfg.RedisAddr)
		s.closers = append(s.closers, rc.Close)
		cache = rc
	}
	return document.NewCachedSource(document.NewHTTPSource(s.cfg.DocumentBaseURL, s.cfg.FetchRPS, nil), cache, s.cfg.CacheTTL)
}

// newPlanner builds a planner over the session's source. rel may be nil when
// no model is emitted.
func (s *session) newPlanner(rel minizinc.Relations, opts ...planner.Option) *planner.Planner {
	opts = append([]planner.Option{planner.WithProfile(s.profile), planner.WithObservability(s.obs)}, opts...)
	return planner.New(s.source, rel, opts...)
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Default().Warn("close failed", "error", err)
		}
	}
}

// exitCode maps a command error to the process exit code.
func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}
