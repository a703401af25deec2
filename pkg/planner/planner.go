// Package planner runs the full pipeline for one plan: fetch the page, build
// its layout tree, classify the requirements, emit the constraint model and
// publish the artifacts.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/Mindburn-Labs/degreeplan/pkg/artifacts"
	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
	"github.com/Mindburn-Labs/degreeplan/pkg/classifier"
	"github.com/Mindburn-Labs/degreeplan/pkg/config"
	"github.com/Mindburn-Labs/degreeplan/pkg/document"
	"github.com/Mindburn-Labs/degreeplan/pkg/layout"
	"github.com/Mindburn-Labs/degreeplan/pkg/minizinc"
	"github.com/Mindburn-Labs/degreeplan/pkg/observability"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

// ErrNoStore is returned by Publish when the planner has no artifact store.
var ErrNoStore = errors.New("planner: no artifact store configured")

// Planner wires the pipeline stages together.
type Planner struct {
	source     document.Source
	builder    *layout.Builder
	classifier *classifier.Classifier
	emitter    *minizinc.Emitter
	store      artifacts.Store
	obs        *observability.Provider
	profile    *config.Profile
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithStore sets where Publish writes artifacts.
func WithStore(s artifacts.Store) Option {
	return func(p *Planner) { p.store = s }
}

// WithObservability sets the telemetry provider.
func WithObservability(obs *observability.Provider) Option {
	return func(p *Planner) {
		if obs != nil {
			p.obs = obs
		}
	}
}

// WithProfile replaces the default profile.
func WithProfile(profile *config.Profile) Option {
	return func(p *Planner) {
		if profile != nil {
			p.profile = profile
		}
	}
}

// New builds a planner that reads pages from src and course relations from rel.
func New(src document.Source, rel minizinc.Relations, opts ...Option) *Planner {
	p := &Planner{
		source:  src,
		profile: config.DefaultProfile(),
		logger:  slog.Default().With("component", "planner"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.obs == nil {
		p.obs, _ = observability.New(context.Background(), &observability.Config{Enabled: false})
	}

	p.builder = layout.NewBuilder(
		layout.WithStep(p.profile.Layout.IndentStep),
		layout.WithEndTag(p.profile.Layout.EndTag),
	)
	p.classifier = classifier.New(src,
		classifier.WithBuilder(p.builder),
		classifier.WithColleges(p.profile.Colleges),
		classifier.WithHeaderIDs(p.profile.Layout.ProgramHeaderID, p.profile.Layout.SubplanHeaderID),
	)
	p.emitter = minizinc.NewEmitter(rel)
	return p
}

// Request names the plan to compile and how to shape its objective.
type Request struct {
	Ref      document.Ref
	Registry *catalog.Registry
	Options  minizinc.Options
}

// Run carries everything one pipeline execution produced.
type Run struct {
	ID          string
	Ref         document.Ref
	Document    *document.Document
	Tree        *layout.Tree
	Result      *classifier.Result
	Model       *minizinc.Model
	Fingerprint string
	StartedAt   time.Time
}

// Classify fetches the plan page and classifies it into a requirement tree.
func (p *Planner) Classify(ctx context.Context, req Request) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Ref: req.Ref, StartedAt: p.now().UTC()}
	code := req.Ref.Code
	p.logger.InfoContext(ctx, "classification run started", "run_id", run.ID, "plan", code)

	var err error
	run.Document, run.Tree, err = p.Layout(ctx, req.Ref)
	if err != nil {
		return nil, err
	}

	stageCtx, done := p.obs.TrackStage(ctx, observability.StageClassify, code)
	run.Result, err = p.classifier.ClassifyTree(stageCtx, run.Tree, run.Document, req.Registry)
	if err == nil {
		run.Fingerprint, err = requirement.Fingerprint(run.Result.Root)
	}
	done(err)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", req.Ref, err)
	}

	p.obs.RecordUnknown(ctx, code, len(run.Result.Unknown))
	p.logger.InfoContext(ctx, "classification run finished",
		"run_id", run.ID,
		"plan", code,
		"subplans", len(run.Result.Subplans),
		"unknown", len(run.Result.Unknown),
		"fingerprint", run.Fingerprint,
	)
	return run, nil
}

// Layout fetches the page for ref and builds its layout tree.
func (p *Planner) Layout(ctx context.Context, ref document.Ref) (*document.Document, *layout.Tree, error) {
	stageCtx, done := p.obs.TrackStage(ctx, observability.StageFetch, ref.Code)
	doc, err := p.source.Fetch(stageCtx, ref)
	done(err)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", ref, err)
	}

	_, done = p.obs.TrackStage(ctx, observability.StageLayout, ref.Code)
	tree, err := p.builder.Build(doc, p.headerID(doc.Ref.Kind))
	done(err)
	if err != nil {
		return nil, nil, fmt.Errorf("layout %s: %w", ref, err)
	}
	return doc, tree, nil
}

// Compile classifies the plan and emits its constraint model.
func (p *Planner) Compile(ctx context.Context, req Request) (*Run, error) {
	run, err := p.Classify(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := req.Options
	if opts.PreferenceScale == 0 {
		opts.PreferenceScale = p.profile.Preference.Scale
	}
	if opts.DefaultPreference == 0 {
		opts.DefaultPreference = p.profile.Preference.Default
	}
	if opts.StartSemester == 0 {
		opts.StartSemester = p.profile.StartSemester
	}

	stageCtx, done := p.obs.TrackStage(ctx, observability.StageCompile, req.Ref.Code)
	run.Model, err = p.emitter.Emit(stageCtx, run.Result.Root, run.Result.Registry, opts)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", req.Ref, err)
	}
	return run, nil
}

func (p *Planner) headerID(kind document.Kind) string {
	if kind.IsSubplan() {
		return p.profile.Layout.SubplanHeaderID
	}
	return p.profile.Layout.ProgramHeaderID
}

// Manifest lists the artifacts of one published run.
type Manifest struct {
	RunID       string                 `json:"run_id"`
	Plan        document.Ref           `json:"plan"`
	Fingerprint string                 `json:"fingerprint"`
	Subplans    []document.Ref         `json:"subplans"`
	Unknown     []string               `json:"unknown"`
	CreatedAt   time.Time              `json:"created_at"`
	Artifacts   []artifacts.Descriptor `json:"artifacts"`
}

// Artifact returns the descriptor with the given name.
func (m *Manifest) Artifact(name string) (artifacts.Descriptor, bool) {
	for _, d := range m.Artifacts {
		if d.Name == name {
			return d, true
		}
	}
	return artifacts.Descriptor{}, false
}

// Publish writes the shared library, the model, its data and the requirement
// tree, then a manifest naming them. The manifest's own descriptor is
// returned alongside it.
func (p *Planner) Publish(ctx context.Context, run *Run) (*Manifest, artifacts.Descriptor, error) {
	if p.store == nil {
		return nil, artifacts.Descriptor{}, ErrNoStore
	}
	if run.Model == nil {
		return nil, artifacts.Descriptor{}, fmt.Errorf("publish %s: run has no model", run.Ref)
	}

	stageCtx, done := p.obs.TrackStage(ctx, observability.StagePublish, run.Ref.Code)
	m, d, err := p.publish(stageCtx, run)
	done(err)
	if err != nil {
		return nil, artifacts.Descriptor{}, fmt.Errorf("publish %s: %w", run.Ref, err)
	}

	p.logger.InfoContext(ctx, "artifacts published", "run_id", run.ID, "manifest", d.Digest, "artifacts", len(m.Artifacts))
	return m, d, nil
}

func (p *Planner) publish(ctx context.Context, run *Run) (*Manifest, artifacts.Descriptor, error) {
	tree, err := requirement.Canonical(run.Result.Root)
	if err != nil {
		return nil, artifacts.Descriptor{}, err
	}

	base := run.Ref.Code
	if base == "" {
		base = "plan"
	}
	items := []artifacts.Artifact{
		{Name: minizinc.LibraryName, MediaType: artifacts.MediaTypeModel, Data: []byte(minizinc.Library())},
		{Name: base + ".mzn", MediaType: artifacts.MediaTypeModel, Data: []byte(run.Model.Declarations)},
		{Name: base + ".dzn", MediaType: artifacts.MediaTypeData, Data: []byte(run.Model.Data)},
		{Name: base + ".tree.json", MediaType: artifacts.MediaTypeTree, Data: tree},
	}

	m := &Manifest{
		RunID:       run.ID,
		Plan:        run.Ref,
		Fingerprint: run.Fingerprint,
		Subplans:    nonNil(run.Result.Subplans),
		Unknown:     nonNil(run.Result.Unknown),
		CreatedAt:   run.StartedAt,
	}
	for _, a := range items {
		d, err := p.store.Put(ctx, a)
		if err != nil {
			return nil, artifacts.Descriptor{}, err
		}
		m.Artifacts = append(m.Artifacts, d)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, artifacts.Descriptor{}, fmt.Errorf("marshal manifest: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, artifacts.Descriptor{}, fmt.Errorf("canonicalize manifest: %w", err)
	}
	d, err := p.store.Put(ctx, artifacts.Artifact{Name: base + ".manifest.json", MediaType: artifacts.MediaTypeManifest, Data: canonical})
	if err != nil {
		return nil, artifacts.Descriptor{}, err
	}
	return m, d, nil
}

// LoadManifest reads a published manifest back from the store.
func LoadManifest(ctx context.Context, store artifacts.Store, digest string) (*Manifest, error) {
	data, err := store.Get(ctx, digest)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", digest, err)
	}
	return &m, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
