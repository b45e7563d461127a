package study

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/impute"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/missing"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/score"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/synth"
)

// TrialResult is the outcome of one trial. A failed trial carries the error
// text instead of scores; the study keeps going.
type TrialResult struct {
	Trial          Trial               `json:"trial"`
	Scores         []score.ColumnScore `json:"scores,omitempty"`
	MissingCells   int                 `json:"missingCells"`
	DurationMillis int64               `json:"durationMillis"`
	Error          string              `json:"error,omitempty"`
}

// Failed reports whether the trial produced an error instead of scores.
func (tr TrialResult) Failed() bool { return tr.Error != "" }

// Result is a completed study run.
type Result struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
	Design      Design            `json:"design"`
	Trials      []TrialResult     `json:"trials"`
	Summary     []MethodSummary   `json:"summary"`
	Seeds       map[string]uint64 `json:"seeds"` // derived seed manifest
}

// Failures counts the trials that errored.
func (r *Result) Failures() int {
	n := 0
	for _, tr := range r.Trials {
		if tr.Failed() {
			n++
		}
	}
	return n
}

// RunnerOptions carries the optional collaborators. Nil fields disable the
// corresponding side effect.
type RunnerOptions struct {
	Store     Store
	History   *History
	Artifacts *ArtifactStore
}

// Runner executes study designs trial by trial.
type Runner struct {
	logger    *zap.Logger
	store     Store
	history   *History
	artifacts *ArtifactStore
}

// NewRunner creates a runner.
func NewRunner(logger *zap.Logger, opts RunnerOptions) *Runner {
	return &Runner{
		logger:    logger,
		store:     opts.Store,
		history:   opts.History,
		artifacts: opts.Artifacts,
	}
}

// Run executes every trial of the design, bounded by Design.Parallelism.
// Trial failures are recorded in the result, not returned; Run itself fails
// only on an invalid design, a cancelled context, or a persistence error.
func (r *Runner) Run(ctx context.Context, design *Design) (*Result, error) {
	if err := design.Validate(); err != nil {
		return nil, err
	}

	runID := "run_" + uuid.NewString()
	sm := NewSeedManager(design.Seed)
	trials := design.Trials()

	r.logger.Info("Starting study",
		zap.String("runId", runID),
		zap.String("name", design.Name),
		zap.Int("trials", len(trials)),
		zap.Int64("seed", design.Seed))

	result := &Result{
		ID:        runID,
		Name:      design.Name,
		StartedAt: time.Now(),
		Design:    *design,
		Trials:    make([]TrialResult, len(trials)),
	}

	if r.history != nil {
		if err := r.history.CreateRun(ctx, runID, design.Name, result.StartedAt); err != nil {
			r.logger.Warn("Failed to record run start", zap.Error(err))
		}
	}

	parallelism := design.Parallelism
	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, trial := range trials {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tr := r.runTrial(gctx, design, sm, runID, trial)
			result.Trials[i] = tr
			recordTrial(tr.Failed())
			if tr.Failed() {
				r.logger.Warn("Trial failed",
					zap.String("trialId", trial.ID),
					zap.String("error", tr.Error))
			} else {
				r.logger.Debug("Trial completed",
					zap.String("trialId", trial.ID),
					zap.Int64("durationMs", tr.DurationMillis))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("study: run %s aborted: %w", runID, err)
	}

	result.CompletedAt = time.Now()
	result.Summary = Summarize(result.Trials, defaultConfidenceLevel)
	result.Seeds = sm.Manifest()
	recordRun(result.CompletedAt.Sub(result.StartedAt))

	if r.store != nil {
		if err := r.store.Save(ctx, result); err != nil {
			return nil, fmt.Errorf("study: failed to persist run %s: %w", runID, err)
		}
	}
	if r.history != nil {
		if err := r.history.CompleteRun(ctx, result); err != nil {
			r.logger.Warn("Failed to record run completion", zap.Error(err))
		}
	}

	r.logger.Info("Study completed",
		zap.String("runId", runID),
		zap.Int("trials", len(result.Trials)),
		zap.Int("failures", result.Failures()),
		zap.Duration("duration", result.CompletedAt.Sub(result.StartedAt)))

	return result, nil
}

// runTrial executes one trial and stores its artifacts if a store is wired.
func (r *Runner) runTrial(ctx context.Context, design *Design, sm *SeedManager, runID string, trial Trial) TrialResult {
	tr, corrupted, imputed := r.executeTrial(ctx, design, sm, trial)

	if r.artifacts != nil && !tr.Failed() {
		if _, err := r.artifacts.StoreTable(runID, trial.ID, "corrupted", corrupted); err != nil {
			r.logger.Warn("Failed to store corrupted table",
				zap.String("trialId", trial.ID), zap.Error(err))
		}
		if _, err := r.artifacts.StoreTable(runID, trial.ID, "imputed", imputed); err != nil {
			r.logger.Warn("Failed to store imputed table",
				zap.String("trialId", trial.ID), zap.Error(err))
		}
	}
	return tr
}

// executeTrial runs generate, corrupt, impute and score for one trial. Every
// random stream is seeded from the trial id, so rerunning the trial
// reproduces it. The corrupted and imputed tables are returned for artifact
// storage and reproducibility checks.
func (r *Runner) executeTrial(ctx context.Context, design *Design, sm *SeedManager, trial Trial) (TrialResult, *dataset.Table, *dataset.Table) {
	start := time.Now()
	tr := TrialResult{Trial: trial}

	fail := func(err error) (TrialResult, *dataset.Table, *dataset.Table) {
		tr.Error = err.Error()
		tr.DurationMillis = time.Since(start).Milliseconds()
		return tr, nil, nil
	}

	truth, err := synth.Generate(design.Data, rand.NewSource(sm.ComponentSeed(trial.ID+"/generate")))
	if err != nil {
		return fail(fmt.Errorf("generate: %w", err))
	}

	plan := trial.Mechanism
	plan.Rate = trial.Rate
	corruptRng := rand.New(rand.NewSource(sm.ComponentSeed(trial.ID + "/corrupt")))
	corrupted, injected, err := missing.Inject(truth, []missing.Plan{plan}, corruptRng)
	if err != nil {
		return fail(fmt.Errorf("corrupt: %w", err))
	}
	tr.MissingCells = injected

	opts := design.Impute
	opts.Seed = int64(sm.ComponentSeed(trial.ID + "/impute"))
	method, err := impute.New(trial.Method, opts)
	if err != nil {
		return fail(err)
	}
	imputed, err := method.Impute(ctx, corrupted)
	if err != nil {
		return fail(fmt.Errorf("impute %s: %w", trial.Method, err))
	}
	recordImputedCells(injected)

	scores, err := score.Compare(truth, corrupted, imputed, design.Score)
	if err != nil {
		return fail(fmt.Errorf("score: %w", err))
	}
	tr.Scores = scores

	tr.DurationMillis = time.Since(start).Milliseconds()
	return tr, corrupted, imputed
}
