package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkwalk/internal/model"
)

// Step is one stage of a pipeline.
type Step interface {
	// Do runs the step. Failures that concern single URLs belong in the
	// report; a returned error means the step itself failed.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging.
	Name() string
}

// FinalStep is implemented by steps that must also run after the context
// was cancelled, so that partial results are kept. They receive a context
// that is no longer cancelled.
type FinalStep interface {
	Step
	RunsOnCancel() bool
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails. The first
// error is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order.
//
// Cancellation is checked before each step. Once ctx is done the report is
// marked cancelled, ordinary steps are skipped and only FinalSteps run.
// Execute then returns ctx.Err(). Otherwise it stops at and returns the
// first step error, unless continueOnError is set.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	for _, step := range p.steps {
		stepCtx := ctx
		if ctx.Err() != nil {
			report.Cancelled = true
			if !runsOnCancel(step) {
				p.logger.Debug("step skipped after cancellation", "step", step.Name(), "seed", report.Seed)
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Debug("executing step", "step", step.Name(), "seed", report.Seed)
		if err := step.Do(stepCtx, report); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "seed", report.Seed, "error", err)
			if report.Error == "" {
				report.Error = err.Error()
			}
			if !p.continueOnError {
				return err
			}
			continue
		}
		p.logger.Debug("step completed", "step", step.Name(), "seed", report.Seed)
	}

	if err := ctx.Err(); err != nil {
		report.Cancelled = true
		p.logger.Warn("pipeline cancelled", "seed", report.Seed, "reason", err)
		return err
	}
	return nil
}

func runsOnCancel(step Step) bool {
	f, ok := step.(FinalStep)
	return ok && f.RunsOnCancel()
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
