package evo

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"tpg/internal/metrics"
	"tpg/internal/model"
)

// Rates holds the per-call probability of each program operator.
type Rates struct {
	Delete float64 `yaml:"p_delete" json:"p_delete" validate:"min=0,max=1"`
	Add    float64 `yaml:"p_add" json:"p_add" validate:"min=0,max=1"`
	Swap   float64 `yaml:"p_swap" json:"p_swap" validate:"min=0,max=1"`
	Mutate float64 `yaml:"p_mutate" json:"p_mutate" validate:"min=0,max=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r Rates) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid mutation rates: %w", err)
	}
	return nil
}

// Mutator applies the gated program operators and action replacement to
// learners. Rand is not safe for concurrent use; give each goroutine its own
// Mutator.
type Mutator struct {
	Rand    *rand.Rand
	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

type gatedOperator struct {
	op ProgramOperator
	p  float64
}

// MutateProgram evaluates delete, insert, bit flip and swap in that order.
// Each operator is checked for applicability against the program as left by
// the previous ones, then fires with its probability. It reports whether any
// operator fired.
func (m *Mutator) MutateProgram(ctx context.Context, l *model.Learner, rates Rates, maxProgramSize int) (bool, error) {
	if m == nil || m.Rand == nil {
		return false, ErrRandomRequired
	}
	if maxProgramSize < 1 {
		return false, fmt.Errorf("max program size must be >= 1: %d", maxProgramSize)
	}
	if n := len(l.Program); n < 1 || n > maxProgramSize {
		return false, fmt.Errorf("%w: %d outside [1, %d]", ErrProgramLength, n, maxProgramSize)
	}
	if err := rates.Validate(); err != nil {
		return false, err
	}

	gates := []gatedOperator{
		{op: &DeleteInstruction{Rand: m.Rand}, p: rates.Delete},
		{op: &InsertInstruction{Rand: m.Rand}, p: rates.Add},
		{op: &FlipInstructionBit{Rand: m.Rand}, p: rates.Mutate},
		{op: &SwapInstructions{Rand: m.Rand}, p: rates.Swap},
	}

	changed := false
	for _, gate := range gates {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		if !gate.op.Applicable(l.Program, maxProgramSize) {
			continue
		}
		if m.Rand.Float64() >= gate.p {
			continue
		}
		mutated, err := gate.op.Apply(ctx, l.Program)
		if err != nil {
			return changed, fmt.Errorf("%s: %w", gate.op.Name(), err)
		}
		l.Program = mutated
		changed = true
		m.Metrics.Mutation(gate.op.Name())
		m.logger().Debug("program mutated",
			zap.Int64("learner", l.ID),
			zap.String("operator", gate.op.Name()),
			zap.Int("length", len(l.Program)),
		)
	}
	return changed, nil
}

// MutateAction replaces l's action with candidate and reports whether the
// action changed.
func (m *Mutator) MutateAction(l *model.Learner, candidate model.Action) bool {
	previous := l.Action
	l.Action = candidate
	changed := !previous.Equal(candidate)
	if changed {
		m.Metrics.Mutation("action")
	}
	return changed
}

func (m *Mutator) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// MutateProgram is Mutator.MutateProgram without logging or metrics.
func MutateProgram(ctx context.Context, rng *rand.Rand, l *model.Learner, rates Rates, maxProgramSize int) (bool, error) {
	return (&Mutator{Rand: rng}).MutateProgram(ctx, l, rates, maxProgramSize)
}

// MutateAction is Mutator.MutateAction without metrics.
func MutateAction(l *model.Learner, candidate model.Action) bool {
	return (&Mutator{}).MutateAction(l, candidate)
}
