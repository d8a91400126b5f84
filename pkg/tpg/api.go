package tpg

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tpg/internal/evo"
	"tpg/internal/instruction"
	"tpg/internal/learner"
	"tpg/internal/metrics"
	"tpg/internal/model"
	"tpg/internal/vm"
)

type (
	Learner       = model.Learner
	Action        = model.Action
	Instruction   = instruction.Instruction
	Rates         = evo.Rates
	RegisterStore = vm.RegisterStore
	Step          = vm.Step
)

const (
	RegisterSize          = vm.RegisterSize
	DefaultMaxProgramSize = learner.DefaultMaxProgramSize
)

type Options struct {
	// Seed 0 seeds from the clock.
	Seed int64
	// IDs defaults to the process-wide allocator so ids stay unique across
	// clients.
	IDs        *learner.IDAllocator
	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// Client is the entry point for population managers. It is safe for
// concurrent use; the per-learner rules of RegisterStore still apply.
type Client struct {
	mu      sync.Mutex
	rng     *rand.Rand
	seed    int64
	ids     *learner.IDAllocator
	machine *vm.Machine
	metrics *metrics.Collectors
	logger  *zap.Logger
}

func New(opts Options) (*Client, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ids := opts.IDs
	if ids == nil {
		ids = learner.DefaultIDs
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collectors, err := metrics.New(opts.Registerer)
	if err != nil {
		return nil, err
	}

	return &Client{
		rng:     rand.New(rand.NewSource(seed)),
		seed:    seed,
		ids:     ids,
		machine: vm.NewMachine(vm.Config{Logger: logger, Metrics: collectors}),
		metrics: collectors,
		logger:  logger,
	}, nil
}

// Seed reports the effective seed, which differs from Options.Seed when that
// was 0.
func (c *Client) Seed() int64 {
	return c.seed
}

func (c *Client) NewRegisterStore() *vm.RegisterStore {
	return vm.NewRegisterStore()
}

// NewLearner builds a learner with a random program of length in
// [1, maxProgramSize].
func (c *Client) NewLearner(action model.Action, maxProgramSize, birthGeneration int) (*model.Learner, error) {
	c.mu.Lock()
	l, err := learner.New(c.ids, c.rng, action, maxProgramSize, birthGeneration)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.metrics.LearnerCreated("fresh")
	c.logger.Debug("learner created",
		zap.Int64("learner", l.ID),
		zap.Int("generation", birthGeneration),
		zap.Int("length", len(l.Program)),
		zap.Stringer("action", l.Action),
	)
	return l, nil
}

// NewLearnerFromProgram builds a learner around an explicit program.
func (c *Client) NewLearnerFromProgram(action model.Action, program []instruction.Instruction, maxProgramSize, birthGeneration int) (*model.Learner, error) {
	l, err := learner.NewWithProgram(c.ids, action, program, maxProgramSize, birthGeneration)
	if err != nil {
		return nil, err
	}
	c.metrics.LearnerCreated("program")
	return l, nil
}

// CloneLearner copies src; asNew starts a new lineage with a fresh id.
func (c *Client) CloneLearner(src *model.Learner, asNew bool, birthGeneration int) *model.Learner {
	l := learner.Clone(c.ids, src, asNew, birthGeneration)
	if asNew {
		c.metrics.LearnerCreated("clone_new")
	} else {
		c.metrics.LearnerCreated("clone_in_place")
	}
	return l
}

// Bid returns l's bid in (0, 1). A nil store runs with fresh zero registers.
func (c *Client) Bid(l *model.Learner, observation []float64, store *vm.RegisterStore) float64 {
	return learner.Bid(c.machine, l, observation, store)
}

// BidAll bids every learner against the same observation in parallel. The
// learners must have distinct ids.
func (c *Client) BidAll(ctx context.Context, learners []*model.Learner, observation []float64, store *vm.RegisterStore) ([]float64, error) {
	seen := make(map[int64]struct{}, len(learners))
	for _, l := range learners {
		if _, dup := seen[l.ID]; dup {
			return nil, errors.New("learners passed to BidAll must have distinct ids")
		}
		seen[l.ID] = struct{}{}
	}

	bids := make([]float64, len(learners))
	g, ctx := errgroup.WithContext(ctx)
	for i, l := range learners {
		i, l := i, l
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bids[i] = learner.Bid(c.machine, l, observation, store)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bids, nil
}

// Trace executes l like Bid and returns every executed step and the raw
// register-0 result.
func (c *Client) Trace(l *model.Learner, observation []float64, store *vm.RegisterStore) ([]vm.Step, float64) {
	registers := vm.NewRegisters()
	if store != nil {
		registers = store.Bank(l.ID)
	}
	return c.machine.Trace(l.Program, observation, registers)
}

// MutateProgram applies the gated delete, insert, bit flip and swap operators
// and reports whether any fired.
func (c *Client) MutateProgram(ctx context.Context, l *model.Learner, rates evo.Rates, maxProgramSize int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutator().MutateProgram(ctx, l, rates, maxProgramSize)
}

// ApplyOperator runs a single named program operator, if applicable.
func (c *Client) ApplyOperator(ctx context.Context, l *model.Learner, name string, maxProgramSize int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, err := evo.ResolveOperator(name, c.rng)
	if err != nil {
		return false, err
	}
	if n := len(l.Program); n < 1 || n > maxProgramSize {
		return false, fmt.Errorf("%w: %d outside [1, %d]", evo.ErrProgramLength, n, maxProgramSize)
	}
	if !op.Applicable(l.Program, maxProgramSize) {
		return false, nil
	}
	mutated, err := op.Apply(ctx, l.Program)
	if err != nil {
		return false, err
	}
	l.Program = mutated
	c.metrics.Mutation(op.Name())
	return true, nil
}

// MutateAction replaces l's action and reports whether it changed.
func (c *Client) MutateAction(l *model.Learner, candidate model.Action) bool {
	return c.mutator().MutateAction(l, candidate)
}

func (c *Client) mutator() *evo.Mutator {
	return &evo.Mutator{Rand: c.rng, Logger: c.logger, Metrics: c.metrics}
}

func AtomicAction(code int64) Action {
	return model.AtomicAction(code)
}

func TeamAction(teamID string) Action {
	return model.TeamAction(teamID)
}

// ParseProgram parses "<op> r<dest> <r|o><source>" instructions separated by
// newlines or semicolons.
func ParseProgram(text string) ([]Instruction, error) {
	return instruction.ParseProgram(text)
}
