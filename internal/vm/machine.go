package vm

import (
	"fmt"

	"go.uber.org/zap"

	"tpg/internal/instruction"
	"tpg/internal/metrics"
)

// Config carries the optional logger and collectors of a Machine.
type Config struct {
	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

// Machine interprets straight-line register programs. It holds no per-run
// state and is safe for concurrent use across distinct register banks.
type Machine struct {
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// NewMachine builds a Machine; a nil logger falls back to a no-op logger.
func NewMachine(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{logger: logger, metrics: cfg.Metrics}
}

// Step records one executed instruction.
type Step struct {
	Index       int
	Instruction instruction.Instruction
	Op          instruction.Op
	Source      float64
	Before      float64
	After       float64
	Reset       bool
	Skipped     bool
}

// Execute runs program against observation and registers and returns the
// final value of register 0. registers must hold at least RegisterSize values
// and is updated in place. Every register written is finite afterwards.
func (m *Machine) Execute(program []instruction.Instruction, observation []float64, registers Registers) float64 {
	for i, in := range program {
		op, err := in.Decode()
		if err != nil {
			m.reportInvalid(i, in, err)
			continue
		}
		m.apply(i, op, observation, registers)
	}
	return registers[0]
}

// Run is Execute for an already decoded program.
func (m *Machine) Run(ops []instruction.Op, observation []float64, registers Registers) float64 {
	for i, op := range ops {
		m.apply(i, op, observation, registers)
	}
	return registers[0]
}

// Trace executes like Execute and records every step.
func (m *Machine) Trace(program []instruction.Instruction, observation []float64, registers Registers) ([]Step, float64) {
	steps := make([]Step, 0, len(program))
	for i, in := range program {
		op, err := in.Decode()
		if err != nil {
			m.reportInvalid(i, in, err)
			steps = append(steps, Step{Index: i, Instruction: in, Skipped: true})
			continue
		}
		step := m.apply(i, op, observation, registers)
		step.Instruction = in
		steps = append(steps, step)
	}
	return steps, registers[0]
}

func (m *Machine) apply(index int, op instruction.Op, observation []float64, registers Registers) Step {
	step := Step{Index: index, Op: op}

	fn, ok := Lookup(op.Operator)
	if !ok {
		m.reportInvalid(index, op, instruction.ErrInvalidOperator)
		step.Skipped = true
		return step
	}
	if op.Destination < 0 || op.Destination >= len(registers) {
		m.reportInvalid(index, op, instruction.ErrInvalidDestination)
		step.Skipped = true
		return step
	}

	step.Source = sourceValue(op, observation, registers)
	step.Before = registers[op.Destination]
	value := fn(step.Before, step.Source)
	if !finite(value) {
		value = 0
		step.Reset = true
		m.metrics.NonFiniteReset()
	}
	registers[op.Destination] = value
	step.After = value
	return step
}

func sourceValue(op instruction.Op, observation []float64, registers Registers) float64 {
	if op.FromRegister {
		return registers[op.Source%RegisterSize]
	}
	if len(observation) == 0 {
		return 0
	}
	return observation[int(op.Source)%len(observation)]
}

func (m *Machine) reportInvalid(index int, in fmt.Stringer, err error) {
	m.metrics.InvalidOperator()
	m.logger.Warn("skipping undecodable instruction",
		zap.Int("index", index),
		zap.Stringer("instruction", in),
		zap.Error(err),
	)
}
