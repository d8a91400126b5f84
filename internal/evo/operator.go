package evo

import (
	"context"

	"tpg/internal/instruction"
)

// ProgramOperator is one structural or bit-level edit of a learner program.
// Apply never modifies its input; it returns the edited copy.
type ProgramOperator interface {
	Name() string
	Applicable(program []instruction.Instruction, maxProgramSize int) bool
	Apply(ctx context.Context, program []instruction.Instruction) ([]instruction.Instruction, error)
}
