package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"tpg/internal/instruction"
)

var (
	ErrProgramLength    = errors.New("program length out of range")
	ErrNoMutationChoice = errors.New("no mutation choice available")
	ErrRandomRequired   = errors.New("random source is required")
)

// DeleteInstruction removes one uniformly chosen instruction.
type DeleteInstruction struct {
	Rand *rand.Rand
}

func (o *DeleteInstruction) Name() string {
	return "delete"
}

func (o *DeleteInstruction) Applicable(program []instruction.Instruction, _ int) bool {
	return len(program) > 1
}

func (o *DeleteInstruction) Apply(_ context.Context, program []instruction.Instruction) ([]instruction.Instruction, error) {
	if len(program) <= 1 {
		return nil, ErrNoMutationChoice
	}
	if o == nil || o.Rand == nil {
		return nil, ErrRandomRequired
	}

	idx := o.Rand.Intn(len(program))
	mutated := make([]instruction.Instruction, 0, len(program)-1)
	mutated = append(mutated, program[:idx]...)
	mutated = append(mutated, program[idx+1:]...)
	return mutated, nil
}

// InsertInstruction inserts a random instruction at a uniformly chosen
// position, including the end of the program.
type InsertInstruction struct {
	Rand *rand.Rand
}

func (o *InsertInstruction) Name() string {
	return "insert"
}

func (o *InsertInstruction) Applicable(program []instruction.Instruction, maxProgramSize int) bool {
	return len(program) < maxProgramSize
}

func (o *InsertInstruction) Apply(_ context.Context, program []instruction.Instruction) ([]instruction.Instruction, error) {
	if o == nil || o.Rand == nil {
		return nil, ErrRandomRequired
	}

	in := instruction.Random(o.Rand)
	idx := o.Rand.Intn(len(program) + 1)
	mutated := make([]instruction.Instruction, 0, len(program)+1)
	mutated = append(mutated, program[:idx]...)
	mutated = append(mutated, in)
	mutated = append(mutated, program[idx:]...)
	return mutated, nil
}

// FlipInstructionBit flips one uniformly chosen bit of one uniformly chosen
// instruction.
type FlipInstructionBit struct {
	Rand *rand.Rand
}

func (o *FlipInstructionBit) Name() string {
	return "mutate"
}

func (o *FlipInstructionBit) Applicable(program []instruction.Instruction, _ int) bool {
	return len(program) > 0
}

func (o *FlipInstructionBit) Apply(_ context.Context, program []instruction.Instruction) ([]instruction.Instruction, error) {
	if len(program) == 0 {
		return nil, ErrNoMutationChoice
	}
	if o == nil || o.Rand == nil {
		return nil, ErrRandomRequired
	}

	mutated := append([]instruction.Instruction(nil), program...)
	idx := o.Rand.Intn(len(mutated))
	if err := mutated[idx].Flip(o.Rand.Intn(instruction.Size)); err != nil {
		return nil, fmt.Errorf("flip instruction %d: %w", idx, err)
	}
	return mutated, nil
}

// SwapInstructions exchanges two distinct uniformly chosen instructions.
type SwapInstructions struct {
	Rand *rand.Rand
}

func (o *SwapInstructions) Name() string {
	return "swap"
}

func (o *SwapInstructions) Applicable(program []instruction.Instruction, _ int) bool {
	return len(program) > 1
}

func (o *SwapInstructions) Apply(_ context.Context, program []instruction.Instruction) ([]instruction.Instruction, error) {
	if len(program) <= 1 {
		return nil, ErrNoMutationChoice
	}
	if o == nil || o.Rand == nil {
		return nil, ErrRandomRequired
	}

	i := o.Rand.Intn(len(program))
	// j is drawn from the other len-1 slots.
	j := o.Rand.Intn(len(program) - 1)
	if j >= i {
		j++
	}
	mutated := append([]instruction.Instruction(nil), program...)
	mutated[i], mutated[j] = mutated[j], mutated[i]
	return mutated, nil
}
