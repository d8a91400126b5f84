package learner

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"tpg/internal/instruction"
	"tpg/internal/model"
)

// DefaultMaxProgramSize matches the reference learner.
const DefaultMaxProgramSize = 8

var ErrInvalidProgramSize = errors.New("max program size must be >= 1")

// New builds a learner with a fresh id and a random program whose length is
// uniform in [1, maxProgramSize].
func New(ids *IDAllocator, rng *rand.Rand, action model.Action, maxProgramSize, birthGeneration int) (*model.Learner, error) {
	if maxProgramSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProgramSize, maxProgramSize)
	}
	rng = ensureRNG(rng)

	size := 1 + rng.Intn(maxProgramSize)
	program := make([]instruction.Instruction, size)
	for i := range program {
		program[i] = instruction.Random(rng)
	}
	return &model.Learner{
		ID:              ensureIDs(ids).Next(),
		BirthGeneration: birthGeneration,
		Action:          action,
		Program:         program,
	}, nil
}

// NewWithProgram builds a learner with a fresh id around an explicit program.
func NewWithProgram(ids *IDAllocator, action model.Action, program []instruction.Instruction, maxProgramSize, birthGeneration int) (*model.Learner, error) {
	if maxProgramSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProgramSize, maxProgramSize)
	}
	if len(program) < 1 || len(program) > maxProgramSize {
		return nil, fmt.Errorf("program length %d outside [1, %d]", len(program), maxProgramSize)
	}
	return &model.Learner{
		ID:              ensureIDs(ids).Next(),
		BirthGeneration: birthGeneration,
		Action:          action,
		Program:         append([]instruction.Instruction(nil), program...),
	}, nil
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
