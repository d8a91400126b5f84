package learner

import (
	"tpg/internal/instruction"
	"tpg/internal/model"
)

// Clone copies src. With asNew the clone starts a new lineage: a fresh id,
// the given birth generation and no team references. Otherwise the clone keeps
// src's id, birth generation and reference count, and birthGeneration is
// ignored.
func Clone(ids *IDAllocator, src *model.Learner, asNew bool, birthGeneration int) *model.Learner {
	out := &model.Learner{
		Action:  src.Action,
		Program: CloneProgram(src.Program),
	}
	if asNew {
		out.ID = ensureIDs(ids).Next()
		out.BirthGeneration = birthGeneration
		out.TeamRefCount = 0
		return out
	}
	out.ID = src.ID
	out.BirthGeneration = src.BirthGeneration
	out.TeamRefCount = src.TeamRefCount
	return out
}

func CloneProgram(program []instruction.Instruction) []instruction.Instruction {
	return append([]instruction.Instruction(nil), program...)
}
