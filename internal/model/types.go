package model

import (
	"strconv"

	"tpg/internal/instruction"
)

// Action is what a learner proposes when its bid wins: either an atomic
// action code or a reference to another team.
type Action struct {
	Atomic int64  `json:"atomic"`
	TeamID string `json:"team_id,omitempty"`
}

func AtomicAction(code int64) Action {
	return Action{Atomic: code}
}

func TeamAction(teamID string) Action {
	return Action{TeamID: teamID}
}

func (a Action) IsAtomic() bool {
	return a.TeamID == ""
}

func (a Action) Equal(other Action) bool {
	if a.IsAtomic() != other.IsAtomic() {
		return false
	}
	if a.IsAtomic() {
		return a.Atomic == other.Atomic
	}
	return a.TeamID == other.TeamID
}

func (a Action) String() string {
	if a.IsAtomic() {
		return "atomic:" + strconv.FormatInt(a.Atomic, 10)
	}
	return "team:" + a.TeamID
}

type Learner struct {
	ID              int64                     `json:"id"`
	BirthGeneration int                       `json:"birth_generation"`
	Action          Action                    `json:"action"`
	Program         []instruction.Instruction `json:"program"`
	TeamRefCount    int                       `json:"team_ref_count"`
}
