package learner

import (
	"math"

	"tpg/internal/model"
	"tpg/internal/vm"
)

// Bid runs l's program against observation and squashes register 0 into
// (0, 1). With a store the learner's bank persists across calls; a nil store
// gives a zeroed bank scoped to this call.
func Bid(m *vm.Machine, l *model.Learner, observation []float64, store *vm.RegisterStore) float64 {
	var registers vm.Registers
	if store == nil {
		registers = vm.NewRegisters()
	} else {
		registers = store.Bank(l.ID)
	}
	return Logistic(m.Execute(l.Program, observation, registers))
}

// Logistic is 1 / (1 + e^-x). Results round to exactly 0 or 1 only when |x|
// is beyond about 36.7 (towards 1) or 709.8 (towards 0).
func Logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
