package vm

import (
	"math"

	"tpg/internal/instruction"
)

// OperatorFunc computes the new destination value from the current
// destination value and the source value.
type OperatorFunc func(dest, src float64) float64

// operatorTable is the closed operator set. It is indexed by the tagged
// operator so an unknown tag is a bounds miss, not a silent no-op.
var operatorTable = [...]OperatorFunc{
	instruction.Sum:      func(dest, src float64) float64 { return dest + src },
	instruction.Diff:     func(dest, src float64) float64 { return dest - src },
	instruction.Product:  func(dest, src float64) float64 { return dest * src },
	instruction.Quotient: func(dest, src float64) float64 { return dest / src },
	instruction.Cosine:   func(_, src float64) float64 { return math.Cos(src) },
	instruction.Log:      func(_, src float64) float64 { return math.Log(src) },
	instruction.Exp:      func(_, src float64) float64 { return math.Exp(src) },
	instruction.Conditional: func(dest, src float64) float64 {
		if dest < src {
			return -dest
		}
		return dest
	},
}

// Lookup returns the implementation of op.
func Lookup(op instruction.Operator) (OperatorFunc, bool) {
	if int(op) >= len(operatorTable) || operatorTable[op] == nil {
		return nil, false
	}
	return operatorTable[op], true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
