package instruction

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Size is the fixed instruction width in bits.
const Size = 23

// RegisterCount is the number of addressable destination registers. It is
// derived from the destination field width so every encodable destination is
// in range.
const RegisterCount = 1 << 3

const mask = 1<<Size - 1

var (
	ErrOffsetOutOfRange   = errors.New("bit offset out of range")
	ErrInvalidOperator    = errors.New("invalid operator encoding")
	ErrInvalidDestination = errors.New("destination register out of range")
	ErrInvalidMode        = errors.New("invalid mode encoding")
	ErrFieldOverflow      = errors.New("value does not fit field")
)

// Field addresses a contiguous run of bits. Offset 0 is the most significant
// instruction bit.
type Field struct {
	Name   string
	Offset int
	Width  int
}

var (
	FieldMode        = Field{Name: "mode", Offset: 0, Width: 1}
	FieldOperator    = Field{Name: "operator", Offset: 1, Width: 3}
	FieldDestination = Field{Name: "destination", Offset: 4, Width: 3}
	FieldSource      = Field{Name: "source", Offset: 7, Width: 16}
)

// Bits is a decoded field value together with its width.
type Bits struct {
	Value uint32
	Width int
}

// Uint decodes the segment as an unsigned integer.
func (b Bits) Uint() uint32 {
	return b.Value
}

// Equal reports whether two bit patterns are identical, width included.
func (b Bits) Equal(other Bits) bool {
	return b.Width == other.Width && b.Value == other.Value
}

func (b Bits) String() string {
	return fmt.Sprintf("%0*b", b.Width, b.Value)
}

var (
	ModeRegister    = Bits{Value: 0, Width: 1}
	ModeObservation = Bits{Value: 1, Width: 1}

	OpSum         = Bits{Value: 0b000, Width: 3}
	OpDiff        = Bits{Value: 0b001, Width: 3}
	OpProduct     = Bits{Value: 0b010, Width: 3}
	OpQuotient    = Bits{Value: 0b011, Width: 3}
	OpCosine      = Bits{Value: 0b100, Width: 3}
	OpLog         = Bits{Value: 0b101, Width: 3}
	OpExp         = Bits{Value: 0b110, Width: 3}
	OpConditional = Bits{Value: 0b111, Width: 3}
)

// Instruction is one packed register-machine instruction.
type Instruction uint32

// New packs the given field values into an instruction.
func New(mode, operator Bits, destination, source uint32) (Instruction, error) {
	if !mode.Equal(ModeRegister) && !mode.Equal(ModeObservation) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if _, ok := operatorFor(operator); !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidOperator, operator)
	}
	var in Instruction
	for _, part := range []struct {
		field Field
		value uint32
	}{
		{FieldMode, mode.Value},
		{FieldOperator, operator.Value},
		{FieldDestination, destination},
		{FieldSource, source},
	} {
		if part.value >= 1<<part.field.Width {
			return 0, fmt.Errorf("%w: %s=%d", ErrFieldOverflow, part.field.Name, part.value)
		}
		in |= Instruction(part.value << shift(part.field))
	}
	return in, nil
}

// Random draws a uniformly random instruction from rng.
func Random(rng *rand.Rand) Instruction {
	return Instruction(rng.Uint32() & mask)
}

// Segment extracts one field.
func (in Instruction) Segment(f Field) Bits {
	return Bits{
		Value: (uint32(in) >> shift(f)) & (1<<f.Width - 1),
		Width: f.Width,
	}
}

// Flip inverts the bit at offset.
func (in *Instruction) Flip(offset int) error {
	if offset < 0 || offset >= Size {
		return fmt.Errorf("%w: %d", ErrOffsetOutOfRange, offset)
	}
	*in ^= 1 << (Size - 1 - offset)
	return nil
}

func shift(f Field) int {
	return Size - f.Offset - f.Width
}

// Operator is the tagged form of the operator field.
type Operator uint8

const (
	Sum Operator = iota
	Diff
	Product
	Quotient
	Cosine
	Log
	Exp
	Conditional
)

var operatorNames = [...]string{
	Sum:         "sum",
	Diff:        "diff",
	Product:     "prod",
	Quotient:    "div",
	Cosine:      "cos",
	Log:         "log",
	Exp:         "exp",
	Conditional: "cond",
}

var operatorPatterns = [...]Bits{
	Sum:         OpSum,
	Diff:        OpDiff,
	Product:     OpProduct,
	Quotient:    OpQuotient,
	Cosine:      OpCosine,
	Log:         OpLog,
	Exp:         OpExp,
	Conditional: OpConditional,
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Pattern returns the operator's encoded bit pattern.
func (o Operator) Pattern() (Bits, bool) {
	if int(o) >= len(operatorPatterns) {
		return Bits{}, false
	}
	return operatorPatterns[o], true
}

func operatorFor(b Bits) (Operator, bool) {
	for op, pattern := range operatorPatterns {
		if b.Equal(pattern) {
			return Operator(op), true
		}
	}
	return 0, false
}

// Op is the decoded, tagged form of an instruction used by the interpreter.
type Op struct {
	FromRegister bool
	Source       uint32
	Operator     Operator
	Destination  int
}

// Decode converts the packed instruction into its tagged form.
func (in Instruction) Decode() (Op, error) {
	op, ok := operatorFor(in.Segment(FieldOperator))
	if !ok {
		return Op{}, fmt.Errorf("%w: %s", ErrInvalidOperator, in.Segment(FieldOperator))
	}
	dest := in.Segment(FieldDestination).Uint()
	if dest >= RegisterCount {
		return Op{}, fmt.Errorf("%w: %d", ErrInvalidDestination, dest)
	}
	return Op{
		FromRegister: in.Segment(FieldMode).Equal(ModeRegister),
		Source:       in.Segment(FieldSource).Uint(),
		Operator:     op,
		Destination:  int(dest),
	}, nil
}

// String renders the instruction as "<op> r<dest> <r|o><source>".
func (in Instruction) String() string {
	op, err := in.Decode()
	if err != nil {
		return fmt.Sprintf("invalid(%0*b)", Size, uint32(in)&mask)
	}
	return op.String()
}

func (o Op) String() string {
	src := "o"
	if o.FromRegister {
		src = "r"
	}
	return fmt.Sprintf("%s r%d %s%d", o.Operator, o.Destination, src, o.Source)
}

// Parse is the inverse of String.
func Parse(text string) (Instruction, error) {
	parts := strings.Fields(strings.ToLower(text))
	if len(parts) != 3 {
		return 0, fmt.Errorf("parse instruction %q: want \"<op> r<dest> <r|o><source>\"", text)
	}

	operator := Bits{Width: -1}
	for op, name := range operatorNames {
		if parts[0] == name {
			operator = operatorPatterns[op]
			break
		}
	}
	if operator.Width < 0 {
		return 0, fmt.Errorf("parse instruction %q: %w: %s", text, ErrInvalidOperator, parts[0])
	}

	if !strings.HasPrefix(parts[1], "r") {
		return 0, fmt.Errorf("parse instruction %q: destination must be a register", text)
	}
	dest, err := strconv.ParseUint(parts[1][1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse instruction %q: destination: %w", text, err)
	}

	mode := ModeObservation
	switch {
	case strings.HasPrefix(parts[2], "r"):
		mode = ModeRegister
	case strings.HasPrefix(parts[2], "o"):
	default:
		return 0, fmt.Errorf("parse instruction %q: source must start with r or o", text)
	}
	src, err := strconv.ParseUint(parts[2][1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse instruction %q: source: %w", text, err)
	}

	in, err := New(mode, operator, uint32(dest), uint32(src))
	if err != nil {
		return 0, fmt.Errorf("parse instruction %q: %w", text, err)
	}
	return in, nil
}

// ParseProgram parses one instruction per non-empty line or semicolon.
func ParseProgram(text string) ([]Instruction, error) {
	var program []Instruction
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ';' }) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		in, err := Parse(line)
		if err != nil {
			return nil, err
		}
		program = append(program, in)
	}
	return program, nil
}
