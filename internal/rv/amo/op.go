package amo

import (
	"strings"

	"github.com/kolkov/rvatomic/internal/rv/fault"
)

// Op is an atomic memory operation.
type Op uint8

const (
	// Swap: new = operand.
	Swap Op = iota
	// Add: new = old + operand (wrapping).
	Add
	// And: new = old & operand.
	And
	// Or: new = old | operand.
	Or
	// Xor: new = old ^ operand.
	Xor
	// Min: new = signed minimum.
	Min
	// Max: new = signed maximum.
	Max
	// MinU: new = unsigned minimum.
	MinU
	// MaxU: new = unsigned maximum.
	MaxU

	numOps
)

// mnemonics are the RV32A instruction names, indexed by Op.
var mnemonics = [numOps]string{
	Swap: "amoswap.w",
	Add:  "amoadd.w",
	And:  "amoand.w",
	Or:   "amoor.w",
	Xor:  "amoxor.w",
	Min:  "amomin.w",
	Max:  "amomax.w",
	MinU: "amominu.w",
	MaxU: "amomaxu.w",
}

// Ops returns every operation in opcode order.
func Ops() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// Valid reports whether op is a defined operation.
func (op Op) Valid() bool {
	return op < numOps
}

// String returns the instruction mnemonic, e.g. "amoadd.w".
func (op Op) String() string {
	if !op.Valid() {
		return "amo?"
	}
	return mnemonics[op]
}

// ParseOp accepts a mnemonic ("amoadd.w") or a bare name ("add", "minu").
func ParseOp(s string) (Op, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(strings.TrimPrefix(name, "amo"), ".w")

	for op, m := range mnemonics {
		if strings.TrimSuffix(strings.TrimPrefix(m, "amo"), ".w") == name {
			return Op(op), nil
		}
	}
	return 0, fault.Usage("amo.parse "+s, fault.ErrUnknownOp)
}

// Apply computes the value op writes back given the old value and operand.
//
// Min and Max compare as int32; MinU and MaxU compare as uint32.
func (op Op) Apply(old, operand uint32) uint32 {
	switch op {
	case Swap:
		return operand
	case Add:
		return old + operand
	case And:
		return old & operand
	case Or:
		return old | operand
	case Xor:
		return old ^ operand
	case Min:
		if int32(operand) < int32(old) {
			return operand
		}
		return old
	case Max:
		if int32(operand) > int32(old) {
			return operand
		}
		return old
	case MinU:
		return min(old, operand)
	case MaxU:
		return max(old, operand)
	default:
		panic(fault.Usage("amo.apply", fault.ErrUnknownOp))
	}
}
