package core

import "strings"

// Operator is a comparison operator accepted by Where and Having.
type Operator string

// Supported operators.
const (
	OpEq         Operator = "="
	OpNe         Operator = "!="
	OpNeAlt      Operator = "<>"
	OpLt         Operator = "<"
	OpLte        Operator = "<="
	OpGt         Operator = ">"
	OpGte        Operator = ">="
	OpLike       Operator = "LIKE"
	OpNotLike    Operator = "NOT LIKE"
	OpILike      Operator = "ILIKE"
	OpNotILike   Operator = "NOT ILIKE"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT IN"
	OpBetween    Operator = "BETWEEN"
	OpNotBetween Operator = "NOT BETWEEN"
	OpIsNull     Operator = "IS NULL"
	OpIsNotNull  Operator = "IS NOT NULL"
	OpExists     Operator = "EXISTS"
	OpNotExists  Operator = "NOT EXISTS"
	OpRaw        Operator = "RAW"
)

var operators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpNeAlt: {}, OpLt: {}, OpLte: {}, OpGt: {}, OpGte: {},
	OpLike: {}, OpNotLike: {}, OpILike: {}, OpNotILike: {},
	OpIn: {}, OpNotIn: {}, OpBetween: {}, OpNotBetween: {},
	OpIsNull: {}, OpIsNotNull: {}, OpExists: {}, OpNotExists: {}, OpRaw: {},
}

// normalize upper-cases op and collapses inner whitespace, so "not  in"
// becomes NOT IN.
func (op Operator) normalize() Operator {
	return Operator(strings.Join(strings.Fields(strings.ToUpper(string(op))), " "))
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	_, ok := operators[op.normalize()]
	return ok
}

func (op Operator) takesList() bool {
	switch op {
	case OpIn, OpNotIn, OpBetween, OpNotBetween:
		return true
	}
	return false
}

func (op Operator) takesNoValue() bool {
	return op == OpIsNull || op == OpIsNotNull
}
