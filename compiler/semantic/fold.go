package semantic

import (
	"strconv"

	"github.com/quarreldb/quarrel/compiler/ir"
)

// foldConstant evaluates arithmetic and string concatenation over
// literal operands at compile time.  Any failure (overflow, division
// by zero, malformed literal) is caught here and simply suppresses the
// optimization; it never surfaces to the caller.
func (t *translator) foldConstant(ctx *context, op string, args []callArg) (*ir.Literal, bool) {
	if len(args) != 2 {
		return nil, false
	}
	lhs, lok := literalOf(args[0].val)
	rhs, rok := literalOf(args[1].val)
	if !lok || !rok || lhs.Type == nil || !lhs.Type.Equal(rhs.Type) {
		return nil, false
	}
	switch lhs.Type.TypeName() {
	case "std::int64":
		return foldInt(op, lhs, rhs)
	case "std::float64":
		return foldFloat(op, lhs, rhs)
	case "std::str":
		if op == "++" {
			return &ir.Literal{Type: lhs.Type, Value: lhs.Value + rhs.Value}, true
		}
	}
	return nil, false
}

func literalOf(s *ir.Set) (*ir.Literal, bool) {
	if s == nil {
		return nil, false
	}
	lit, ok := s.Expr.(*ir.Literal)
	return lit, ok
}

func foldInt(op string, lhs, rhs *ir.Literal) (*ir.Literal, bool) {
	a, err := strconv.ParseInt(lhs.Value, 10, 64)
	if err != nil {
		return nil, false
	}
	b, err := strconv.ParseInt(rhs.Value, 10, 64)
	if err != nil {
		return nil, false
	}
	var v int64
	switch op {
	case "+":
		v = a + b
		if (v > a) != (b > 0) {
			return nil, false
		}
	case "-":
		v = a - b
		if (v < a) != (b > 0) {
			return nil, false
		}
	case "*":
		v = a * b
		if a != 0 && v/a != b {
			return nil, false
		}
	case "%":
		if b == 0 {
			return nil, false
		}
		v = a % b
	default:
		return nil, false
	}
	return &ir.Literal{Type: lhs.Type, Value: strconv.FormatInt(v, 10)}, true
}

func foldFloat(op string, lhs, rhs *ir.Literal) (*ir.Literal, bool) {
	a, err := strconv.ParseFloat(lhs.Value, 64)
	if err != nil {
		return nil, false
	}
	b, err := strconv.ParseFloat(rhs.Value, 64)
	if err != nil {
		return nil, false
	}
	var v float64
	switch op {
	case "+":
		v = a + b
	case "-":
		v = a - b
	case "*":
		v = a * b
	case "/":
		if b == 0 {
			return nil, false
		}
		v = a / b
	default:
		return nil, false
	}
	return &ir.Literal{Type: lhs.Type, Value: strconv.FormatFloat(v, 'g', -1, 64)}, true
}
