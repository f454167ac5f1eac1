package remote

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"pruntime/formula"
	"pruntime/solver"
)

var ErrMalformed = errors.New("remote: malformed message")

// Encode a formula as a protobuf value.
//
// Constants are bool values, variables are string values and operators are lists whose first element names the operator.
func EncodeFormula(f formula.Formula) *structpb.Value {
	switch t := f.(type) {
	case formula.Const:
		return structpb.NewBoolValue(bool(t))
	case formula.Var:
		return structpb.NewStringValue(string(t))
	case formula.Not:
		return operator("not", t.X)
	case formula.And:
		return operator("and", t...)
	case formula.Or:
		return operator("or", t...)
	}
	return structpb.NewBoolValue(false)
}

func operator(op string, xs ...formula.Formula) *structpb.Value {
	values := make([]*structpb.Value, 0, len(xs)+1)
	values = append(values, structpb.NewStringValue(op))
	for _, x := range xs {
		values = append(values, EncodeFormula(x))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

// Decode a formula encoded by EncodeFormula.
func DecodeFormula(v *structpb.Value) (formula.Formula, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return formula.Const(k.BoolValue), nil
	case *structpb.Value_StringValue:
		if k.StringValue == "" {
			return nil, errors.Wrap(ErrMalformed, "empty variable name")
		}
		return formula.V(k.StringValue), nil
	case *structpb.Value_ListValue:
		values := k.ListValue.GetValues()
		if len(values) == 0 {
			return nil, errors.Wrap(ErrMalformed, "empty operator")
		}
		operands := make([]formula.Formula, 0, len(values)-1)
		for _, x := range values[1:] {
			f, err := DecodeFormula(x)
			if err != nil {
				return nil, err
			}
			operands = append(operands, f)
		}
		switch op := values[0].GetStringValue(); op {
		case "not":
			if len(operands) != 1 {
				return nil, errors.Wrapf(ErrMalformed, "not with %d operands", len(operands))
			}
			return formula.NewNot(operands[0]), nil
		case "and":
			return formula.NewAnd(operands...), nil
		case "or":
			return formula.NewOr(operands...), nil
		default:
			return nil, errors.Wrapf(ErrMalformed, "unknown operator %q", op)
		}
	}
	return nil, errors.Wrapf(ErrMalformed, "unexpected value %v", v)
}

func encodeResult(r solver.Result) (*structpb.Struct, error) {
	model := make(map[string]interface{}, len(r.Model))
	for name, val := range r.Model {
		model[name] = val
	}
	return structpb.NewStruct(map[string]interface{}{
		"status": r.Status.String(),
		"reason": r.Reason,
		"model":  model,
	})
}

func decodeResult(s *structpb.Struct) (solver.Result, error) {
	fields := s.GetFields()
	r := solver.Result{Reason: fields["reason"].GetStringValue()}
	switch status := fields["status"].GetStringValue(); status {
	case solver.Satisfiable.String():
		r.Status = solver.Satisfiable
		r.Model = formula.Model{}
		for name, val := range fields["model"].GetStructValue().GetFields() {
			r.Model[name] = val.GetBoolValue()
		}
	case solver.Unsatisfiable.String():
		r.Status = solver.Unsatisfiable
	case solver.Unknown.String():
		r.Status = solver.Unknown
	default:
		return solver.Result{}, errors.Wrapf(ErrMalformed, "unknown status %q", status)
	}
	return r, nil
}
