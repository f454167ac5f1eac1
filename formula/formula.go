// Package formula provides the quantifier-free boolean formulas exchanged between the
// containment encoder and a solver oracle.
//
// Formulas are immutable trees. The constructors simplify as they build, so building the
// same formula twice always produces the same tree and the same canonical string.
package formula

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A Model assigns truth values to variables. Variables missing from the model are false.
type Model map[string]bool

// A Formula is a node of a boolean formula tree.
type Formula interface {
	// Canonical S-expression of the formula. Two formulas are structurally equal iff their strings are equal.
	String() string
	// Evaluate the formula under the model.
	Eval(m Model) bool

	isFormula()
}

// Const is a boolean constant.
type Const bool

// Var is a named boolean variable.
type Var string

// Not is the negation of X.
type Not struct{ X Formula }

// And is an n-ary conjunction.
type And []Formula

// Or is an n-ary disjunction.
type Or []Formula

var (
	True  Formula = Const(true)
	False Formula = Const(false)
)

func (Const) isFormula() {}
func (Var) isFormula()   {}
func (Not) isFormula()   {}
func (And) isFormula()   {}
func (Or) isFormula()    {}

func (c Const) String() string {
	if c {
		return "true"
	}
	return "false"
}

func (v Var) String() string { return string(v) }

func (n Not) String() string { return "(not " + n.X.String() + ")" }

func (a And) String() string { return nary("and", a) }

func (o Or) String() string { return nary("or", o) }

func nary(op string, xs []Formula) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(op)
	for _, x := range xs {
		b.WriteString(" ")
		b.WriteString(x.String())
	}
	b.WriteString(")")
	return b.String()
}

func (c Const) Eval(Model) bool { return bool(c) }

func (v Var) Eval(m Model) bool { return m[string(v)] }

func (n Not) Eval(m Model) bool { return !n.X.Eval(m) }

func (a And) Eval(m Model) bool {
	for _, x := range a {
		if !x.Eval(m) {
			return false
		}
	}
	return true
}

func (o Or) Eval(m Model) bool {
	for _, x := range o {
		if x.Eval(m) {
			return true
		}
	}
	return false
}

// V returns the variable with the given name.
func V(name string) Formula { return Var(name) }

// NewNot negates x, folding constants and double negations.
func NewNot(x Formula) Formula {
	switch t := x.(type) {
	case nil:
		return False
	case Const:
		return Const(!bool(t))
	case Not:
		return t.X
	}
	return Not{X: x}
}

// NewAnd conjoins xs.
//
// Nested conjunctions are flattened, true operands and nil operands are dropped and a false operand makes the whole conjunction false.
func NewAnd(xs ...Formula) Formula {
	out := make(And, 0, len(xs))
	for _, x := range xs {
		switch t := x.(type) {
		case nil:
		case Const:
			if !bool(t) {
				return False
			}
		case And:
			out = append(out, t...)
		default:
			out = append(out, x)
		}
	}
	switch len(out) {
	case 0:
		return True
	case 1:
		return out[0]
	}
	return out
}

// NewOr disjoins xs.
//
// Nested disjunctions are flattened, false operands and nil operands are dropped and a true operand makes the whole disjunction true.
func NewOr(xs ...Formula) Formula {
	out := make(Or, 0, len(xs))
	for _, x := range xs {
		switch t := x.(type) {
		case nil:
		case Const:
			if bool(t) {
				return True
			}
		case Or:
			out = append(out, t...)
		default:
			out = append(out, x)
		}
	}
	switch len(out) {
	case 0:
		return False
	case 1:
		return out[0]
	}
	return out
}

// Implies returns a -> b.
func Implies(a, b Formula) Formula {
	return NewOr(NewNot(a), b)
}

// AtMostOne holds when no two of xs hold at the same time.
func AtMostOne(xs ...Formula) Formula {
	pairs := []Formula{}
	for i := range xs {
		for j := i + 1; j < len(xs); j++ {
			pairs = append(pairs, NewNot(NewAnd(xs[i], xs[j])))
		}
	}
	return NewAnd(pairs...)
}

// ExactlyOne holds when exactly one of xs holds.
func ExactlyOne(xs ...Formula) Formula {
	return NewAnd(NewOr(xs...), AtMostOne(xs...))
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Formula) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Vars returns the sorted set of variable names occurring in f.
func Vars(f Formula) []string {
	set := map[string]bool{}
	collect(f, set)
	names := maps.Keys(set)
	slices.Sort(names)
	return names
}

func collect(f Formula, set map[string]bool) {
	switch t := f.(type) {
	case Var:
		set[string(t)] = true
	case Not:
		collect(t.X, set)
	case And:
		for _, x := range t {
			collect(x, set)
		}
	case Or:
		for _, x := range t {
			collect(x, set)
		}
	}
}

// Substitute replaces every occurrence of the variable name with the constant val.
func Substitute(f Formula, name string, val bool) Formula {
	return Map(f, func(v Var) Formula {
		if string(v) == name {
			return Const(val)
		}
		return v
	})
}

// Map rebuilds f with every variable replaced by the result of fn.
func Map(f Formula, fn func(Var) Formula) Formula {
	switch t := f.(type) {
	case Var:
		return fn(t)
	case Not:
		return NewNot(Map(t.X, fn))
	case And:
		xs := make([]Formula, len(t))
		for i, x := range t {
			xs[i] = Map(x, fn)
		}
		return NewAnd(xs...)
	case Or:
		xs := make([]Formula, len(t))
		for i, x := range t {
			xs[i] = Map(x, fn)
		}
		return NewOr(xs...)
	}
	return f
}

// Exists eliminates the named variables from f by Shannon expansion.
//
// The result holds under a model iff f holds under some assignment of the named variables that agrees with the model elsewhere.
// The result grows exponentially in the number of eliminated variables that occur in f.
func Exists(f Formula, names ...string) Formula {
	occurring := map[string]bool{}
	collect(f, occurring)
	for _, name := range names {
		if !occurring[name] {
			continue
		}
		f = NewOr(Substitute(f, name, true), Substitute(f, name, false))
	}
	return f
}
