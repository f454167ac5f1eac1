package state

import "pruntime/formula"

// Classifies the result of entering a state
type Outcome int

const (
	// The entry completed and the machine waits in the state
	Stay Outcome = iota
	// The entry completed with a transition to the successor state
	Goto
	// The machine halted
	Halt
)

func (o Outcome) String() string {
	switch o {
	case Stay:
		return "Stay"
	case Goto:
		return "Goto"
	case Halt:
		return "Halt"
	}
	return "Unknown"
}

// A branch of an entry encoding.
//
// When Guard holds, entering the state results in Outcome. Next is only meaningful when Outcome is Goto.
type EntryBranch struct {
	Guard   formula.Formula
	Next    ID
	Outcome Outcome
}

// A branch of an exit encoding.
//
// When Guard holds, the state can be left towards Next, or towards any successor if Next is AnySuccessor.
type ExitBranch struct {
	Guard formula.Formula
	Next  ID
}

type EntryFunc func(maxSends int, c CheckerContext, m MachineContext) []EntryBranch

type ExitFunc func(maxSends int, c CheckerContext, m MachineContext) []ExitBranch

// The symbolic encoding carried by a state. It is either NoEncoding or Encoded.
type Encoding interface {
	isEncoding()
}

// The default variant. The state never branches: entering it is a silent step after which the machine idles, and leaving it is a silent step.
type NoEncoding struct{}

// A state carrying encoding functions. Either function may be nil, which behaves like NoEncoding for that side.
//
// The functions must be pure. They are called repeatedly with varying bounds and depths.
type Encoded struct {
	Entry EntryFunc
	Exit  ExitFunc
}

func (NoEncoding) isEncoding() {}
func (Encoded) isEncoding()    {}
