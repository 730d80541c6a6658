// Package icode defines the low-level instruction store consumed by the
// control-flow structuring pass. A Store holds one entry per decoded
// machine instruction; the structuring pass only touches low-level flag
// bits and the high-level conditional expression attached to jump
// instructions.
package icode

import "fmt"

// LLFlag is a bit-set of low-level instruction flags.
type LLFlag uint32

const (
	// JxLoop marks a conditional jump that implements a loop branch
	// (the exit test of a pre-tested loop header or a post-tested
	// loop latch). The two-way structurer skips instructions carrying
	// this flag.
	JxLoop LLFlag = 1 << iota
)

// Instr is a single low-level instruction slot. Only the fields the
// structuring pass reads and writes are modeled: the flag word and the
// high-level conditional expression of a jcond.
type Instr struct {
	Flags LLFlag    `json:"flags" msgpack:"flags"`
	Cond  *CondExpr `json:"cond,omitempty" msgpack:"cond,omitempty"`
}

// Store is an ordered sequence of instructions for one procedure,
// addressed by instruction index.
type Store struct {
	instrs []Instr
}

// NewStore creates a store with n empty instruction slots.
func NewStore(n int) *Store {
	return &Store{instrs: make([]Instr, n)}
}

// Len returns the number of instructions in the store.
func (s *Store) Len() int {
	return len(s.instrs)
}

// At returns the instruction at index i.
func (s *Store) At(i int) *Instr {
	if i < 0 || i >= len(s.instrs) {
		panic(fmt.Sprintf("icode: index %d out of range [0,%d)", i, len(s.instrs)))
	}
	return &s.instrs[i]
}

// SetLlFlag sets the given low-level flag bits on instruction i.
func (s *Store) SetLlFlag(i int, f LLFlag) {
	s.At(i).Flags |= f
}

// GetLlFlag returns the low-level flag word of instruction i.
func (s *Store) GetLlFlag(i int) LLFlag {
	return s.At(i).Flags
}

// SetCond installs the conditional expression of instruction i. The
// slot must be empty: the structuring pass moves expressions between
// slots and an occupied slot means an expression is being leaked.
func (s *Store) SetCond(i int, e *CondExpr) {
	in := s.At(i)
	if in.Cond != nil {
		panic(fmt.Sprintf("icode: condition slot %d already occupied", i))
	}
	in.Cond = e
}

// TakeCond removes and returns the conditional expression of
// instruction i, leaving the slot empty.
func (s *Store) TakeCond(i int) *CondExpr {
	in := s.At(i)
	e := in.Cond
	in.Cond = nil
	return e
}

// Cond returns the conditional expression of instruction i without
// transferring ownership.
func (s *Store) Cond(i int) *CondExpr {
	return s.At(i).Cond
}
