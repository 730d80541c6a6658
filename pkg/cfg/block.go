// Package cfg defines the per-procedure control-flow graph consumed and
// annotated by the structuring pass: basic blocks, DFS numbering, the
// interval derived sequence, and a flat document form for persistence.
package cfg

import "github.com/gitmesam/dcc/pkg/icode"

// NodeType classifies a basic block by its terminating instruction.
type NodeType string

const (
	NodeOneBranch   NodeType = "one_way"      // unconditional jump
	NodeTwoBranch   NodeType = "two_way"      // conditional jump
	NodeMultiBranch NodeType = "multi_way"    // indexed jump (switch)
	NodeReturn      NodeType = "return"       // procedure return
	NodeLoop        NodeType = "loop_self"    // self-looping string instruction
	NodeCall        NodeType = "call"         // call followed by fall-through
	NodeFall        NodeType = "fall_through" // no explicit transfer
)

// LoopType classifies a structured loop by the position of its exit test.
type LoopType string

const (
	LoopNone     LoopType = ""
	LoopPreTest  LoopType = "pre_test"  // while()
	LoopPostTest LoopType = "post_test" // repeat..until
	LoopEndless  LoopType = "endless"
)

// TravType marks a block as visited by one of the recursive traversals.
type TravType int

const (
	TravNone TravType = iota
	TravCase
	TravOther
)

// BlockFlag is a bit-set of per-block state flags.
type BlockFlag uint32

const (
	// InvalidBB marks a block absorbed by the compound-condition pass.
	// Invalid blocks keep their DFS numbers but are skipped everywhere.
	InvalidBB BlockFlag = 1 << iota
	// IsLatchNode marks the latching block of a structured loop.
	IsLatchNode
)

// Out-edge positions of a two-way block.
const (
	Then = 0
	Else = 1
)

// Sentinel values in the DFS-last index domain.
const (
	// NoNode marks an absent node reference.
	NoNode = -1
	// NoDom marks an unset immediate dominator (the root keeps it).
	NoDom = -1
	// NoFollow is the "no follow" sentinel of endless loops; it is
	// larger than every DFS-last index so that minimization against
	// it works directly.
	NoFollow = int(^uint(0) >> 1)
)

// BB is a basic block. Edge order matters: for a two-way block,
// Edges[Then] is the jump-taken target and Edges[Else] the
// fall-through; for a multi-way block each entry is one case target.
type BB struct {
	NodeType NodeType

	// Start and Length locate the block's instructions in the
	// procedure's icode store; the last instruction is the one that
	// receives the JxLoop flag.
	Start  int
	Length int

	// NumHL is the number of high-level instructions the block
	// carries after intermediate-code generation. The compound
	// condition pass only absorbs single-instruction blocks.
	NumHL int

	InEdges []*BB
	Edges   []*BB

	DFSFirstNum int
	DFSLastNum  int

	// NumBackEdges counts back edges arriving at this block; it is
	// incremented during latch discovery and consumed by the two-way
	// structurer's effective in-degree.
	NumBackEdges int

	// Structuring annotations, all in the DFS-last index domain.
	ImmedDom   int
	LoopType   LoopType
	LoopHead   int
	LatchNode  int
	LoopFollow int
	CaseHead   int
	CaseTail   int
	IfFollow   int

	Traversed TravType
	Flags     BlockFlag

	// CorrespInt links a derived-graph node to the interval it
	// collapses at the level below (for a G1 block, the level-1
	// interval containing it).
	CorrespInt *Interval
}

// newBB returns a block with every annotation slot at its sentinel.
func newBB(typ NodeType) *BB {
	return &BB{
		NodeType:    typ,
		DFSFirstNum: NoNode,
		DFSLastNum:  NoNode,
		ImmedDom:    NoDom,
		LoopHead:    NoNode,
		LatchNode:   NoNode,
		LoopFollow:  NoFollow,
		CaseHead:    NoNode,
		CaseTail:    NoNode,
		IfFollow:    NoNode,
	}
}

// Invalid reports whether the block was absorbed by a merge.
func (b *BB) Invalid() bool {
	return b.Flags&InvalidBB != 0
}

// LastIcode is the index of the block's final low-level instruction.
func (b *BB) LastIcode() int {
	return b.Start + b.Length - 1
}

// Cond returns the conditional expression on the block's final
// instruction, without transferring ownership.
func (b *BB) Cond(store *icode.Store) *icode.CondExpr {
	return store.Cond(b.LastIcode())
}

// ReplaceInEdge redirects the in-edge recorded from one predecessor so
// that it comes from another. The edge must exist.
func (b *BB) ReplaceInEdge(from, to *BB) {
	for i, p := range b.InEdges {
		if p == from {
			b.InEdges[i] = to
			return
		}
	}
	panic("cfg: ReplaceInEdge: edge not present")
}

// RemoveInEdge deletes the in-edge recorded from pred. The edge must
// exist.
func (b *BB) RemoveInEdge(pred *BB) {
	for i, p := range b.InEdges {
		if p == pred {
			b.InEdges = append(b.InEdges[:i], b.InEdges[i+1:]...)
			return
		}
	}
	panic("cfg: RemoveInEdge: edge not present")
}
