package cfg

import (
	"fmt"

	"github.com/gitmesam/dcc/pkg/icode"
)

// Proc is one procedure's control-flow graph together with the icode
// store its blocks index into. Blocks are created up front by the CFG
// builder; the structuring pass only annotates them (and may mark some
// invalid).
type Proc struct {
	Name   string
	Blocks []*BB

	// DFSLast maps a DFS-last number to its block. Filled once by
	// NumberDFS and never renumbered; the compound-condition pass may
	// re-point a slot at the surviving block of a merge.
	DFSLast []*BB

	// HasCase is set when any block is a multi-way branch.
	HasCase bool

	// Icode is the procedure's low-level instruction store.
	Icode *icode.Store

	// Derived is the interval derived sequence G1, G2, ... computed
	// by DeriveSequence.
	Derived DerSeq
}

// NewProc creates an empty procedure backed by the given store.
func NewProc(name string, store *icode.Store) *Proc {
	return &Proc{Name: name, Icode: store}
}

// NewBlock appends a block of the given type covering icode range
// [start, start+length).
func (p *Proc) NewBlock(typ NodeType, start, length int) *BB {
	b := newBB(typ)
	b.Start = start
	b.Length = length
	if typ == NodeMultiBranch {
		p.HasCase = true
	}
	p.Blocks = append(p.Blocks, b)
	return b
}

// AddEdge appends an out-edge from src to dst and records the matching
// in-edge. For two-way blocks the first added edge is the THEN target
// and the second the ELSE target.
func (p *Proc) AddEdge(src, dst *BB) {
	src.Edges = append(src.Edges, dst)
	dst.InEdges = append(dst.InEdges, src)
}

// NumBlocks returns the number of blocks in the procedure.
func (p *Proc) NumBlocks() int {
	return len(p.Blocks)
}

// Entry returns the procedure's entry block.
func (p *Proc) Entry() *BB {
	if len(p.Blocks) == 0 {
		panic("cfg: procedure has no blocks")
	}
	return p.Blocks[0]
}

// NumberDFS assigns DFS-first and DFS-last numbers starting at the
// entry block and fills the DFSLast index. First-visit numbers count up
// in pre-order; last-visit numbers count down from NumBlocks-1 on
// post-visit, so the entry ends with DFS-last number 0 and every
// forward-edge ancestor of a block has a smaller DFS-last number.
// Numbering is assigned exactly once per procedure.
func (p *Proc) NumberDFS() {
	n := len(p.Blocks)
	p.DFSLast = make([]*BB, n)
	first := 0
	last := n - 1
	seen := make(map[*BB]bool, n)

	var walk func(b *BB)
	walk = func(b *BB) {
		seen[b] = true
		b.DFSFirstNum = first
		first++
		for _, s := range b.Edges {
			if !seen[s] {
				walk(s)
			}
		}
		b.DFSLastNum = last
		p.DFSLast[last] = b
		last--
	}
	walk(p.Entry())

	if last != -1 {
		panic(fmt.Sprintf("cfg: %d blocks unreachable from entry", last+1))
	}
}
