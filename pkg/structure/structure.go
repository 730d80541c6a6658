// Package structure recovers high-level control constructs from a
// reducible per-procedure control-flow graph: loop headers with their
// kind, latch and follow nodes, multi-way (case) headers with their
// tails and membership, two-way (if) follow nodes, and compound
// short-circuit conditions collapsed across single-instruction blocks.
//
// The pass only annotates blocks in place (the compound-condition
// stage additionally rewires edges and invalidates absorbed blocks).
// It assumes the graph is reducible, carries DFS numbering, and has a
// derived interval sequence; inconsistent input is a programmer error
// and panics.
package structure

import "github.com/gitmesam/dcc/pkg/cfg"

// Structure runs the five structuring stages over the procedure in
// dependency order: immediate dominators, case structuring (only when
// the procedure has a multi-way branch), loop structuring over the
// derived sequence, two-way structuring, and compound-condition
// collapsing. Callers must not hold references into edge lists or the
// DFS-last index across the call: the final stage mutates both.
func Structure(p *cfg.Proc) {
	findImmedDom(p)
	if p.HasCase {
		structCases(p)
	}
	structLoops(p)
	structIfs(p)
	compoundCond(p)
}

// nodeList is a set of DFS-last indices built up during a traversal.
type nodeList []int

func (l nodeList) contains(n int) bool {
	for _, v := range l {
		if v == n {
			return true
		}
	}
	return false
}
