package structure

import "github.com/gitmesam/dcc/pkg/cfg"

// commonDom finds the common dominator of the current immediate
// dominator and a predecessor's, walking both up the partially built
// dominator tree until they meet. Either side may still be unset.
func commonDom(curr, pred int, p *cfg.Proc) int {
	if curr == cfg.NoDom {
		return pred
	}
	if pred == cfg.NoDom {
		return curr
	}
	for curr != cfg.NoDom && pred != cfg.NoDom && curr != pred {
		if curr < pred {
			pred = p.DFSLast[pred].ImmedDom
		} else {
			curr = p.DFSLast[curr].ImmedDom
		}
	}
	return curr
}

// findImmedDom fills in the immediate dominator of every valid block,
// iterating in ascending DFS-last order so each predecessor's slot is
// already refined when a block is reached. Predecessors with a larger
// DFS-last number sit on back edges and cannot dominate on a reducible
// graph, so they are skipped. Adapted from the Hecht-Ullman iterative
// dominator refinement.
func findImmedDom(p *cfg.Proc) {
	for idx := 0; idx < p.NumBlocks(); idx++ {
		b := p.DFSLast[idx]
		if b.Invalid() {
			continue
		}
		for _, pred := range b.InEdges {
			if pred.DFSLastNum < idx {
				b.ImmedDom = commonDom(b.ImmedDom, pred.DFSLastNum, p)
			}
		}
	}
}
