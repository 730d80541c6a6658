package structure

import (
	"github.com/gitmesam/dcc/pkg/cfg"
	"github.com/gitmesam/dcc/pkg/icode"
)

// absorbable reports whether a neighbor of a two-way branch can be
// folded into a compound condition: itself a two-way branch with a
// single high-level instruction and its only in-edge from the branch
// under analysis.
func absorbable(b *cfg.BB) bool {
	return b.NodeType == cfg.NodeTwoBranch && b.NumHL == 1 && len(b.InEdges) == 1
}

// combineCond moves the conditions of pbb and the absorbed block into
// a single compound condition on pbb's final instruction, inverting
// pbb's side first when asked. Both operand slots are emptied before
// the compound expression is installed.
func combineCond(p *cfg.Proc, pbb, absorbed *cfg.BB, op icode.CondOp, invertFirst bool) {
	pc := p.Icode.TakeCond(pbb.LastIcode())
	ac := p.Icode.TakeCond(absorbed.LastIcode())
	if invertFirst {
		icode.Invert(pc)
	}
	p.Icode.SetCond(pbb.LastIcode(), icode.BoolOp(pc, ac, op))
}

// compoundCond merges pairs of two-way branches that realize
// short-circuit evaluation into single compound-condition blocks,
// repeating forward scans until a full scan makes no merge.
func compoundCond(p *cfg.Proc) {
	for change := true; change; {
		change = false

		for i := 0; i < p.NumBlocks(); i++ {
			pbb := p.DFSLast[i]
			if pbb.Invalid() || pbb.NodeType != cfg.NodeTwoBranch {
				continue
			}
			t := pbb.Edges[cfg.Then]
			e := pbb.Edges[cfg.Else]
			var absorbed *cfg.BB

			switch {
			case absorbable(t) && t.Edges[cfg.Else] == e:
				// X || Y: both branches fail into the shared ELSE.
				obb := t.Edges[cfg.Then]
				combineCond(p, pbb, t, icode.OpOr, false)
				obb.ReplaceInEdge(t, pbb)
				pbb.Edges[cfg.Then] = obb
				e.RemoveInEdge(t)
				absorbed = t

			case absorbable(t) && t.Edges[cfg.Then] == e:
				// !X && Y: the THEN neighbor jumps into the ELSE arm.
				obb := t.Edges[cfg.Else]
				combineCond(p, pbb, t, icode.OpAnd, true)
				obb.ReplaceInEdge(t, pbb)
				pbb.Edges[cfg.Then] = e
				pbb.Edges[cfg.Else] = obb
				e.RemoveInEdge(t)
				absorbed = t

			case absorbable(e) && e.Edges[cfg.Then] == t:
				// X && Y: both conditions must hold to reach THEN.
				obb := e.Edges[cfg.Else]
				combineCond(p, pbb, e, icode.OpAnd, false)
				obb.ReplaceInEdge(e, pbb)
				pbb.Edges[cfg.Else] = obb
				t.RemoveInEdge(e)
				absorbed = e

			case absorbable(e) && e.Edges[cfg.Else] == t:
				// !X || Y: the ELSE neighbor falls back into THEN.
				obb := e.Edges[cfg.Then]
				combineCond(p, pbb, e, icode.OpOr, true)
				obb.ReplaceInEdge(e, pbb)
				pbb.Edges[cfg.Then] = obb
				pbb.Edges[cfg.Else] = t
				t.RemoveInEdge(e)
				absorbed = e

			default:
				continue
			}

			absorbed.Flags |= cfg.InvalidBB

			// A latch keeps the DFS-last table dense by taking over
			// the absorbed slot; otherwise back up one slot so the
			// merged block is analysed again right away.
			if pbb.Flags&cfg.IsLatchNode != 0 {
				p.DFSLast[absorbed.DFSLastNum] = pbb
			} else {
				i--
			}

			change = true
		}
	}
}
