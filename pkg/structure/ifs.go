package structure

import (
	"github.com/gitmesam/dcc/pkg/cfg"
	"github.com/gitmesam/dcc/pkg/icode"
)

// structIfs assigns follow nodes to two-way branches whose final
// instruction does not carry the loop-jump flag (the exit test of a
// pre-tested loop header or a post-tested loop latch); other two-way
// loop headers and latches are treated like any branch. Blocks are
// scanned in reverse DFS-last order; the
// candidate follow of a branch is the immediate dominee with the
// largest effective in-degree (in-edges minus back edges), the last
// such dominee winning a tie. A follow is only accepted when at least
// two paths reach it; branches without one wait on the unresolved
// queue and adopt the next follow found further out.
func structIfs(p *cfg.Proc) {
	var unresolved nodeList

	for curr := p.NumBlocks() - 1; curr >= 0; curr-- {
		b := p.DFSLast[curr]
		if b.Invalid() || b.NodeType != cfg.NodeTwoBranch {
			continue
		}
		if p.Icode.GetLlFlag(b.LastIcode())&icode.JxLoop != 0 {
			continue
		}

		follow := 0
		followInEdges := 0
		for desc := curr + 1; desc < p.NumBlocks(); desc++ {
			d := p.DFSLast[desc]
			if d.ImmedDom != curr {
				continue
			}
			if eff := len(d.InEdges) - d.NumBackEdges; eff >= followInEdges {
				follow = desc
				followInEdges = eff
			}
		}

		if follow != 0 && followInEdges > 1 {
			b.IfFollow = follow
			for _, u := range unresolved {
				p.DFSLast[u].IfFollow = follow
			}
			unresolved = unresolved[:0]
		} else {
			unresolved = append(unresolved, curr)
		}
	}
}
