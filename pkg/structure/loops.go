package structure

import (
	"github.com/gitmesam/dcc/pkg/cfg"
	"github.com/gitmesam/dcc/pkg/icode"
)

// isBackEdge reports whether the edge (pred, head) is a back edge:
// head was visited first (or the edge is a self loop). A positive test
// also counts the back edge on the header, which the two-way
// structurer later subtracts from the in-degree.
func isBackEdge(pred, head *cfg.BB) bool {
	if pred.DFSFirstNum >= head.DFSFirstNum {
		head.NumBackEdges++
		return true
	}
	return false
}

// findEndlessFollow picks the follow of an endless loop: the smallest
// DFS-last successor outside the loop, or NoFollow when the loop has
// no exit at all.
func findEndlessFollow(p *cfg.Proc, loopNodes nodeList, head *cfg.BB) {
	head.LoopFollow = cfg.NoFollow
	for _, idx := range loopNodes {
		for _, succ := range p.DFSLast[idx].Edges {
			s := succ.DFSLastNum
			if !loopNodes.contains(s) && s < head.LoopFollow {
				head.LoopFollow = s
			}
		}
	}
}

// findNodesInLoop claims the nodes of the loop defined by (latch,
// head), then classifies the loop and computes its follow node.
func findNodesInLoop(latch, head *cfg.BB, p *cfg.Proc, intNodes map[*cfg.BB]bool) {
	headDfs := head.DFSLastNum
	head.LoopHead = headDfs
	loopNodes := nodeList{headDfs}

	// A block between header and latch belongs to the loop when its
	// immediate dominator is already claimed and it sits inside the
	// interval. Blocks owned by a loop found at a lower derived level
	// keep their inner loop head.
	for i := headDfs + 1; i < latch.DFSLastNum; i++ {
		b := p.DFSLast[i]
		if b.Invalid() {
			continue
		}
		if loopNodes.contains(b.ImmedDom) && intNodes[b] {
			loopNodes = append(loopNodes, i)
			if b.LoopHead == cfg.NoNode {
				b.LoopHead = headDfs
			}
		}
	}
	latch.LoopHead = headDfs
	if latch != head {
		loopNodes = append(loopNodes, latch.DFSLastNum)
	}

	switch {
	case latch.NodeType == cfg.NodeTwoBranch:
		if head.NodeType == cfg.NodeTwoBranch || latch == head {
			if latch == head ||
				(loopNodes.contains(head.Edges[cfg.Then].DFSLastNum) &&
					loopNodes.contains(head.Edges[cfg.Else].DFSLastNum)) {
				// Exit test at the latch.
				head.LoopType = cfg.LoopPostTest
				if latch.Edges[cfg.Then] == head {
					head.LoopFollow = latch.Edges[cfg.Else].DFSLastNum
				} else {
					head.LoopFollow = latch.Edges[cfg.Then].DFSLastNum
				}
				p.Icode.SetLlFlag(latch.LastIcode(), icode.JxLoop)
			} else {
				// Exit test at the header.
				head.LoopType = cfg.LoopPreTest
				if loopNodes.contains(head.Edges[cfg.Then].DFSLastNum) {
					head.LoopFollow = head.Edges[cfg.Else].DFSLastNum
				} else {
					head.LoopFollow = head.Edges[cfg.Then].DFSLastNum
				}
				p.Icode.SetLlFlag(head.LastIcode(), icode.JxLoop)
			}
		} else {
			// Header is anything but two-way, latch decides.
			head.LoopType = cfg.LoopPostTest
			if latch.Edges[cfg.Then] == head {
				head.LoopFollow = latch.Edges[cfg.Else].DFSLastNum
			} else {
				head.LoopFollow = latch.Edges[cfg.Then].DFSLastNum
			}
			p.Icode.SetLlFlag(latch.LastIcode(), icode.JxLoop)
		}

	case latch.NodeType == cfg.NodeLoop:
		head.LoopType = cfg.LoopPostTest
		head.LoopFollow = latch.Edges[0].DFSLastNum

	case head.NodeType == cfg.NodeTwoBranch:
		// One-way latch under a two-way header: walk the dominator
		// chain from the latch until it reaches one of the header's
		// branch targets; the follow is the other one. Escaping above
		// the header means a strangely formed loop, treated as
		// endless.
		head.LoopType = cfg.LoopPreTest
		pbb := latch
		thenDfs := head.Edges[cfg.Then].DFSLastNum
		elseDfs := head.Edges[cfg.Else].DFSLastNum
		for {
			if pbb.DFSLastNum == thenDfs {
				head.LoopFollow = elseDfs
				break
			}
			if pbb.DFSLastNum == elseDfs {
				head.LoopFollow = thenDfs
				break
			}
			if pbb.DFSLastNum <= head.DFSLastNum {
				head.LoopType = cfg.LoopEndless
				findEndlessFollow(p, loopNodes, head)
				break
			}
			pbb = p.DFSLast[pbb.ImmedDom]
		}
		if pbb.DFSLastNum > head.DFSLastNum {
			p.DFSLast[head.LoopFollow].LoopHead = cfg.NoNode
		}
		p.Icode.SetLlFlag(head.LastIcode(), icode.JxLoop)

	default:
		head.LoopType = cfg.LoopEndless
		findEndlessFollow(p, loopNodes, head)
	}
}

// structLoops walks the derived sequence level by level. Each interval
// induces at most one loop: the greatest back edge into the interval's
// G1 header, accepted only when the latch sits at the same case
// nesting as the header and is not already claimed by another loop.
func structLoops(p *cfg.Proc) {
	// Back-edge counters restart with the stage so a repeated run of
	// the full pass converges on the same counts.
	for _, b := range p.Blocks {
		b.NumBackEdges = 0
	}

	for levelIdx, levelHead := range p.Derived {
		level := levelIdx + 1
		for iv := levelHead; iv != nil; iv = iv.Next {
			// Resolve the interval header down to its G1 block.
			initInt := iv
			for i := 1; i < level; i++ {
				initInt = initInt.Nodes[0].CorrespInt
			}
			intHead := initInt.Nodes[0]

			intNodes := make(map[*cfg.BB]bool)
			for _, n := range iv.Flatten(level) {
				intNodes[n] = true
			}

			// Greatest enclosing back edge, if any.
			var latch *cfg.BB
			for _, pred := range intHead.InEdges {
				if !intNodes[pred] || !isBackEdge(pred, intHead) {
					continue
				}
				if latch == nil || pred.DFSLastNum > latch.DFSLastNum {
					latch = pred
				}
			}
			if latch == nil {
				continue
			}

			if latch.CaseHead == intHead.CaseHead && latch.LoopHead == cfg.NoNode {
				intHead.LatchNode = latch.DFSLastNum
				findNodesInLoop(latch, intHead, p, intNodes)
				latch.Flags |= cfg.IsLatchNode
			}
		}
	}
}
