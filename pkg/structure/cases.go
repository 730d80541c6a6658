package structure

import "github.com/gitmesam/dcc/pkg/cfg"

// isSuccessor reports whether the block at DFS-last index s is a
// direct successor of the header at index h.
func isSuccessor(s, h int, p *cfg.Proc) bool {
	for _, succ := range p.DFSLast[h].Edges {
		if succ.DFSLastNum == s {
			return true
		}
	}
	return false
}

// tagNodesInCase recursively tags descendants of a case header as case
// members: a node joins when it is not the exit, is not itself a
// multi-way header, and its immediate dominator is already a member.
// The traversal marker keeps the recursion from revisiting nodes.
func tagNodesInCase(b *cfg.BB, members *nodeList, head, tail int) {
	b.Traversed = cfg.TravCase
	current := b.DFSLastNum
	if current == tail || b.NodeType == cfg.NodeMultiBranch || !members.contains(b.ImmedDom) {
		return
	}
	*members = append(*members, current)
	b.CaseHead = head
	for _, succ := range b.Edges {
		if succ.Traversed != cfg.TravCase {
			tagNodesInCase(succ, members, head, tail)
		}
	}
}

// structCases assigns case head and tail annotations for every
// multi-way header. Headers are visited in reverse DFS-last order so
// inner case constructs are structured before enclosing ones.
func structCases(p *cfg.Proc) {
	for i := p.NumBlocks() - 1; i >= 0; i-- {
		header := p.DFSLast[i]
		if header.NodeType != cfg.NodeMultiBranch {
			continue
		}

		// The case exit is a node immediately dominated by the header
		// without being one of its direct successors; among candidates
		// the one with the most in-edges wins, first encountered on a
		// tie.
		exitNode := cfg.NoNode
		for j := i + 2; j < p.NumBlocks(); j++ {
			if isSuccessor(j, i, p) || p.DFSLast[j].ImmedDom != i {
				continue
			}
			if exitNode == cfg.NoNode {
				exitNode = j
			} else if len(p.DFSLast[exitNode].InEdges) < len(p.DFSLast[j].InEdges) {
				exitNode = j
			}
		}
		header.CaseTail = exitNode

		members := nodeList{i}
		header.CaseHead = i
		for _, succ := range header.Edges {
			tagNodesInCase(succ, &members, i, exitNode)
		}
		if exitNode != cfg.NoNode {
			p.DFSLast[exitNode].CaseHead = i
		}
	}
}
