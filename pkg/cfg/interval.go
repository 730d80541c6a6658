package cfg

// Interval is a single-entry subgraph of one derived-sequence level:
// Nodes holds its member nodes with the header first, Next links the
// intervals of the same level in discovery order.
//
// At level 1 the members are the procedure's blocks. At level k>1 the
// members are synthetic nodes, each standing for one level-(k-1)
// interval reachable through its CorrespInt link.
type Interval struct {
	Nodes []*BB
	Next  *Interval
}

// Header returns the interval's header node.
func (iv *Interval) Header() *BB {
	return iv.Nodes[0]
}

// Contains reports whether b is a member of the interval.
func (iv *Interval) Contains(b *BB) bool {
	for _, n := range iv.Nodes {
		if n == b {
			return true
		}
	}
	return false
}

// Flatten resolves the interval at the given derived level back to its
// G1 member blocks, in discovery order.
func (iv *Interval) Flatten(level int) []*BB {
	if level == 1 {
		out := make([]*BB, len(iv.Nodes))
		copy(out, iv.Nodes)
		return out
	}
	var out []*BB
	for _, n := range iv.Nodes {
		out = append(out, n.CorrespInt.Flatten(level-1)...)
	}
	return out
}

// Len returns the number of intervals on the level headed by iv.
func (iv *Interval) Len() int {
	n := 0
	for i := iv; i != nil; i = i.Next {
		n++
	}
	return n
}

// DerSeq is the derived sequence of interval levels. Element k is the
// first interval of level k+1; the rest of the level hangs off Next.
type DerSeq []*Interval

// DeriveSequence computes the interval derived sequence G1, G2, ...
// of the procedure and stores it on p.Derived. The graph must already
// carry DFS numbering. Derivation stops at the level whose interval
// partition no longer collapses anything (one interval per node), so
// on a reducible graph the final level is a single interval covering
// the whole procedure.
func (p *Proc) DeriveSequence() DerSeq {
	if p.DFSLast == nil {
		panic("cfg: DeriveSequence before NumberDFS")
	}

	nodes := make([]*BB, len(p.DFSLast))
	copy(nodes, p.DFSLast)

	var seq DerSeq
	for {
		ivs := intervalsOf(nodes)
		for i := 0; i < len(ivs)-1; i++ {
			ivs[i].Next = ivs[i+1]
		}
		seq = append(seq, ivs[0])

		if len(ivs) == len(nodes) {
			break
		}
		nodes = collapse(nodes, ivs)
	}

	p.Derived = seq
	return seq
}

// intervalsOf partitions the given graph nodes (entry first) into
// intervals. Iteration follows the node order, which keeps interval
// discovery and member order deterministic.
func intervalsOf(nodes []*BB) []*Interval {
	member := make(map[*BB]*Interval, len(nodes))
	queued := make(map[*BB]bool, len(nodes))

	headers := []*BB{nodes[0]}
	queued[nodes[0]] = true

	var out []*Interval
	for len(headers) > 0 {
		h := headers[0]
		headers = headers[1:]
		if member[h] != nil {
			// Absorbed into an earlier interval after being queued.
			continue
		}

		iv := &Interval{Nodes: []*BB{h}}
		member[h] = iv

		// Grow: claim any node all of whose predecessors are already
		// inside this interval.
		for changed := true; changed; {
			changed = false
			for _, n := range nodes {
				if member[n] != nil || len(n.InEdges) == 0 {
					continue
				}
				all := true
				for _, pred := range n.InEdges {
					if member[pred] != iv {
						all = false
						break
					}
				}
				if all {
					iv.Nodes = append(iv.Nodes, n)
					member[n] = iv
					changed = true
				}
			}
		}

		// Queue new headers: unclaimed nodes with an in-edge from this
		// interval.
		for _, n := range nodes {
			if member[n] != nil || queued[n] {
				continue
			}
			for _, pred := range n.InEdges {
				if member[pred] == iv {
					headers = append(headers, n)
					queued[n] = true
					break
				}
			}
		}

		out = append(out, iv)
	}

	// Record interval membership on the nodes themselves. For a
	// synthetic node this link was fixed at creation (it names the
	// interval the node collapses, one level down) and stays.
	for _, n := range nodes {
		if n.CorrespInt == nil {
			n.CorrespInt = member[n]
		}
	}

	return out
}

// collapse builds the next derived graph: one synthetic node per
// interval, edges induced by inter-interval edges of the current graph.
func collapse(nodes []*BB, ivs []*Interval) []*BB {
	member := make(map[*BB]*Interval, len(nodes))
	for _, iv := range ivs {
		for _, n := range iv.Nodes {
			member[n] = iv
		}
	}

	rep := make(map[*Interval]*BB, len(ivs))
	next := make([]*BB, 0, len(ivs))
	for _, iv := range ivs {
		sn := newBB(NodeFall)
		sn.CorrespInt = iv
		rep[iv] = sn
		next = append(next, sn)
	}

	for _, n := range nodes {
		for _, s := range n.Edges {
			src, dst := rep[member[n]], rep[member[s]]
			if src == dst || hasEdge(src, dst) {
				continue
			}
			src.Edges = append(src.Edges, dst)
			dst.InEdges = append(dst.InEdges, src)
		}
	}

	return next
}

func hasEdge(src, dst *BB) bool {
	for _, s := range src.Edges {
		if s == dst {
			return true
		}
	}
	return false
}
