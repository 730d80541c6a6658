package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitmesam/dcc/pkg/cfg"
	"github.com/gitmesam/dcc/pkg/icode"
)

// graph is a small test harness for assembling procedures by name.
type graph struct {
	p      *cfg.Proc
	blocks map[string]*cfg.BB
	next   int
}

func newGraph(name string) *graph {
	return &graph{
		p:      cfg.NewProc(name, icode.NewStore(64)),
		blocks: make(map[string]*cfg.BB),
	}
}

// block adds a one-instruction block. Blocks are laid out one icode
// slot apart so every block has a distinct final instruction.
func (g *graph) block(name string, typ cfg.NodeType) *cfg.BB {
	b := g.p.NewBlock(typ, g.next, 1)
	g.next++
	g.blocks[name] = b
	return b
}

// edge wires src -> dst. Call order fixes THEN before ELSE on two-way
// blocks.
func (g *graph) edge(src, dst string) {
	g.p.AddEdge(g.blocks[src], g.blocks[dst])
}

// cond installs a conditional expression on the block's final
// instruction and marks it a single high-level instruction.
func (g *graph) cond(name string, e *icode.CondExpr) {
	b := g.blocks[name]
	b.NumHL = 1
	g.p.Icode.SetCond(b.LastIcode(), e)
}

// run numbers, derives and structures the assembled procedure.
func (g *graph) run() *cfg.Proc {
	g.p.NumberDFS()
	g.p.DeriveSequence()
	Structure(g.p)
	return g.p
}

func (g *graph) dfs(name string) int {
	return g.blocks[name].DFSLastNum
}

// preTestLoop builds the diamond with a back edge: A -> B -> C -> D,
// C -> B, and the B -> D bypass.
func preTestLoop() *graph {
	g := newGraph("pre_test")
	g.block("A", cfg.NodeFall)
	g.block("B", cfg.NodeTwoBranch)
	g.block("C", cfg.NodeTwoBranch)
	g.block("D", cfg.NodeReturn)
	g.edge("A", "B")
	g.edge("B", "C") // THEN
	g.edge("B", "D") // ELSE
	g.edge("C", "B") // back edge
	g.edge("C", "D")
	return g
}

func TestStructure_PreTestLoop(t *testing.T) {
	g := preTestLoop()
	p := g.run()

	b := g.blocks["B"]
	assert.Equal(t, cfg.LoopPreTest, b.LoopType)
	assert.Equal(t, g.dfs("C"), b.LatchNode)
	assert.Equal(t, g.dfs("D"), b.LoopFollow)
	assert.NotZero(t, p.Icode.GetLlFlag(b.LastIcode())&icode.JxLoop,
		"loop header must carry the loop-jump flag")
	assert.NotZero(t, g.blocks["C"].Flags&cfg.IsLatchNode)
	assert.Equal(t, g.dfs("B"), g.blocks["C"].LoopHead)
}

func TestStructure_PostTestLoop(t *testing.T) {
	g := newGraph("post_test")
	g.block("A", cfg.NodeFall)
	g.block("B", cfg.NodeFall)
	g.block("C", cfg.NodeTwoBranch)
	g.block("D", cfg.NodeReturn)
	g.edge("A", "B")
	g.edge("B", "C")
	g.edge("C", "B") // THEN, back edge
	g.edge("C", "D") // ELSE
	p := g.run()

	b := g.blocks["B"]
	assert.Equal(t, cfg.LoopPostTest, b.LoopType)
	assert.Equal(t, g.dfs("C"), b.LatchNode)
	assert.Equal(t, g.dfs("D"), b.LoopFollow)
	assert.NotZero(t, p.Icode.GetLlFlag(g.blocks["C"].LastIcode())&icode.JxLoop,
		"loop latch must carry the loop-jump flag")
}

func TestStructure_EndlessLoop(t *testing.T) {
	g := newGraph("endless")
	g.block("A", cfg.NodeFall)
	g.block("B", cfg.NodeFall)
	g.block("C", cfg.NodeOneBranch)
	g.edge("A", "B")
	g.edge("B", "C")
	g.edge("C", "B")
	g.run()

	b := g.blocks["B"]
	assert.Equal(t, cfg.LoopEndless, b.LoopType)
	assert.Equal(t, cfg.NoFollow, b.LoopFollow)
	assert.Equal(t, g.dfs("C"), b.LatchNode)
}

func TestStructure_MultiWayCase(t *testing.T) {
	g := newGraph("case")
	g.block("H", cfg.NodeMultiBranch)
	g.block("C1", cfg.NodeOneBranch)
	g.block("C2", cfg.NodeOneBranch)
	g.block("C3", cfg.NodeOneBranch)
	g.block("X", cfg.NodeReturn)
	g.edge("H", "C1")
	g.edge("H", "C2")
	g.edge("H", "C3")
	g.edge("C1", "X")
	g.edge("C2", "X")
	g.edge("C3", "X")
	g.run()

	h := g.blocks["H"]
	assert.Equal(t, g.dfs("X"), h.CaseTail)
	for _, name := range []string{"C1", "C2", "C3", "X"} {
		assert.Equal(t, g.dfs("H"), g.blocks[name].CaseHead, "caseHead of %s", name)
	}
}

func TestStructure_CompoundOr(t *testing.T) {
	g := newGraph("compound_or")
	g.block("P", cfg.NodeTwoBranch)
	g.block("T", cfg.NodeTwoBranch)
	g.block("X", cfg.NodeReturn)
	g.block("E", cfg.NodeReturn)
	g.edge("P", "T") // THEN
	g.edge("P", "E") // ELSE
	g.edge("T", "X") // THEN
	g.edge("T", "E") // ELSE, shared with P
	g.cond("P", icode.Rel("a", icode.OpLess, "b"))
	g.cond("T", icode.Rel("c", icode.OpEqual, "d"))
	p := g.run()

	pb, tb, eb, xb := g.blocks["P"], g.blocks["T"], g.blocks["E"], g.blocks["X"]
	assert.True(t, tb.Invalid(), "absorbed block must be invalidated")
	assert.Same(t, xb, pb.Edges[cfg.Then])
	assert.Same(t, eb, pb.Edges[cfg.Else])
	assert.Equal(t, "(a < b || c == d)", pb.Cond(p.Icode).String())
	assert.Nil(t, p.Icode.Cond(tb.LastIcode()), "absorbed condition slot must be cleared")
	assert.Len(t, eb.InEdges, 1)
	assert.Same(t, pb, eb.InEdges[0])
	assert.Len(t, xb.InEdges, 1)
	assert.Same(t, pb, xb.InEdges[0])
}

func TestStructure_CompoundAnd(t *testing.T) {
	g := newGraph("compound_and")
	g.block("P", cfg.NodeTwoBranch)
	g.block("T", cfg.NodeReturn)
	g.block("E", cfg.NodeTwoBranch)
	g.block("F", cfg.NodeReturn)
	g.edge("P", "T") // THEN
	g.edge("P", "E") // ELSE
	g.edge("E", "T") // THEN, shared with P
	g.edge("E", "F") // ELSE
	g.cond("P", icode.Rel("a", icode.OpLess, "b"))
	g.cond("E", icode.Rel("c", icode.OpGreater, "d"))
	p := g.run()

	pb, eb, fb, tb := g.blocks["P"], g.blocks["E"], g.blocks["F"], g.blocks["T"]
	assert.True(t, eb.Invalid())
	assert.Same(t, tb, pb.Edges[cfg.Then])
	assert.Same(t, fb, pb.Edges[cfg.Else])
	assert.Equal(t, "(a < b && c > d)", pb.Cond(p.Icode).String())
	assert.Len(t, tb.InEdges, 1)
	assert.Same(t, pb, tb.InEdges[0])
}

func TestStructure_CompoundInvertedPatterns(t *testing.T) {
	t.Run("not_and", func(t *testing.T) {
		// !X && Y: THEN neighbor jumps straight into P's ELSE arm.
		g := newGraph("compound_not_and")
		g.block("P", cfg.NodeTwoBranch)
		g.block("T", cfg.NodeTwoBranch)
		g.block("E", cfg.NodeReturn)
		g.block("X", cfg.NodeReturn)
		g.edge("P", "T") // THEN
		g.edge("P", "E") // ELSE
		g.edge("T", "E") // THEN, shared
		g.edge("T", "X") // ELSE
		g.cond("P", icode.Rel("a", icode.OpLess, "b"))
		g.cond("T", icode.Rel("c", icode.OpEqual, "d"))
		p := g.run()

		pb := g.blocks["P"]
		assert.True(t, g.blocks["T"].Invalid())
		assert.Same(t, g.blocks["E"], pb.Edges[cfg.Then])
		assert.Same(t, g.blocks["X"], pb.Edges[cfg.Else])
		assert.Equal(t, "(a >= b && c == d)", pb.Cond(p.Icode).String())
	})

	t.Run("not_or", func(t *testing.T) {
		// !X || Y: ELSE neighbor falls back into P's THEN arm.
		g := newGraph("compound_not_or")
		g.block("P", cfg.NodeTwoBranch)
		g.block("T", cfg.NodeReturn)
		g.block("E", cfg.NodeTwoBranch)
		g.block("X", cfg.NodeReturn)
		g.edge("P", "T") // THEN
		g.edge("P", "E") // ELSE
		g.edge("E", "X") // THEN
		g.edge("E", "T") // ELSE, shared
		g.cond("P", icode.Rel("a", icode.OpLessEqual, "b"))
		g.cond("E", icode.Rel("c", icode.OpNotEqual, "d"))
		p := g.run()

		pb := g.blocks["P"]
		assert.True(t, g.blocks["E"].Invalid())
		assert.Same(t, g.blocks["X"], pb.Edges[cfg.Then])
		assert.Same(t, g.blocks["T"], pb.Edges[cfg.Else])
		assert.Equal(t, "(a > b || c != d)", pb.Cond(p.Icode).String())
	})
}

// nestedIf builds H branching to I1/I2 with an inner two-way on the I1
// side; every arm converges on F.
func nestedIf() *graph {
	g := newGraph("nested_if")
	g.block("H", cfg.NodeTwoBranch)
	g.block("I1", cfg.NodeTwoBranch)
	g.block("I2", cfg.NodeFall)
	g.block("J1", cfg.NodeFall)
	g.block("J2", cfg.NodeFall)
	g.block("F", cfg.NodeReturn)
	g.edge("H", "I1")
	g.edge("H", "I2")
	g.edge("I1", "J1")
	g.edge("I1", "J2")
	g.edge("J1", "F")
	g.edge("J2", "F")
	g.edge("I2", "F")
	return g
}

func TestStructure_NestedIfSharedFollow(t *testing.T) {
	g := nestedIf()
	g.run()

	assert.Equal(t, g.dfs("F"), g.blocks["H"].IfFollow)
	assert.Equal(t, g.dfs("F"), g.blocks["I1"].IfFollow,
		"inner if without a qualifying follow shares the outer one")
}

// nestedLoops exercises a level-2 derived sequence: an inner post-test
// loop C/D inside an outer loop headed at B and latched at E.
func nestedLoops() *graph {
	g := newGraph("nested_loops")
	g.block("A", cfg.NodeFall)
	g.block("B", cfg.NodeFall)
	g.block("C", cfg.NodeFall)
	g.block("D", cfg.NodeTwoBranch)
	g.block("E", cfg.NodeTwoBranch)
	g.block("F", cfg.NodeReturn)
	g.edge("A", "B")
	g.edge("B", "C")
	g.edge("C", "D")
	g.edge("D", "C") // inner back edge
	g.edge("D", "E")
	g.edge("E", "B") // outer back edge
	g.edge("E", "F")
	return g
}

func TestStructure_NestedLoops(t *testing.T) {
	g := nestedLoops()
	p := g.run()

	require.GreaterOrEqual(t, len(p.Derived), 2, "outer loop needs a second derived level")

	inner := g.blocks["C"]
	assert.Equal(t, cfg.LoopPostTest, inner.LoopType)
	assert.Equal(t, g.dfs("D"), inner.LatchNode)
	assert.Equal(t, g.dfs("E"), inner.LoopFollow)

	outer := g.blocks["B"]
	assert.Equal(t, cfg.LoopPostTest, outer.LoopType)
	assert.Equal(t, g.dfs("E"), outer.LatchNode)
	assert.Equal(t, g.dfs("F"), outer.LoopFollow)

	// Inner members keep their inner loop head.
	assert.Equal(t, g.dfs("C"), g.blocks["D"].LoopHead)
	assert.Equal(t, g.dfs("B"), g.blocks["E"].LoopHead)
}

// allScenarios returns fresh copies of every scenario graph, for the
// invariant and law tests.
func allScenarios() map[string]*graph {
	m := map[string]*graph{
		"pre_test":  preTestLoop(),
		"nested_if": nestedIf(),
		"nested":    nestedLoops(),
	}

	g := newGraph("case")
	g.block("H", cfg.NodeMultiBranch)
	g.block("C1", cfg.NodeOneBranch)
	g.block("C2", cfg.NodeOneBranch)
	g.block("X", cfg.NodeReturn)
	g.edge("H", "C1")
	g.edge("H", "C2")
	g.edge("C1", "X")
	g.edge("C2", "X")
	m["case"] = g

	return m
}

func TestStructure_DominatorInvariant(t *testing.T) {
	for name, g := range allScenarios() {
		t.Run(name, func(t *testing.T) {
			p := g.run()
			for _, b := range p.Blocks {
				if b.Invalid() {
					continue
				}
				if b.ImmedDom == cfg.NoDom {
					assert.Equal(t, 0, b.DFSLastNum, "only the root may lack a dominator")
					continue
				}
				assert.Less(t, b.ImmedDom, b.DFSLastNum)
			}
		})
	}
}

func TestStructure_OneLatchPerLoop(t *testing.T) {
	for name, g := range allScenarios() {
		t.Run(name, func(t *testing.T) {
			p := g.run()
			for _, h := range p.Blocks {
				if h.LoopType == cfg.LoopNone || h.LoopHead != h.DFSLastNum {
					continue
				}
				latches := 0
				for _, b := range p.Blocks {
					if b.Flags&cfg.IsLatchNode != 0 && b.LoopHead == h.DFSLastNum {
						latches++
						assert.Equal(t, b.DFSLastNum, h.LatchNode)
					}
				}
				assert.Equal(t, 1, latches, "loop headed at %d", h.DFSLastNum)
			}
		})
	}
}

func TestStructure_IfFollowInvariant(t *testing.T) {
	for name, g := range allScenarios() {
		t.Run(name, func(t *testing.T) {
			p := g.run()
			for _, b := range p.Blocks {
				if b.Invalid() || b.NodeType != cfg.NodeTwoBranch || b.IfFollow == cfg.NoNode {
					continue
				}
				if p.Icode.GetLlFlag(b.LastIcode())&icode.JxLoop != 0 {
					continue
				}
				assert.Greater(t, b.IfFollow, b.DFSLastNum)
			}
		})
	}
}

func TestStructure_Idempotent(t *testing.T) {
	for name, g := range allScenarios() {
		t.Run(name, func(t *testing.T) {
			p := g.run()
			first := cfg.ResultOf(p)
			Structure(p)
			second := cfg.ResultOf(p)
			assert.Equal(t, first, second, "second pass must not change annotations")
		})
	}
}

// The dominator stage must not depend on whether case structuring runs.
func TestStructure_DomIndependentOfCases(t *testing.T) {
	withCases := newGraph("with")
	without := newGraph("without")
	for _, g := range []*graph{withCases, without} {
		typ := cfg.NodeMultiBranch
		if g == without {
			// Same shape, but no multi-way branch anywhere.
			typ = cfg.NodeTwoBranch
		}
		g.block("H", typ)
		g.block("L", cfg.NodeFall)
		g.block("R", cfg.NodeFall)
		g.block("X", cfg.NodeReturn)
		g.edge("H", "L")
		g.edge("H", "R")
		g.edge("L", "X")
		g.edge("R", "X")
		g.run()
	}
	for name := range withCases.blocks {
		assert.Equal(t, without.blocks[name].ImmedDom, withCases.blocks[name].ImmedDom, name)
	}
}

// Invalidating a block must not disturb annotations elsewhere.
func TestStructure_InvalidationLocality(t *testing.T) {
	g := newGraph("locality")
	g.block("A", cfg.NodeFall)
	g.block("P", cfg.NodeTwoBranch)
	g.block("T", cfg.NodeTwoBranch)
	g.block("X", cfg.NodeReturn)
	g.block("E", cfg.NodeReturn)
	g.edge("A", "P")
	g.edge("P", "T")
	g.edge("P", "E")
	g.edge("T", "X")
	g.edge("T", "E")
	g.cond("P", icode.Rel("a", icode.OpLess, "b"))
	g.cond("T", icode.Rel("c", icode.OpLess, "d"))

	g.p.NumberDFS()
	g.p.DeriveSequence()
	findImmedDom(g.p)
	structLoops(g.p)
	structIfs(g.p)

	before := make(map[*cfg.BB]int)
	for _, b := range g.p.Blocks {
		before[b] = b.ImmedDom
	}

	compoundCond(g.p)

	require.True(t, g.blocks["T"].Invalid())
	for _, b := range g.p.Blocks {
		if b == g.blocks["T"] {
			continue
		}
		assert.Equal(t, before[b], b.ImmedDom)
	}
}
