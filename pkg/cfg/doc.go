package cfg

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gitmesam/dcc/pkg/icode"
)

// BlockDoc is the flat document form of one basic block. Successors
// are indices into the enclosing ProcDoc's block list, in edge order
// (THEN before ELSE for two-way blocks).
type BlockDoc struct {
	Type   NodeType `json:"type" msgpack:"type"`
	Start  int      `json:"start" msgpack:"start"`
	Length int      `json:"length" msgpack:"length"`
	NumHL  int      `json:"num_hl,omitempty" msgpack:"num_hl,omitempty"`
	Succs  []int    `json:"succs,omitempty" msgpack:"succs,omitempty"`

	// Cond is the conditional expression of the block's final
	// instruction, present on two-way blocks.
	Cond *icode.CondExpr `json:"cond,omitempty" msgpack:"cond,omitempty"`
}

// ProcDoc is the on-disk form of a procedure CFG: the input of the
// dcc CLI. Block 0 is the procedure entry.
type ProcDoc struct {
	Name      string     `json:"name" msgpack:"name"`
	NumIcodes int        `json:"num_icodes" msgpack:"num_icodes"`
	Blocks    []BlockDoc `json:"blocks" msgpack:"blocks"`
}

// Build materializes the document into a Proc with a fresh icode
// store, wired edges and installed conditional expressions. The graph
// is not DFS-numbered yet.
func (d *ProcDoc) Build() (*Proc, error) {
	if len(d.Blocks) == 0 {
		return nil, fmt.Errorf("procedure %q has no blocks", d.Name)
	}

	n := d.NumIcodes
	for _, bd := range d.Blocks {
		if end := bd.Start + bd.Length; end > n {
			n = end
		}
	}

	p := NewProc(d.Name, icode.NewStore(n))
	for i, bd := range d.Blocks {
		if bd.Length <= 0 {
			return nil, fmt.Errorf("block %d: non-positive length %d", i, bd.Length)
		}
		b := p.NewBlock(bd.Type, bd.Start, bd.Length)
		b.NumHL = bd.NumHL
		if bd.Cond != nil {
			p.Icode.SetCond(b.LastIcode(), bd.Cond)
		}
	}

	for i, bd := range d.Blocks {
		if bd.Type == NodeTwoBranch && len(bd.Succs) != 2 {
			return nil, fmt.Errorf("block %d: two-way block needs 2 successors, has %d", i, len(bd.Succs))
		}
		for _, s := range bd.Succs {
			if s < 0 || s >= len(d.Blocks) {
				return nil, fmt.Errorf("block %d: successor %d out of range", i, s)
			}
			p.AddEdge(p.Blocks[i], p.Blocks[s])
		}
	}

	return p, nil
}

// LoadProc reads a msgpack-encoded ProcDoc from path.
func LoadProc(path string) (*ProcDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading procedure: %w", err)
	}
	var d ProcDoc
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding procedure: %w", err)
	}
	return &d, nil
}

// SaveProc writes the msgpack encoding of the document to path.
func SaveProc(path string, d *ProcDoc) error {
	data, err := msgpack.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding procedure: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing procedure: %w", err)
	}
	return nil
}

// BlockResult is the exported annotation set of one block after
// structuring. Index fields use the DFS-last domain; sentinel values
// are exported as-is.
type BlockResult struct {
	Index      int      `json:"index" msgpack:"index"`
	Type       NodeType `json:"type" msgpack:"type"`
	DFSFirst   int      `json:"dfs_first" msgpack:"dfs_first"`
	DFSLast    int      `json:"dfs_last" msgpack:"dfs_last"`
	ImmedDom   int      `json:"immed_dom" msgpack:"immed_dom"`
	LoopType   LoopType `json:"loop_type,omitempty" msgpack:"loop_type,omitempty"`
	LoopHead   int      `json:"loop_head" msgpack:"loop_head"`
	LatchNode  int      `json:"latch_node" msgpack:"latch_node"`
	LoopFollow int      `json:"loop_follow" msgpack:"loop_follow"`
	CaseHead   int      `json:"case_head" msgpack:"case_head"`
	CaseTail   int      `json:"case_tail" msgpack:"case_tail"`
	IfFollow   int      `json:"if_follow" msgpack:"if_follow"`
	Invalid    bool     `json:"invalid,omitempty" msgpack:"invalid,omitempty"`
	Latch      bool     `json:"latch,omitempty" msgpack:"latch,omitempty"`
	Cond       string   `json:"cond,omitempty" msgpack:"cond,omitempty"`
}

// Result is the structured-annotation report for one procedure.
type Result struct {
	Name   string        `json:"name" msgpack:"name"`
	Levels int           `json:"levels" msgpack:"levels"`
	Blocks []BlockResult `json:"blocks" msgpack:"blocks"`
}

// ResultOf collects the structuring annotations of every block, in
// declaration order.
func ResultOf(p *Proc) *Result {
	r := &Result{Name: p.Name, Levels: len(p.Derived)}
	for i, b := range p.Blocks {
		br := BlockResult{
			Index:      i,
			Type:       b.NodeType,
			DFSFirst:   b.DFSFirstNum,
			DFSLast:    b.DFSLastNum,
			ImmedDom:   b.ImmedDom,
			LoopType:   b.LoopType,
			LoopHead:   b.LoopHead,
			LatchNode:  b.LatchNode,
			LoopFollow: b.LoopFollow,
			CaseHead:   b.CaseHead,
			CaseTail:   b.CaseTail,
			IfFollow:   b.IfFollow,
			Invalid:    b.Invalid(),
			Latch:      b.Flags&IsLatchNode != 0,
		}
		if b.NodeType == NodeTwoBranch && !b.Invalid() {
			if c := b.Cond(p.Icode); c != nil {
				br.Cond = c.String()
			}
		}
		r.Blocks = append(r.Blocks, br)
	}
	return r
}
