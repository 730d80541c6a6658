package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gitmesam/dcc/internal/config"
	"github.com/gitmesam/dcc/internal/log"
	"github.com/gitmesam/dcc/pkg/cache"
	"github.com/gitmesam/dcc/pkg/cfg"
	"github.com/gitmesam/dcc/pkg/structure"
)

// structureCmd represents the structure command
var structureCmd = &cobra.Command{
	Use:   "structure <proc file>",
	Short: "Run the structuring pass over a procedure file",
	Long: `Loads a serialized procedure CFG, recovers its control structures
(loops, cases, ifs, compound conditions) and prints the per-block
annotations. Input is msgpack by default, JSON with --json-in.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonIn, _ := cmd.Flags().GetBool("json-in")
		jsonOut, _ := cmd.Flags().GetBool("json")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		return runStructure(args[0], jsonIn, jsonOut, noCache)
	},
}

func init() {
	structureCmd.Flags().Bool("json-in", false, "Read the procedure as JSON instead of msgpack")
	structureCmd.Flags().BoolP("json", "j", false, "Output annotations as JSON")
	structureCmd.Flags().Bool("no-cache", false, "Skip the result cache")
}

func runStructure(path string, jsonIn, jsonOut, noCache bool) error {
	conf, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.Default()
	if conf.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if conf.Output == config.FormatJSON {
		jsonOut = true
	}
	useCache := !noCache && !conf.NoCache

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading procedure: %w", err)
	}

	var results *cache.ResultCache
	var key string
	if useCache {
		results = cache.New(conf.CacheSize)
		if err := results.LoadFile(conf.CacheDir); err != nil {
			logger.Warn("result cache unreadable, starting fresh", "error", err)
		}
		key = cache.Key(data)
		if r, found := results.Get(key); found {
			logger.Debug("cache hit", "proc", r.Name, "key", key[:12])
			return render(r, jsonOut)
		}
	}

	doc, err := decodeProc(data, jsonIn)
	if err != nil {
		return err
	}

	p, err := doc.Build()
	if err != nil {
		return fmt.Errorf("building CFG: %w", err)
	}

	p.NumberDFS()
	p.DeriveSequence()
	logger.Debug("derived sequence ready", "proc", p.Name, "levels", len(p.Derived))

	structure.Structure(p)

	r := cfg.ResultOf(p)
	if useCache {
		results.Set(key, r)
		if err := results.SaveFile(conf.CacheDir); err != nil {
			logger.Warn("could not persist result cache", "error", err)
		}
	}

	return render(r, jsonOut)
}

func decodeProc(data []byte, jsonIn bool) (*cfg.ProcDoc, error) {
	var doc cfg.ProcDoc
	if jsonIn {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding procedure JSON: %w", err)
		}
		return &doc, nil
	}
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding procedure: %w", err)
	}
	return &doc, nil
}

func render(r *cfg.Result, jsonOut bool) error {
	if jsonOut {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("procedure %s (%d blocks, %d derived levels)\n", r.Name, len(r.Blocks), r.Levels)
	for _, b := range r.Blocks {
		if b.Invalid {
			fmt.Printf("  [%d] %-12s (merged)\n", b.Index, b.Type)
			continue
		}
		fmt.Printf("  [%d] %-12s dfs=%d idom=%s", b.Index, b.Type, b.DFSLast, node(b.ImmedDom))
		if b.LoopType != cfg.LoopNone {
			fmt.Printf(" loop=%s latch=%s follow=%s", b.LoopType, node(b.LatchNode), node(b.LoopFollow))
		}
		if b.CaseHead != cfg.NoNode {
			fmt.Printf(" case=%s", node(b.CaseHead))
		}
		if b.CaseTail != cfg.NoNode {
			fmt.Printf(" tail=%s", node(b.CaseTail))
		}
		if b.IfFollow != cfg.NoNode {
			fmt.Printf(" ifFollow=%s", node(b.IfFollow))
		}
		if b.Latch {
			fmt.Print(" latch")
		}
		if b.Cond != "" {
			fmt.Printf(" cond=%q", b.Cond)
		}
		fmt.Println()
	}
	return nil
}

// node formats a DFS-last index, mapping the sentinels.
func node(n int) string {
	switch n {
	case cfg.NoNode:
		return "-"
	case cfg.NoFollow:
		return "none"
	default:
		return fmt.Sprintf("%d", n)
	}
}
