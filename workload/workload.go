// Package workload generates deterministic allocation workloads. A
// workload is a script of alloc and free operations whose leaked byte
// count is known up front, so a unit replaying it can be checked against
// what the ledger reports.
package workload

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	mrand "math/rand"

	"github.com/weiihann/heapunit/ledger"
)

// Operation is a single step of a workload script.
type Operation struct {
	Op   string `json:"op"`
	ID   int    `json:"id"`
	Size int    `json:"size,omitempty"`
}

// Script is an ordered list of operations.
type Script []Operation

// Summary contains statistics about a generated workload.
type Summary struct {
	TotalOperations int
	Allocs          int
	Frees           int
	TotalBytes      int64
	LeakedBytes     int64
}

// Config controls workload generation parameters.
type Config struct {
	NumAllocs    int
	MinSize      int
	MaxSize      int
	Distribution string
	// LeakEvery leaves every n-th allocation unfreed; 0 frees everything.
	LeakEvery int
	Seed      int64
}

// Generator produces deterministic workloads from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate returns a script and its Summary. Frees are interleaved with
// allocations in random order; leaked blocks are never freed.
func (g *Generator) Generate() (Script, Summary) {
	var (
		script  Script
		summary Summary
		live    []int
	)

	sizes := g.sizeDistribution()

	for id, size := range sizes {
		script = append(script, Operation{Op: "alloc", ID: id, Size: size})
		summary.Allocs++
		summary.TotalBytes += int64(size)

		if g.cfg.LeakEvery > 0 && (id+1)%g.cfg.LeakEvery == 0 {
			summary.LeakedBytes += int64(size)

			continue
		}

		live = append(live, id)

		// Free a random live block about half the time.
		if g.rng.Intn(2) == 0 {
			i := g.rng.Intn(len(live))
			script = append(script, Operation{Op: "free", ID: live[i]})
			summary.Frees++
			live = append(live[:i], live[i+1:]...)
		}
	}

	for _, id := range live {
		script = append(script, Operation{Op: "free", ID: id})
		summary.Frees++
	}

	summary.TotalOperations = len(script)

	return script, summary
}

// Replay executes s against l.
func Replay(l *ledger.Ledger, s Script) error {
	blocks := make(map[int]*ledger.Block)

	for i, op := range s {
		switch op.Op {
		case "alloc":
			if _, ok := blocks[op.ID]; ok {
				return fmt.Errorf("op %d: block %d already allocated", i, op.ID)
			}

			blocks[op.ID] = l.Alloc(op.Size)

		case "free":
			b, ok := blocks[op.ID]
			if !ok {
				return fmt.Errorf("op %d: free of unknown block %d", i, op.ID)
			}

			b.Free()
			delete(blocks, op.ID)

		default:
			return fmt.Errorf("op %d: unknown op %q", i, op.Op)
		}
	}

	return nil
}

// Encode writes s as JSONL.
func (s Script) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, op := range s {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("encode %s %d: %w", op.Op, op.ID, err)
		}
	}

	return nil
}

// Decode reads a JSONL script from r.
func Decode(r io.Reader) (Script, error) {
	var s Script

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++

		if len(scanner.Bytes()) == 0 {
			continue
		}

		var op Operation
		if err := json.Unmarshal(scanner.Bytes(), &op); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		s = append(s, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	return s, nil
}

func (g *Generator) sizeDistribution() []int {
	dist := make([]int, max(0, g.cfg.NumAllocs))
	minSize := max(1, g.cfg.MinSize)
	maxSize := max(minSize, g.cfg.MaxSize)

	switch g.cfg.Distribution {
	case "power-law":
		alpha := 1.5
		for i := range dist {
			u := g.rng.Float64()
			size := float64(minSize) / math.Pow(1-u, 1/alpha)
			if size > float64(maxSize) {
				size = float64(maxSize)
			}
			dist[i] = max(minSize, int(size))
		}

	case "exponential":
		lambda := math.Log(2) / math.Max(1, float64(maxSize/4))
		for i := range dist {
			u := g.rng.Float64()
			size := -math.Log(1-u) / lambda
			clamped := math.Max(
				float64(minSize),
				math.Min(size, float64(maxSize)),
			)
			dist[i] = int(clamped)
		}

	default:
		// Unknown distributions fall back to uniform.
		rng := maxSize - minSize + 1
		for i := range dist {
			dist[i] = minSize + g.rng.Intn(rng)
		}
	}

	return dist
}
