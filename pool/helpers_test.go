package pool

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/utkarsh5026/shardpool/chunk"
)

// queueVariant defines a test configuration for an input queue implementation
type queueVariant struct {
	name string
	opts []Option
}

func queueVariants() []queueVariant {
	return []queueVariant{
		{name: "Channel"},
		{name: "Ring", opts: []Option{WithRingQueue()}},
	}
}

// runVariantTest runs fn once per input queue implementation
func runVariantTest(t *testing.T, fn func(t *testing.T, v queueVariant)) {
	t.Helper()
	for _, v := range queueVariants() {
		t.Run(v.name, func(t *testing.T) {
			fn(t, v)
		})
	}
}

func echo(_ context.Context, unit int, _ WorkerInfo) ([]any, error) {
	return []any{unit}, nil
}

func newTestPool[T any](t *testing.T, fn TransformFunc[T], extensions []string, opts ...Option) (*Pool[T], string) {
	t.Helper()
	dir := t.TempDir()
	p, err := New(fn, dir, "out", extensions, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, dir
}

// runUnits starts p, feeds every unit and closes it.
func runUnits[T any](t *testing.T, p *Pool[T], units []T) []int {
	t.Helper()
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, u := range units {
		if err := p.Feed(ctx, u); err != nil {
			t.Fatalf("Feed(%v): %v", u, err)
		}
	}
	counts, err := p.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	return counts
}

func intRange(n int) []int {
	units := make([]int, n)
	for i := range units {
		units[i] = i
	}
	return units
}

// readInts reads every record of files as an int, sorted.
func readInts(t *testing.T, files []string) []int {
	t.Helper()
	if len(files) == 0 {
		return nil
	}
	r, err := chunk.NewReader[int](files)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	var got []int
	for v := range r.Records() {
		got = append(got, v)
	}
	sort.Ints(got)
	return got
}

func countRecords(t *testing.T, path string) int {
	t.Helper()
	r, err := chunk.NewReader[any]([]string{path})
	if err != nil {
		t.Fatalf("NewReader(%s): %v", path, err)
	}
	defer r.Close()
	n, err := r.Count()
	if err != nil {
		t.Fatalf("Count(%s): %v", path, err)
	}
	return n
}

// shardFiles lists leftover worker shard files in dir.
func shardFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var shards []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "."+shardExtension) {
			shards = append(shards, filepath.Join(dir, e.Name()))
		}
	}
	return shards
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
