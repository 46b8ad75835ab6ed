package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/utkarsh5026/shardpool/pool"
)

func runFilter(t *testing.T, spec string, doc Document) ([]any, error) {
	t.Helper()
	fn, err := Filters.Build(spec)
	if err != nil {
		t.Fatalf("Build(%q): %v", spec, err)
	}
	return fn(context.Background(), doc, pool.WorkerInfo{})
}

func TestWordCountFilter(t *testing.T) {
	tests := []struct {
		name   string
		spec   string
		text   string
		accept bool
	}{
		{"inside range", "wordcount 2 3", "one two", true},
		{"upper edge inclusive", "wordcount 2 3", "one, two; three.", true},
		{"below", "wordcount 2 3", "one", false},
		{"above", "wordcount 2 3", "one two three four", false},
		{"no upper bound", "wordcount 1", "a b c d e f g h i j k l", true},
		{"empty text", "wordcount 1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{ID: "d", Text: tt.text}
			out, err := runFilter(t, tt.spec, doc)
			if tt.accept {
				if err != nil {
					t.Fatalf("expected acceptance, got %v", err)
				}
				if len(out) != 1 || out[0].(Document).ID != "d" {
					t.Errorf("expected the document on channel 0, got %v", out)
				}
				return
			}
			if !errors.Is(err, ErrRejected) {
				t.Errorf("expected ErrRejected, got %v", err)
			}
		})
	}
}

func TestWordCountFilter_Arguments(t *testing.T) {
	for _, spec := range []string{"wordcount", "wordcount 5 5", "wordcount 6 2", "wordcount 1 x", "wordcount 1 2 3"} {
		t.Run(spec, func(t *testing.T) {
			if _, err := Filters.Build(spec); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestContainsFilter(t *testing.T) {
	doc := Document{ID: "d", Text: "Go makes Concurrency simple"}

	if _, err := runFilter(t, "contains rust concurrency", doc); err != nil {
		t.Errorf("expected acceptance, got %v", err)
	}
	if _, err := runFilter(t, "contains rust java", doc); !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
	if _, err := runFilter(t, "contains concur", doc); !errors.Is(err, ErrRejected) {
		t.Errorf("partial words must not match, got %v", err)
	}
	if _, err := Filters.Build("contains"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestChain(t *testing.T) {
	count, _ := Filters.Build("wordcount 2 4")
	term, _ := Filters.Build("contains fox")
	chain := Chain(count, term)

	tests := []struct {
		text   string
		accept bool
	}{
		{"quick brown fox", true},
		{"quick brown dog", false},
		{"fox", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			out, err := chain(context.Background(), Document{ID: "x", Text: tt.text}, pool.WorkerInfo{})
			if tt.accept && (err != nil || len(out) != 1) {
				t.Errorf("expected acceptance, got %v %v", out, err)
			}
			if !tt.accept && !errors.Is(err, ErrRejected) {
				t.Errorf("expected ErrRejected, got %v", err)
			}
		})
	}
}

func TestWords(t *testing.T) {
	got := words("State-of-the-art, GO  1.24 -- rocks!")
	want := []string{"state-of-the-art", "go", "1", "24", "rocks"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
