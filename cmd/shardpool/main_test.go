package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/utkarsh5026/shardpool/chunk"
	"github.com/utkarsh5026/shardpool/transform"
)

func writeCorpus(t *testing.T, dir string, docs []transform.Document) string {
	t.Helper()
	w, err := chunk.NewWriter("corpus", chunk.WithDir(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, d := range docs {
		if err := w.Write(d); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return w.Files()[0]
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func countFile(t *testing.T, path string) int {
	t.Helper()
	r, err := chunk.NewReader[json.RawMessage]([]string{path})
	if err != nil {
		t.Fatalf("NewReader(%s): %v", path, err)
	}
	defer r.Close()
	n, err := r.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestRun_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"help", []string{"help"}, 0},
		{"unknown command", []string{"bogus"}, 2},
		{"command help", []string{"filter", "-h"}, 0},
		{"missing positionals", []string{"filter", "-f", "wordcount 1"}, 2},
		{"filter without -f", []string{"filter", "in.json", "out"}, 2},
		{"split without mode", []string{"split", "in.json", "out"}, 2},
		{"keyphrase without topics", []string{"keyphrase", "in.json", "out"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, stderr := execute(t, tt.args...); code != tt.code {
				t.Errorf("expected exit code %d, got %d (%s)", tt.code, code, stderr)
			}
		})
	}
}

func TestList(t *testing.T) {
	code, stdout, _ := execute(t, "list")
	if code != 0 {
		t.Fatalf("list exited with %d", code)
	}
	for _, want := range []string{"wordcount", "contains", "default", "keyphrase", "MIN [MAX]"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestFilter(t *testing.T) {
	in := writeCorpus(t, t.TempDir(), []transform.Document{
		{ID: "1", Text: "one two three"},
		{ID: "2", Text: "one two"},
		{ID: "3", Text: "a b c d"},
		{ID: "4", Text: "x"},
	})
	out := t.TempDir()
	args := []string{"filter", "-f", "wordcount 3", "-o", "run", "-q", "-log-level", "0", "-w", "2", in, out}

	code, stdout, stderr := execute(t, args...)
	if code != 0 {
		t.Fatalf("filter exited with %d: %s", code, stderr)
	}
	if got := countFile(t, filepath.Join(out, "run.filtered")); got != 2 {
		t.Errorf("expected 2 filtered documents, got %d", got)
	}
	if !strings.Contains(stdout, "filter finished: run") {
		t.Errorf("missing summary in output:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(out, "logs", "log_run.log")); err != nil {
		t.Errorf("expected an error log file: %v", err)
	}

	t.Run("refuses to overwrite", func(t *testing.T) {
		code, _, stderr := execute(t, args...)
		if code != 1 || !strings.Contains(stderr, "-force") {
			t.Errorf("expected an overwrite error, got %d: %s", code, stderr)
		}
	})

	t.Run("force overwrites", func(t *testing.T) {
		forced := append([]string{"filter", "-force"}, args[1:]...)
		if code, _, stderr := execute(t, forced...); code != 0 {
			t.Errorf("expected success with -force, got %d: %s", code, stderr)
		}
	})

	t.Run("chained filters", func(t *testing.T) {
		code, _, stderr := execute(t, "filter", "-f", "wordcount 3", "-f", "contains three", "-o", "chained", "-q", "-log-level", "0", in, out)
		if code != 0 {
			t.Fatalf("exit %d: %s", code, stderr)
		}
		if got := countFile(t, filepath.Join(out, "chained.filtered")); got != 1 {
			t.Errorf("expected 1 document, got %d", got)
		}
	})

	t.Run("bad filter", func(t *testing.T) {
		if code, _, _ := execute(t, "filter", "-f", "nope", "-q", in, out); code != 1 {
			t.Errorf("expected exit code 1, got %d", code)
		}
	})
}

func TestPreprocess(t *testing.T) {
	in := writeCorpus(t, t.TempDir(), []transform.Document{
		{ID: "1", Text: "Cats were running and jumping over fences"},
		{ID: "2", Text: "the"},
	})
	out := t.TempDir()
	metricsFile := filepath.Join(out, "run.prom")

	code, _, stderr := execute(t, "preprocess", "-p", "default 2 3", "-o", "pre", "-q", "-log-level", "0",
		"-metrics-file", metricsFile, in, out)
	if code != 0 {
		t.Fatalf("preprocess exited with %d: %s", code, stderr)
	}
	for _, ext := range []string{"preprocessed", "nonstemmed"} {
		if got := countFile(t, filepath.Join(out, "pre."+ext)); got != 1 {
			t.Errorf("%s: expected 1 record, got %d", ext, got)
		}
	}

	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	for _, want := range []string{"shardpool_units_fed_total 2", "shardpool_units_failed_total 1"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %q in metrics:\n%s", want, data)
		}
	}
}

func TestKeyphrase(t *testing.T) {
	dir := t.TempDir()
	in := writeCorpus(t, dir, []transform.Document{
		{ID: "d1", Text: "neural networks, deep learning"},
		{ID: "d3", Text: "graph databases"},
		{ID: "d2", Text: "neural networks"},
		{ID: "unrelated", Text: "something else"},
	})
	topics := filepath.Join(dir, "topics.json")
	data := `[
		{"document_identifier": "d1", "top_topics": [{"topic_index": 0, "probability": 0.9}]},
		{"document_identifier": "d2", "top_topics": [{"topic_index": 0, "probability": 0.8}]},
		{"document_identifier": "d3", "top_topics": [{"topic_index": 1, "probability": 0.7}]},
		{"document_identifier": "d4", "top_topics": [{"topic_index": 1, "probability": 0.6}]}
	]`
	if err := os.WriteFile(topics, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()

	code, _, stderr := execute(t, "keyphrase", "-topics", topics, "-o", "kp", "-q", "-log-level", "0", in, out)
	if code != 0 {
		t.Fatalf("keyphrase exited with %d: %s", code, stderr)
	}
	if got := countFile(t, filepath.Join(out, "kp.keyphrases")); got != 2 {
		t.Errorf("expected keyphrases for 2 topics, got %d", got)
	}

	raw, err := os.ReadFile(filepath.Join(out, "kp.assignments.json"))
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	var assignments []transform.Assignment
	if err := json.Unmarshal(raw, &assignments); err != nil {
		t.Fatalf("decode assignments: %v", err)
	}
	want := []transform.Assignment{{Topic: 0, Keyphrase: "neural networks"}, {Topic: 1, Keyphrase: "graph databases"}}
	if len(assignments) != len(want) {
		t.Fatalf("expected %v, got %v", want, assignments)
	}
	for i := range want {
		if assignments[i] != want[i] {
			t.Errorf("assignment %d: expected %v, got %v", i, want[i], assignments[i])
		}
	}
}

func TestSplit(t *testing.T) {
	docs := make([]transform.Document, 10)
	for i := range docs {
		docs[i] = transform.Document{ID: string(rune('a' + i)), Text: "text"}
	}
	in := writeCorpus(t, t.TempDir(), docs)

	t.Run("folds", func(t *testing.T) {
		out := t.TempDir()
		code, _, stderr := execute(t, "split", "-folds", "3", "-seed", "3", "-o", "cv", "-log-level", "0", in, out)
		if code != 0 {
			t.Fatalf("split exited with %d: %s", code, stderr)
		}
		total := 0
		for _, ext := range []string{"fold1", "fold2", "fold3"} {
			n := countFile(t, filepath.Join(out, "cv."+ext))
			if n < 3 || n > 4 {
				t.Errorf("%s has %d records", ext, n)
			}
			total += n
		}
		if total != 10 {
			t.Errorf("expected 10 records over all folds, got %d", total)
		}
	})

	t.Run("proportional", func(t *testing.T) {
		out := t.TempDir()
		code, _, stderr := execute(t, "split", "-proportion", "0.5", "-batch", "4", "-seed", "7", "-o", "tt", "-log-level", "0", in, out)
		if code != 0 {
			t.Fatalf("split exited with %d: %s", code, stderr)
		}
		if train, test := countFile(t, filepath.Join(out, "tt.train")), countFile(t, filepath.Join(out, "tt.test")); train != 5 || test != 5 {
			t.Errorf("expected a 5/5 split, got %d/%d", train, test)
		}
	})

	t.Run("exclusive modes", func(t *testing.T) {
		if code, _, _ := execute(t, "split", "-folds", "2", "-proportion", "0.5", in, t.TempDir()); code != 2 {
			t.Errorf("expected exit code 2, got %d", code)
		}
	})
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{filepath.Join(dir, "top.json"), filepath.Join(nested, "deep.json"), filepath.Join(nested, "skip.txt")} {
		if err := os.WriteFile(p, []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := expandInputs([]string{filepath.Join(dir, "**", "*.json"), "plain/path.json"})
	if err != nil {
		t.Fatalf("expandInputs: %v", err)
	}
	if len(got) != 3 || got[2] != "plain/path.json" {
		t.Errorf("unexpected inputs %v", got)
	}

	if _, err := expandInputs([]string{filepath.Join(dir, "*.missing")}); err == nil {
		t.Error("expected an error for a pattern without matches")
	}
}

func TestExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"run.filtered", "run.part2.filtered", "run.other", "runner.filtered"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got := existingOutputs(dir, "run", []string{"filtered"})
	if len(got) != 2 {
		t.Errorf("expected 2 clashing files, got %v", got)
	}
}
