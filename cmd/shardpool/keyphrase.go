package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/chunk"
	"github.com/utkarsh5026/shardpool/transform"
)

const assignmentsExtension = "assignments.json"

func runKeyphrase(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var rf runFlags
	fs := newFlagSet("keyphrase", "-topics FILE [flags] INPUT... OUTPUT_DIR", stderr)
	topicsPath := fs.String("topics", "", "JSON file with the top topics of every corpus document (required)")
	topN := fs.Int("n", transform.DefaultTopDocuments, "documents per topic that vote for keyphrases")
	spec := fs.String("e", "keyphrase", `extractor configuration such as "keyphrase 10"`)
	rf.register(fs)

	inputs, outDir, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if *topicsPath == "" {
		fs.Usage()
		return fmt.Errorf("%w: -topics is required", errUsage)
	}
	if *topN < 1 {
		return fmt.Errorf("%w: -n must be at least 1, got %d", errUsage, *topN)
	}

	extractor, err := transform.Extractors.Build(*spec)
	if err != nil {
		return err
	}
	entries, err := transform.LoadDocumentTopics(*topicsPath)
	if err != nil {
		return err
	}

	s, err := newSession("keyphrase", fs, &rf, outDir, []string{"keyphrases", assignmentsExtension}, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.Close()
	s.extensions = s.extensions[:1]

	index := transform.NewTopicIndex(entries, *topN)
	s.logger.Info("collecting topic documents", zap.Int("topics", index.Topics()), zap.Int("top_n", *topN))

	counts, files, err := runPool(ctx, s, extractor, func(push func(transform.TopicGroup) error) error {
		err := feedDocuments(ctx, s, inputs, func(doc transform.Document) error {
			group, ok := index.Add(doc)
			if !ok {
				return nil
			}
			s.logger.Info("topic complete", zap.Int("topic", group.Topic), zap.Int("documents", len(group.Documents)))
			return push(group)
		})
		if err != nil {
			return err
		}
		for _, group := range index.Remaining() {
			s.logger.Warn("topic is missing documents from the corpus",
				zap.Int("topic", group.Topic), zap.Int("documents", len(group.Documents)))
			if err := push(group); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	assignments, err := assignTopics(files[0])
	if err != nil {
		return err
	}
	path := filepath.Join(s.outDir, s.name+"."+assignmentsExtension)
	if err := writeAssignments(path, assignments); err != nil {
		return err
	}
	s.logger.Info("wrote keyphrase assignments", zap.String("path", path), zap.Int("topics", len(assignments)))

	return s.finish(counts, files)
}

func assignTopics(files []string) ([]transform.Assignment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	r, err := chunk.NewReader[transform.TopicKeyphrases](files)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var results []transform.TopicKeyphrases
	for res := range r.Records() {
		results = append(results, res)
	}
	return transform.AssignKeyphrases(results), nil
}

func writeAssignments(path string, assignments []transform.Assignment) error {
	if assignments == nil {
		assignments = []transform.Assignment{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(assignments, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
