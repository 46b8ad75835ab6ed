package transform

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/utkarsh5026/shardpool/pool"
)

const (
	// DefaultKeyphrasesPerDocument is how many phrases each document votes for.
	DefaultKeyphrasesPerDocument = 10
	// TopicKeyphraseLimit is how many phrases a topic keeps after voting.
	TopicKeyphraseLimit = 10
	// maxPhraseWords bounds the length of a candidate phrase.
	maxPhraseWords = 3
)

// Extractors holds the per-topic extractors. An extractor takes a
// TopicGroup and emits one TopicKeyphrases on channel 0.
var Extractors = newExtractors()

func newExtractors() *Registry[TopicGroup] {
	r := NewRegistry[TopicGroup]("extractor")
	mustRegister(r, "keyphrase", "[K]", newKeyphraseExtractor)
	return r
}

// Keyphrase is a phrase with the Borda votes it collected and the number
// of documents that ranked it. It is encoded as [phrase, votes, docs].
type Keyphrase struct {
	Phrase string
	Votes  int
	Docs   int
}

func (k Keyphrase) MarshalJSON() ([]byte, error) {
	return sonic.Marshal([]any{k.Phrase, k.Votes, k.Docs})
}

func (k *Keyphrase) UnmarshalJSON(data []byte) error {
	var raw [3]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	phrase, _ := raw[0].(string)
	votes, _ := raw[1].(float64)
	docs, _ := raw[2].(float64)
	*k = Keyphrase{Phrase: phrase, Votes: int(votes), Docs: int(docs)}
	return nil
}

// TopicKeyphrases is the ranked keyphrase list of one topic.
type TopicKeyphrases struct {
	Topic      int         `json:"topic"`
	Keyphrases []Keyphrase `json:"topic_keyphrases"`
}

// Assignment is the keyphrase chosen to label a topic.
type Assignment struct {
	Topic     int    `json:"topic"`
	Keyphrase string `json:"keyphrase"`
}

func newKeyphraseExtractor(args []string) (pool.TransformFunc[TopicGroup], error) {
	if len(args) > 1 {
		return nil, invalidArg("keyphrase", "expected [K], got %d arguments", len(args))
	}
	k := DefaultKeyphrasesPerDocument
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return nil, invalidArg("keyphrase", "K %q is not a positive integer", args[0])
		}
		k = n
	}

	return func(_ context.Context, group TopicGroup, w pool.WorkerInfo) ([]any, error) {
		result := TopicKeyphrases{Topic: group.Topic, Keyphrases: VoteKeyphrases(group.Documents, k)}
		if w.Logger != nil {
			phrases := make([]string, len(result.Keyphrases))
			for i, kp := range result.Keyphrases {
				phrases[i] = kp.Phrase
			}
			w.Logger.Debug("topic keyphrases", zap.Int("topic", group.Topic), zap.Strings("keyphrases", phrases))
		}
		return []any{result}, nil
	}, nil
}

// VoteKeyphrases ranks up to k phrases in every document and aggregates
// them with a Borda count: the phrase ranked i-th (from 0) gets k-i votes.
// The TopicKeyphraseLimit phrases with most votes are returned.
func VoteKeyphrases(docs []Document, k int) []Keyphrase {
	tally := make(map[string]*Keyphrase)
	for _, doc := range docs {
		text := strings.ReplaceAll(doc.Text, "\x00", "")
		if text == "" || text == "nan" {
			continue
		}
		for i, phrase := range RankPhrases(text, k) {
			kp, ok := tally[phrase]
			if !ok {
				kp = &Keyphrase{Phrase: phrase}
				tally[phrase] = kp
			}
			kp.Votes += k - i
			kp.Docs++
		}
	}

	ranked := make([]Keyphrase, 0, len(tally))
	for _, kp := range tally {
		ranked = append(ranked, *kp)
	}
	slices.SortFunc(ranked, func(a, b Keyphrase) int {
		return cmp.Or(
			cmp.Compare(b.Votes, a.Votes),
			cmp.Compare(b.Docs, a.Docs),
			strings.Compare(a.Phrase, b.Phrase),
		)
	})
	if len(ranked) > TopicKeyphraseLimit {
		ranked = ranked[:TopicKeyphraseLimit]
	}
	return ranked
}

// RankPhrases returns the k best candidate phrases of text. Candidates are
// runs of consecutive alphabetic non-stopwords inside one sentence piece,
// cut into chunks of at most three words. A word scores the sum of
// 1/position over its occurrences, so early and frequent words weigh
// most, and a phrase scores the sum of its words.
func RankPhrases(text string, k int) []string {
	var segments [][]string
	for _, piece := range strings.FieldsFunc(text, isBoundary) {
		if ws := words(piece); len(ws) > 0 {
			segments = append(segments, ws)
		}
	}

	wordScore := make(map[string]float64)
	pos := 0
	for _, seg := range segments {
		for _, tok := range seg {
			pos++
			wordScore[tok] += 1 / float64(pos)
		}
	}

	type candidate struct {
		phrase string
		score  float64
	}
	var (
		candidates []candidate
		seen       = make(map[string]bool)
	)
	add := func(run []string) {
		phrase := strings.Join(run, " ")
		if seen[phrase] {
			return
		}
		seen[phrase] = true
		var score float64
		for _, w := range run {
			score += wordScore[w]
		}
		candidates = append(candidates, candidate{phrase, score})
	}
	flush := func(run []string) {
		for start := 0; start < len(run); start += maxPhraseWords {
			add(run[start:min(start+maxPhraseWords, len(run))])
		}
	}

	for _, seg := range segments {
		var run []string
		for _, tok := range seg {
			if IsStopword(tok) || !isAlpha(tok) {
				flush(run)
				run = nil
				continue
			}
			run = append(run, tok)
		}
		flush(run)
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	phrases := make([]string, len(candidates))
	for i, c := range candidates {
		phrases[i] = c.phrase
	}
	return phrases
}

// isBoundary splits text into pieces no phrase may cross.
func isBoundary(r rune) bool {
	return r != '-' && r != '\'' && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}

// AssignKeyphrases labels each topic, in ascending topic order. A topic
// takes its best keyphrase unless another topic already took that label,
// in which case the next phrase is appended, ", " separated, until the
// label is unique. Topics that cannot get a unique label are left out.
func AssignKeyphrases(results []TopicKeyphrases) []Assignment {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b TopicKeyphrases) int {
		return cmp.Compare(a.Topic, b.Topic)
	})

	taken := make(map[string]bool)
	var out []Assignment
	for _, r := range sorted {
		var parts []string
		for _, kp := range r.Keyphrases {
			parts = append(parts, kp.Phrase)
			label := strings.Join(parts, ", ")
			if !taken[label] {
				taken[label] = true
				out = append(out, Assignment{Topic: r.Topic, Keyphrase: label})
				break
			}
		}
	}
	return out
}
