package transform

import (
	"context"
	"strconv"
	"strings"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"

	"github.com/utkarsh5026/shardpool/pool"
)

const (
	// DefaultMinTerms is the fewest stems a preprocessed document may keep.
	DefaultMinTerms = 10
	// DefaultMinChars is the shortest stem that is kept.
	DefaultMinChars = 3
)

// Preprocessors holds the text preprocessors. A preprocessor emits the
// rewritten document on channel 0 and its stem-to-terms map on channel 1.
var Preprocessors = newPreprocessors()

func newPreprocessors() *Registry[Document] {
	r := NewRegistry[Document]("preprocessor")
	mustRegister(r, "default", "[MIN_TERMS] [MIN_CHARS]", newDefaultPreprocessor)
	return r
}

// NonStemmed maps every stem of a document to the original terms that
// produced it and how often each occurred.
type NonStemmed map[string]map[string]int

func newDefaultPreprocessor(args []string) (pool.TransformFunc[Document], error) {
	if len(args) > 2 {
		return nil, invalidArg("default", "expected [MIN_TERMS] [MIN_CHARS], got %d arguments", len(args))
	}
	limits := []int{DefaultMinTerms, DefaultMinChars}
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, invalidArg("default", "argument %q is not a non-negative integer", arg)
		}
		limits[i] = n
	}
	p := stemmer{minTerms: limits[0], minChars: limits[1]}
	return p.transform, nil
}

type stemmer struct {
	minTerms int
	minChars int
}

func (s stemmer) transform(_ context.Context, doc Document, w pool.WorkerInfo) ([]any, error) {
	logDocument(w, doc)
	if strings.TrimSpace(doc.Text) == "" {
		return nil, rejected(doc.ID, "has no text")
	}

	stems, nonstemmed := s.stemText(doc.Text)
	if len(stems) < s.minTerms {
		return nil, rejected(doc.ID, "has %d terms, fewer than %d", len(stems), s.minTerms)
	}

	out := doc
	out.Text = strings.Join(stems, " ")
	return []any{out, nonstemmed}, nil
}

// stemText lowercases text, drops punctuation other than dashes, and
// stems every alphabetic term that is not a stopword.
func (s stemmer) stemText(text string) ([]string, NonStemmed) {
	terms := strings.Fields(stripPunctuation(strings.ToLower(text)))
	stems := make([]string, 0, len(terms))
	nonstemmed := make(NonStemmed)

	for _, term := range terms {
		if IsStopword(term) || !isAlpha(term) {
			continue
		}
		stem := Stem(term)
		if len([]rune(stem)) < s.minChars {
			continue
		}
		stems = append(stems, stem)
		if nonstemmed[stem] == nil {
			nonstemmed[stem] = make(map[string]int)
		}
		nonstemmed[stem][term]++
	}
	return stems, nonstemmed
}

// Stem returns the English Snowball stem of a lowercase word.
func Stem(word string) string {
	env := snowballstem.NewEnv(word)
	english.Stem(env)
	return env.Current()
}
