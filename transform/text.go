package transform

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed stopwords.yaml
var stopwordsYAML []byte

// stopwords is the English stoplist shared by the preprocessor and the
// keyphrase extractor.
var stopwords = mustLoadStopwords(stopwordsYAML)

type stoplist struct {
	Terms []string `yaml:"terms"`
}

func loadStopwords(data []byte) (map[string]struct{}, error) {
	var sl stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, fmt.Errorf("parse stoplist: %w", err)
	}
	set := make(map[string]struct{}, len(sl.Terms))
	for _, t := range sl.Terms {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set, nil
}

func mustLoadStopwords(data []byte) map[string]struct{} {
	set, err := loadStopwords(data)
	if err != nil {
		panic(err)
	}
	return set
}

// IsStopword reports whether term is on the English stoplist.
func IsStopword(term string) bool {
	_, ok := stopwords[term]
	return ok
}

// words splits text into lowercase runs of letters, digits and inner
// dashes.
func words(text string) []string {
	var (
		out     []string
		current strings.Builder
	)
	emit := func() {
		if current.Len() > 0 {
			if w := strings.Trim(current.String(), "-"); w != "" {
				out = append(out, w)
			}
			current.Reset()
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			current.WriteRune(unicode.ToLower(r))
			continue
		}
		emit()
	}
	emit()
	return out
}

// isAlpha reports whether s is non-empty and made of letters only.
func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// stripPunctuation removes ASCII punctuation other than the dash.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r > unicode.MaxASCII {
			return r
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
}
