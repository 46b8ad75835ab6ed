package transform

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/bytedance/sonic"
)

// DefaultTopDocuments is how many documents per topic feed the keyphrase
// vote.
const DefaultTopDocuments = 100

// TopicScore is one topic of a document with its probability.
type TopicScore struct {
	Topic       int     `json:"topic_index"`
	Probability float64 `json:"probability"`
}

// DocumentTopics lists the most probable topics of a document, best
// first.
type DocumentTopics struct {
	ID        string       `json:"document_identifier"`
	TopTopics []TopicScore `json:"top_topics"`
}

// LoadDocumentTopics reads a JSON array of DocumentTopics.
func LoadDocumentTopics(path string) ([]DocumentTopics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics: %w", err)
	}
	var topics []DocumentTopics
	if err := sonic.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("parse topics %s: %w", path, err)
	}
	return topics, nil
}

// TopicIndex collects corpus documents into TopicGroups. Each topic wants
// the topN documents that have it as primary topic with the highest
// probability. A group is released as soon as all of them have been seen.
type TopicIndex struct {
	primary map[string]int
	pending map[int]map[string]struct{}
	loaded  map[int][]Document
}

// NewTopicIndex builds the index. Documents without topics are ignored.
func NewTopicIndex(entries []DocumentTopics, topN int) *TopicIndex {
	if topN < 1 {
		topN = DefaultTopDocuments
	}

	idx := &TopicIndex{
		primary: make(map[string]int),
		pending: make(map[int]map[string]struct{}),
		loaded:  make(map[int][]Document),
	}

	members := make(map[int][]DocumentTopics)
	for _, e := range entries {
		if len(e.TopTopics) == 0 {
			continue
		}
		members[e.TopTopics[0].Topic] = append(members[e.TopTopics[0].Topic], e)
	}
	for topic, docs := range members {
		slices.SortStableFunc(docs, func(a, b DocumentTopics) int {
			return cmp.Compare(b.TopTopics[0].Probability, a.TopTopics[0].Probability)
		})
		if len(docs) > topN {
			docs = docs[:topN]
		}
		set := make(map[string]struct{}, len(docs))
		for _, d := range docs {
			set[d.ID] = struct{}{}
			idx.primary[d.ID] = topic
		}
		idx.pending[topic] = set
	}
	return idx
}

// Topics returns how many topics the index waits for.
func (idx *TopicIndex) Topics() int {
	return len(idx.pending)
}

// Add offers a corpus document. When it completes its topic's group the
// group is returned with ok set.
func (idx *TopicIndex) Add(doc Document) (group TopicGroup, ok bool) {
	topic, known := idx.primary[doc.ID]
	if !known {
		return TopicGroup{}, false
	}
	set := idx.pending[topic]
	if _, wanted := set[doc.ID]; !wanted {
		return TopicGroup{}, false
	}

	delete(set, doc.ID)
	idx.loaded[topic] = append(idx.loaded[topic], doc)
	if len(set) > 0 {
		return TopicGroup{}, false
	}

	group = TopicGroup{Topic: topic, Documents: idx.loaded[topic]}
	delete(idx.loaded, topic)
	delete(idx.pending, topic)
	return group, true
}

// Remaining releases the groups still missing documents, in topic order.
// Topics none of whose documents were seen are not returned.
func (idx *TopicIndex) Remaining() []TopicGroup {
	var groups []TopicGroup
	for topic, docs := range idx.loaded {
		groups = append(groups, TopicGroup{Topic: topic, Documents: docs})
	}
	slices.SortFunc(groups, func(a, b TopicGroup) int { return cmp.Compare(a.Topic, b.Topic) })
	clear(idx.loaded)
	clear(idx.pending)
	return groups
}
