package transform

// Document is one corpus record.
type Document struct {
	ID   string         `json:"id"`
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

// TopicGroup is the set of documents whose primary topic is Topic.
type TopicGroup struct {
	Topic     int        `json:"topic"`
	Documents []Document `json:"documents"`
}
