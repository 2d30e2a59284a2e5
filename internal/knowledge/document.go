// Package knowledge answers free-form questions from a small business
// knowledge base: seed loading, storage, retrieval and the LLM
// answer composition.
package knowledge

import "strings"

// Document is one knowledge base entry.
type Document struct {
	Topic   string `yaml:"topic" json:"topic"`
	Content string `yaml:"content" json:"content"`
}

// Text renders the document the way it is handed to the model.
func (d Document) Text() string {
	topic := strings.TrimSpace(d.Topic)
	content := strings.TrimSpace(d.Content)
	if topic == "" {
		return content
	}
	return topic + ": " + content
}
