package knowledge

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a knowledge seed. YAML files hold a list of documents (or a
// top-level "documents" key); CSV files are read row by row with the header
// naming each column.
func LoadFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open seed: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	case ".csv":
		return LoadCSV(f)
	}
	return nil, fmt.Errorf("knowledge: unsupported seed format %q", filepath.Ext(path))
}

// LoadYAML decodes documents from r.
func LoadYAML(r io.Reader) ([]Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read yaml: %w", err)
	}
	var docs []Document
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		var wrapped struct {
			Documents []Document `yaml:"documents"`
		}
		if werr := yaml.Unmarshal(raw, &wrapped); werr != nil {
			return nil, fmt.Errorf("knowledge: decode yaml: %w", err)
		}
		docs = wrapped.Documents
	}
	return compact(docs), nil
}

// LoadCSV turns each row into a document. A "topic" (or "pergunta"/"question")
// column becomes the topic; remaining columns are rendered as "name: value"
// lines.
func LoadCSV(r io.Reader) ([]Document, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("knowledge: read csv header: %w", err)
	}
	topicCol := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch strings.ToLower(header[i]) {
		case "topic", "question", "pergunta":
			if topicCol < 0 {
				topicCol = i
			}
		}
	}

	var docs []Document
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("knowledge: read csv row: %w", err)
		}
		var doc Document
		var lines []string
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i == topicCol {
				doc.Topic = cell
				continue
			}
			name := fmt.Sprintf("column%d", i+1)
			if i < len(header) && header[i] != "" {
				name = header[i]
			}
			lines = append(lines, name+": "+cell)
		}
		doc.Content = strings.Join(lines, "\n")
		docs = append(docs, doc)
	}
	return compact(docs), nil
}

func compact(docs []Document) []Document {
	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" && strings.TrimSpace(d.Topic) == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Seed loads the file at path into repo, replacing what it held.
func Seed(ctx context.Context, repo Repository, path string) (int, error) {
	docs, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	if err := repo.Replace(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
