package speech

import (
	"context"
	"strings"
	"unicode"
)

// Converter renders text to audio bytes.
type Converter interface {
	Convert(ctx context.Context, text string) ([]byte, error)
}

// Synthesizer renders a reply and stores it as audios/<user>.mp3.
type Synthesizer struct {
	converter Converter
	store     AudioStore
}

func NewSynthesizer(converter Converter, store AudioStore) *Synthesizer {
	return &Synthesizer{converter: converter, store: store}
}

// Synthesize returns the stored audio reference for text.
func (s *Synthesizer) Synthesize(ctx context.Context, userID, text string) (string, error) {
	audio, err := s.converter.Convert(ctx, text)
	if err != nil {
		return "", err
	}
	return s.store.Put(ctx, fileName(userID), audio)
}

func fileName(userID string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return -1
	}, userID)
	if clean == "" {
		clean = "reply"
	}
	return clean + ".mp3"
}
