package graph

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ontoforge/ontoforge/pkg/common"
)

// transformIntoUnits splits document text into sentence-aligned units of
// at most maxTokens tokens. Unit IDs are derived from the document ID and
// the unit index, so re-chunking an unchanged document yields the same
// IDs and re-ingestion stays idempotent.
func transformIntoUnits(
	text string,
	docID string,
	countTokens func(string) int,
	maxTokens int,
) ([]common.Unit, error) {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var units []common.Unit
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		index := len(units)
		units = append(units, common.Unit{
			ID:    fmt.Sprintf("%s#%d", docID, index),
			DocID: docID,
			Index: index,
			Text:  strings.TrimSpace(strings.Join(current, " ")),
		})
		current = nil
		currentTokens = 0
	}

	for _, sentence := range sentences {
		tokens := countTokens(sentence) + 1
		if currentTokens+tokens > maxTokens && len(current) > 0 {
			flush()
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	flush()

	return units, nil
}

// splitIntoSentences breaks text into sentences, treating blank lines as
// hard boundaries so headings and list items become their own sentences.
func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		for _, sentence := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)

			if endsSentence(sentence) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			// "1. item" style listings are not sentence ends.
			if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
				continue
			}

			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				current.WriteByte(line[j])
				j++
			}
			for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
				line[j] == ']' || line[j] == '}') {
				current.WriteByte(line[j])
				j++
			}

			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			i = j - 1
		}
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}
