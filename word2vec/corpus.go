package word2vec

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// ReadSentences splits text into lowercase tokenized sentences.  A sentence
// ends at '.', '!' or '?' or at a blank line.  Punctuation is dropped except
// for apostrophes and hyphens inside a word.  Empty sentences are omitted.
func ReadSentences(r io.Reader) ([][]string, error) {
	var sentences [][]string
	var current []string

	flush := func() {
		if len(current) > 0 {
			sentences = append(sentences, current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		for _, raw := range strings.Fields(line) {
			token, endsSentence := normalizeToken(raw)
			if token != "" {
				current = append(current, token)
			}
			if endsSentence {
				flush()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("while reading corpus: %w", err)
	}
	flush()

	return sentences, nil
}

// Tokenize is ReadSentences over a string.
func Tokenize(text string) [][]string {
	// Reading from a strings.Reader cannot fail short of a line longer than
	// the scanner buffer.
	sentences, _ := ReadSentences(strings.NewReader(text))
	return sentences
}

func normalizeToken(raw string) (string, bool) {
	endsSentence := strings.ContainsAny(raw, ".!?")

	var b strings.Builder
	runes := []rune(strings.ToLower(raw))
	for i, c := range runes {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			b.WriteRune(c)
		case (c == '\'' || c == '-') && i > 0 && i < len(runes)-1 && isWordRune(runes[i-1]) && isWordRune(runes[i+1]):
			b.WriteRune(c)
		}
	}
	return b.String(), endsSentence
}

func isWordRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}
