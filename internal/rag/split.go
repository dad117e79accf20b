package rag

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 200
)

// separators are tried in order: paragraphs, lines, words, characters.
var separators = []string{"\n\n", "\n", " ", ""}

// SplitText splits text into chunks of at most size characters, preferring
// to break on paragraph, then line, then word boundaries. Consecutive
// chunks repeat up to overlap characters of context.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return splitRecursive(text, separators, size, overlap)
}

func splitRecursive(text string, seps []string, size, overlap int) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, fitting []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= size {
			fitting = append(fitting, p)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, merge(fitting, sep, size, overlap)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, splitRecursive(p, rest, size, overlap)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, merge(fitting, sep, size, overlap)...)
	}
	return out
}

// merge joins pieces with sep into chunks no longer than size, carrying up
// to overlap characters of trailing pieces into the next chunk.
func merge(pieces []string, sep string, size, overlap int) []string {
	sepLen := utf8.RuneCountInString(sep)

	var (
		chunks []string
		window []string
		total  int
	)
	emit := func() {
		if chunk := strings.TrimSpace(strings.Join(window, sep)); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if len(window) > 0 && total+sepLen+n > size {
			emit()
			for len(window) > 0 && (total > overlap || total+sepLen+n > size) {
				total -= utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, p)
		total += n
	}
	emit()
	return chunks
}
