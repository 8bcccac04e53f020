package ingest

import (
	"strings"

	"github.com/strugglingman/rag-chatbot/internal/reader"
)

// Default chunking geometry, in characters.
const (
	DefaultChunkTarget  = 400
	DefaultChunkOverlap = 90
)

// piece is one chunk of text with the page it came from.
type piece struct {
	page int
	text string
}

// chunkPages splits extracted pages into overlapping sentence-aligned
// chunks. A chunk closes once it exceeds target; the tail sentences that
// fit within overlap seed the next chunk.
func chunkPages(pages []reader.Page, target, overlap int) []piece {
	var out []piece

	for _, p := range pages {
		var buff []string
		size := 0

		for _, s := range splitSentences(p.Text) {
			buff = append(buff, s)
			if size+len(s) <= target {
				size += len(s) + 1
				continue
			}

			out = append(out, piece{page: p.Number, text: strings.Join(buff, " ")})

			buff = overlapTail(buff, overlap)
			size = 0
			for _, kept := range buff {
				size += len(kept)
			}
			if len(buff) > 1 {
				size += len(buff) - 1
			}
		}

		if len(buff) > 0 {
			out = append(out, piece{page: p.Number, text: strings.Join(buff, " ")})
		}
	}

	return out
}

// overlapTail returns the longest suffix of sentences fitting in the
// overlap budget, preserving order.
func overlapTail(sentences []string, overlap int) []string {
	var tail []string
	size := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		s := sentences[i]
		need := len(s)
		if len(tail) > 0 {
			need++
		}
		if size+need > overlap {
			break
		}
		tail = append([]string{s}, tail...)
		size += need
	}
	return tail
}

// splitSentences breaks text on sentence-final punctuation followed by
// whitespace and an upper-case letter or digit, keeping the punctuation
// with the left sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	i := 0
	for i < len(text) {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			i++
			continue
		}

		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == i+1 || j >= len(text) || !isSentenceStart(text[j]) {
			i++
			continue
		}

		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = j
		i = j
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isSentenceStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
