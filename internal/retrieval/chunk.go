package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// defaultSeparators are tried in order: paragraphs, lines, sentences, words,
// then single runes.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts text into chunks of at most size runes, carrying up to
// overlap runes of trailing context into the next chunk. It splits on the
// coarsest separator present and only recurses into pieces that are still
// too long.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter returns a Splitter. Non-positive size or negative overlap fall
// back to the defaults; overlap is kept below size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}
}

// Split returns the chunks of text, trimmed, with empty chunks dropped.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
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
		if sep != "" && strings.TrimSpace(p) == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= s.size {
			fitting = append(fitting, p)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting, sep)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = appendChunk(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting, sep)...)
	}
	return out
}

// merge greedily joins pieces with sep into chunks of at most s.size runes.
// After each emitted chunk, pieces are dropped from the front until at most
// s.overlap runes remain to seed the next one.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var chunks, current []string
	total := 0

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if len(current) > 0 && total+n+sepLen > s.size {
			chunks = appendChunk(chunks, strings.Join(current, sep))
			for len(current) > 0 && (total > s.overlap || total+n+sepLen > s.size) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		chunks = appendChunk(chunks, strings.Join(current, sep))
	}
	return chunks
}

func appendChunk(chunks []string, c string) []string {
	if c = strings.TrimSpace(c); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// ChunkID names the i-th chunk of a document.
func ChunkID(docID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, i)
}
