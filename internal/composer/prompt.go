package composer

import (
	"sort"
	"strings"

	"github.com/kalambet/skillgap/internal/retrieval"
)

const defaultMaxContextTokens = 1500

// Section is a titled group of retrieved chunks, such as the framework text
// found for the user's profile or for the target role.
type Section struct {
	Title  string
	Chunks []retrieval.ContextChunk
}

// Composer renders retrieved chunks into the additional-context block of an
// analysis prompt.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for injected context.
// If maxContextTokens <= 0, the default (1500) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

type candidate struct {
	section int
	chunk   retrieval.ContextChunk
	entry   string
}

// Compose renders sections as
//
//	Title:
//	chunk
//
//	chunk
//
// keeping the whole block under MaxContextTokens. Chunks are admitted by
// score across all sections, so the lowest-scoring ones are dropped first.
// A chunk whose text already appeared is skipped. Sections left without
// chunks are omitted; with nothing to show, Compose returns "".
func (c *Composer) Compose(sections ...Section) string {
	var all []candidate
	for i, s := range sections {
		for _, ch := range s.Chunks {
			text := strings.TrimSpace(ch.Text)
			if text == "" {
				continue
			}
			all = append(all, candidate{section: i, chunk: ch, entry: text + "\n\n"})
		}
	}
	if len(all) == 0 {
		return ""
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].chunk.Score > all[j].chunk.Score
	})

	remaining := c.MaxContextTokens
	selected := make([][]string, len(sections))
	seen := make(map[string]bool, len(all))
	for _, cand := range all {
		if seen[cand.entry] {
			continue
		}
		cost := EstimateTokens(cand.entry)
		if len(selected[cand.section]) == 0 {
			cost += EstimateTokens(header(sections[cand.section].Title))
		}
		if cost > remaining {
			continue
		}
		seen[cand.entry] = true
		selected[cand.section] = append(selected[cand.section], cand.entry)
		remaining -= cost
	}

	var sb strings.Builder
	for i, entries := range selected {
		if len(entries) == 0 {
			continue
		}
		sb.WriteString(header(sections[i].Title))
		for _, e := range entries {
			sb.WriteString(e)
		}
	}
	return strings.TrimSpace(sb.String())
}

func header(title string) string {
	return title + ":\n"
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
