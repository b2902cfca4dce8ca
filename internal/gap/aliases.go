package gap

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
)

// Alias ties a short or alternate skill name to its canonical spelling.
type Alias struct {
	Short string `json:"short"`
	Full  string `json:"full"`
}

// Aliases is an ordered alias table. Earlier entries win.
type Aliases []Alias

// DefaultAliases returns a fresh copy of the built-in table.
func DefaultAliases() Aliases {
	return Aliases{
		{"js", "javascript"},
		{"react", "reactjs"},
		{"node", "nodejs"},
		{"ml", "machine learning"},
		{"ai", "artificial intelligence"},
		{"devops", "dev ops"},
		{"ui", "user interface"},
		{"ux", "user experience"},
	}
}

// LoadAliases reads a JSON object of short -> full names. Entries are sorted
// by short name so the resulting table is deterministic.
func LoadAliases(r io.Reader) (Aliases, error) {
	var m map[string]string
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding alias table: %w", err)
	}
	out := make(Aliases, 0, len(m))
	for k, v := range m {
		short, full := NormalizeName(k), NormalizeName(v)
		if short == "" || full == "" {
			continue
		}
		out = append(out, Alias{Short: short, Full: full})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Short < out[j].Short })
	return out, nil
}

// Merge returns a table where entries of override replace entries of a with
// the same short name; new entries are appended after the existing ones.
func (a Aliases) Merge(override Aliases) Aliases {
	idx := make(map[string]int, len(a))
	out := make(Aliases, len(a))
	copy(out, a)
	for i, al := range out {
		idx[al.Short] = i
	}
	for _, al := range override {
		if i, ok := idx[al.Short]; ok {
			out[i] = al
			continue
		}
		idx[al.Short] = len(out)
		out = append(out, al)
	}
	return out
}

// words splits a normalized name on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hasPhrase reports whether the words of phrase appear contiguously in name.
func hasPhrase(name, phrase string) bool {
	n, p := words(name), words(phrase)
	if len(p) == 0 || len(p) > len(n) {
		return false
	}
	for i := 0; i+len(p) <= len(n); i++ {
		match := true
		for j := range p {
			if n[i+j] != p[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
