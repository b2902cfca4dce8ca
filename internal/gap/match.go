package gap

import "strings"

// matchStrategy looks up the user skill standing in for a required skill
// name. key is the normalized required name.
type matchStrategy struct {
	name string
	find func(m *Matcher, key string, user []Skill) (Skill, bool)
}

// Matcher pairs required skills with a user's declared skills.
type Matcher struct {
	aliases Aliases
}

// NewMatcher returns a Matcher using aliases, or the default table when
// aliases is nil.
func NewMatcher(aliases Aliases) *Matcher {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Matcher{aliases: aliases}
}

// Aliases returns the alias table in use.
func (m *Matcher) Aliases() Aliases { return m.aliases }

var (
	// Used when synthesizing gaps from a model response.
	synthesisMatchers = []matchStrategy{
		{"exact", matchExact},
		{"contains", matchContains},
		{"alias", matchAlias},
	}
	// Used by the rule-based comparison, which skips substring containment.
	ruleMatchers = []matchStrategy{
		{"exact", matchExact},
		{"keywords", matchKeywords},
		{"alias", matchAlias},
	}
)

func (m *Matcher) find(strategies []matchStrategy, name string, user []Skill) (Skill, bool) {
	key := NormalizeName(name)
	if key == "" {
		return Skill{}, false
	}
	for _, s := range strategies {
		if sk, ok := s.find(m, key, user); ok {
			return sk, true
		}
	}
	return Skill{}, false
}

func matchExact(_ *Matcher, key string, user []Skill) (Skill, bool) {
	for _, u := range user {
		if NormalizeName(u.Name) == key {
			return u, true
		}
	}
	return Skill{}, false
}

func matchContains(_ *Matcher, key string, user []Skill) (Skill, bool) {
	for _, u := range user {
		uk := NormalizeName(u.Name)
		if uk == "" {
			continue
		}
		if strings.Contains(uk, key) || strings.Contains(key, uk) {
			return u, true
		}
	}
	return Skill{}, false
}

// matchKeywords accepts a user skill sharing at least half of the required
// name's words.
func matchKeywords(_ *Matcher, key string, user []Skill) (Skill, bool) {
	want := strings.Fields(key)
	for _, u := range user {
		have := make(map[string]bool)
		for _, w := range strings.Fields(NormalizeName(u.Name)) {
			have[w] = true
		}
		overlap := 0
		for _, w := range want {
			if have[w] {
				overlap++
			}
		}
		if overlap > 0 && overlap*2 >= len(want) {
			return u, true
		}
	}
	return Skill{}, false
}

func matchAlias(m *Matcher, key string, user []Skill) (Skill, bool) {
	for _, al := range m.aliases {
		if hasPhrase(key, al.Short) {
			if u, ok := matchExact(m, al.Full, user); ok {
				return u, true
			}
		}
		if hasPhrase(key, al.Full) {
			if u, ok := matchExact(m, al.Short, user); ok {
				return u, true
			}
		}
	}
	return Skill{}, false
}
