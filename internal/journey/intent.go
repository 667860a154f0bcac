package journey

import "strings"

type rule struct {
	journey  ID
	keywords []string
}

// Matcher maps free text to a journey using the catalog keywords. Rules are
// tried in catalog order and the first containing keyword wins.
type Matcher struct {
	rules []rule
}

// NewMatcher builds a matcher from c.
func NewMatcher(c *Catalog) *Matcher {
	m := &Matcher{}
	for _, j := range c.List() {
		m.rules = append(m.rules, rule{journey: j.ID, keywords: j.Keywords})
	}
	return m
}

// Match returns the journey whose keyword appears in text, ignoring case.
func (m *Matcher) Match(text string) (ID, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	for _, r := range m.rules {
		for _, kw := range r.keywords {
			if kw != "" && strings.Contains(lower, kw) {
				return r.journey, true
			}
		}
	}
	return "", false
}
