// Package classify buckets free text into labels by keyword containment.
//
// Matching is case and accent insensitive: "Achevé", "ACHEVE" and "achevé"
// all contain the keyword "acheve". Rules are evaluated in order and the
// first rule with a matching keyword wins.
package classify

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule maps a label to the keywords that select it.
type Rule struct {
	Label    string
	Keywords []string
}

// Classifier is immutable and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// New builds a classifier; keywords are folded once here.
func New(rules ...Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		c.rules = append(c.rules, fold(r))
	}
	return c
}

func fold(r Rule) Rule {
	out := Rule{Label: r.Label, Keywords: make([]string, 0, len(r.Keywords))}
	for _, k := range r.Keywords {
		if k = Fold(k); k != "" {
			out.Keywords = append(out.Keywords, k)
		}
	}
	return out
}

// WithOverrides returns a copy whose keyword lists are replaced by overrides.
// Labels unknown to c are appended in alphabetical order.
func (c *Classifier) WithOverrides(overrides map[string][]string) *Classifier {
	if len(overrides) == 0 {
		return c
	}
	out := &Classifier{rules: make([]Rule, 0, len(c.rules)+len(overrides))}
	seen := make(map[string]bool, len(c.rules))
	for _, r := range c.rules {
		seen[r.Label] = true
		if kw, ok := overrides[r.Label]; ok {
			r = fold(Rule{Label: r.Label, Keywords: kw})
		}
		out.rules = append(out.rules, r)
	}
	extra := make([]string, 0)
	for label := range overrides {
		if !seen[label] {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)
	for _, label := range extra {
		out.rules = append(out.rules, fold(Rule{Label: label, Keywords: overrides[label]}))
	}
	return out
}

// Classify returns the first matching label, or "" when nothing matches.
func (c *Classifier) Classify(text string) string {
	if c == nil {
		return ""
	}
	folded := Fold(text)
	if folded == "" {
		return ""
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(folded, k) {
				return r.Label
			}
		}
	}
	return ""
}

// Labels lists the labels in evaluation order.
func (c *Classifier) Labels() []string {
	if c == nil {
		return nil
	}
	labels := make([]string, len(c.rules))
	for i, r := range c.rules {
		labels[i] = r.Label
	}
	return labels
}

// Has reports whether label is one of the classifier's labels.
func (c *Classifier) Has(label string) bool {
	for _, l := range c.Labels() {
		if l == label {
			return true
		}
	}
	return false
}

// Fold lowercases s and strips combining marks.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
