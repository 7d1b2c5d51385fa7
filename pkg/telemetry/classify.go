package telemetry

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is a device category recognized by the engine. Its value is also the
// key used in the JSON responses.
type Kind string

const (
	SoilSensor Kind = "gs1_sensor"
	SmartPlug  Kind = "smart_plug"
)

// Kinds returns every known kind in serialization order.
func Kinds() []Kind {
	return []Kind{SoilSensor, SmartPlug}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown device kind %q", s)
}

// Rule matches a kind when the channel name contains any of Substrings.
type Rule struct {
	Kind       Kind
	Substrings []string
}

func DefaultRules() []Rule {
	return []Rule{
		{Kind: SoilSensor, Substrings: []string{"gs1"}},
		{Kind: SmartPlug, Substrings: []string{"plug"}},
	}
}

// Classifier maps channel names to device kinds. It is a non-exclusive
// heuristic: every rule is evaluated and a name may match several kinds.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{}
	for _, r := range rules {
		subs := make([]string, 0, len(r.Substrings))
		for _, s := range r.Substrings {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				subs = append(subs, s)
			}
		}
		c.rules = append(c.rules, Rule{Kind: r.Kind, Substrings: subs})
	}
	return c
}

// WithAliases returns a copy of the classifier with extra substrings added
// to the rule of each aliased kind. Aliases are applied in sorted order so
// the resulting rules do not depend on map iteration.
func (c *Classifier) WithAliases(aliases map[string]Kind) *Classifier {
	rules := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		rules[i] = Rule{Kind: r.Kind, Substrings: append([]string(nil), r.Substrings...)}
	}

	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, alias := range keys {
		kind := aliases[alias]
		found := false
		for i := range rules {
			if rules[i].Kind == kind {
				rules[i].Substrings = append(rules[i].Substrings, alias)
				found = true
				break
			}
		}
		if !found {
			rules = append(rules, Rule{Kind: kind, Substrings: []string{alias}})
		}
	}
	return NewClassifier(rules)
}

// Classify returns the kinds whose rule matches name, case-insensitively,
// in rule order. Each kind is reported once.
func (c *Classifier) Classify(name string) []Kind {
	lower := strings.ToLower(name)
	var kinds []Kind
	for _, r := range c.rules {
		if containsKind(kinds, r.Kind) {
			continue
		}
		for _, s := range r.Substrings {
			if strings.Contains(lower, s) {
				kinds = append(kinds, r.Kind)
				break
			}
		}
	}
	return kinds
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, existing := range kinds {
		if existing == k {
			return true
		}
	}
	return false
}
