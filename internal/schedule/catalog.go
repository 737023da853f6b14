package schedule

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultAliases maps canonical disciplines to the free-text names people use for them.
func DefaultAliases() map[string][]string {
	return map[string][]string{
		"PILATES MATWORK":   {"matwork", "mat work", "mat", "pilates mat", "pilates a terra"},
		"PILATES REFORMER":  {"reformer", "pilates reformer"},
		"YOGA":              {"yoga", "hatha yoga"},
		"POSTURAL TRAINING": {"postural", "posturale", "ginnastica posturale", "postural training"},
	}
}

// Catalog is a bidirectional discipline lookup built once at startup.
type Catalog struct {
	toCanonical map[string]string
	toAliases   map[string][]string
	names       []string
	// keys sorted longest first for substring matching
	keys []string
}

// NewCatalog indexes the template disciplines and any aliases pointing at them.
// Aliases for disciplines the template does not offer are ignored.
func NewCatalog(tmpl WeeklyTemplate, aliases map[string][]string) *Catalog {
	c := &Catalog{
		toCanonical: make(map[string]string),
		toAliases:   make(map[string][]string),
		names:       tmpl.Disciplines(),
	}
	known := make(map[string]bool, len(c.names))
	for _, name := range c.names {
		known[name] = true
		c.add(lookupKey(name), name)
	}
	for canonical, list := range aliases {
		canonical = canonicalKey(canonical)
		if !known[canonical] {
			continue
		}
		for _, alias := range list {
			c.add(lookupKey(alias), canonical)
		}
	}
	for key := range c.toCanonical {
		c.keys = append(c.keys, key)
	}
	sort.Slice(c.keys, func(i, j int) bool {
		if len(c.keys[i]) != len(c.keys[j]) {
			return len(c.keys[i]) > len(c.keys[j])
		}
		return c.keys[i] < c.keys[j]
	})
	return c
}

func (c *Catalog) add(key, canonical string) {
	if key == "" {
		return
	}
	if _, exists := c.toCanonical[key]; exists {
		return
	}
	c.toCanonical[key] = canonical
	c.toAliases[canonical] = append(c.toAliases[canonical], key)
}

// Normalize maps free text to a canonical discipline. Exact alias matches win,
// then the longest alias contained in the text, then a unique alias containing
// the text. Unmatched input is returned trimmed but otherwise unchanged.
func (c *Catalog) Normalize(text string) string {
	key := lookupKey(text)
	if key == "" {
		return strings.TrimSpace(text)
	}
	if canonical, ok := c.toCanonical[key]; ok {
		return canonical
	}
	padded := " " + key + " "
	for _, alias := range c.keys {
		if strings.Contains(padded, " "+alias+" ") {
			return c.toCanonical[alias]
		}
	}
	if len(key) >= 3 {
		match := ""
		for _, alias := range c.keys {
			if !strings.Contains(alias, key) {
				continue
			}
			canonical := c.toCanonical[alias]
			if match != "" && match != canonical {
				return strings.TrimSpace(text)
			}
			match = canonical
		}
		if match != "" {
			return match
		}
	}
	return strings.TrimSpace(text)
}

// Known reports whether name is a canonical discipline.
func (c *Catalog) Known(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

// Names lists canonical disciplines in timetable order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Aliases lists the lookup keys that resolve to a canonical discipline.
func (c *Catalog) Aliases(canonical string) []string {
	return append([]string(nil), c.toAliases[canonicalKey(canonical)]...)
}

// lookupKey lowercases, folds accents, drops punctuation and collapses spacing.
func lookupKey(text string) string {
	folded := foldAccents(strings.ToLower(text))
	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func canonicalKey(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

var accentFolder = strings.NewReplacer(
	"à", "a", "á", "a", "è", "e", "é", "e", "ì", "i", "í", "i", "ò", "o", "ó", "o", "ù", "u", "ú", "u",
)

func foldAccents(s string) string {
	return accentFolder.Replace(s)
}
