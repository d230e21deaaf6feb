// Package catalog holds the static table of known regulations and the article
// numbers each of them contains.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one known regulation. An empty Articles set means citations to this
// regulation never carry an article number.
type Entry struct {
	Name     string
	Articles map[int]struct{}
}

// HasArticles reports whether the regulation uses article numbering.
func (e Entry) HasArticles() bool {
	return len(e.Articles) > 0
}

// HasArticle reports whether n is a valid article of the regulation.
func (e Entry) HasArticle(n int) bool {
	_, ok := e.Articles[n]
	return ok
}

// Catalog is immutable after construction.
type Catalog struct {
	entries    []Entry
	byName     map[string]int
	exclusions []string
	prefixes   []string
}

// DefaultPrefixes are the regulation-type prefixes recognised in citations.
var DefaultPrefixes = []string{
	"Law",
	"Government Regulation",
	"Ministerial Regulation",
	"Presidential Regulation",
	"Agency Regulation",
	"Deputy Decision",
	"Circular",
	"Local Regulation",
}

// New builds a catalog. Entries keep their order; duplicate names are rejected.
// Nil prefixes means DefaultPrefixes.
func New(entries []Entry, exclusions, prefixes []string) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(entries))}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog entry with empty name")
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", name)
		}
		articles := make(map[int]struct{}, len(e.Articles))
		for n := range e.Articles {
			if n <= 0 {
				return nil, fmt.Errorf("%s: article numbers must be positive, got %d", name, n)
			}
			articles[n] = struct{}{}
		}
		c.byName[name] = len(c.entries)
		c.entries = append(c.entries, Entry{Name: name, Articles: articles})
	}
	for _, x := range exclusions {
		if x = strings.TrimSpace(x); x != "" {
			c.exclusions = append(c.exclusions, x)
		}
	}
	if prefixes == nil {
		prefixes = DefaultPrefixes
	}
	c.prefixes = append([]string(nil), prefixes...)
	return c, nil
}

// Entries returns the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Names returns the regulation names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Name
	}
	return out
}

// Lookup returns the entry with exactly this name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Exclusions returns the names of regulations that must not be used as sources.
func (c *Catalog) Exclusions() []string {
	return append([]string(nil), c.exclusions...)
}

// IsExcluded reports whether name is on the exclusion list.
func (c *Catalog) IsExcluded(name string) bool {
	for _, x := range c.exclusions {
		if x == name {
			return true
		}
	}
	return false
}

// Usable returns the non-excluded regulation names in catalog order.
func (c *Catalog) Usable() []string {
	var out []string
	for _, e := range c.entries {
		if !c.IsExcluded(e.Name) {
			out = append(out, e.Name)
		}
	}
	return out
}

// Prefixes returns the citation prefixes.
func (c *Catalog) Prefixes() []string {
	return append([]string(nil), c.prefixes...)
}

// Range returns the set {from, ..., to}.
func Range(from, to int) map[int]struct{} {
	out := make(map[int]struct{}, max(0, to-from+1))
	for n := from; n <= to; n++ {
		out[n] = struct{}{}
	}
	return out
}

// Default returns the built-in catalog of procurement regulations.
func Default() *Catalog {
	c, err := New([]Entry{
		{Name: "Presidential Regulation No 16 of 2018", Articles: Range(1, 94)},
		{Name: "Presidential Regulation No 12 of 2021", Articles: Range(1, 2)},
		{Name: "Presidential Regulation No 46 of 2025", Articles: Range(1, 2)},
		{Name: "Law No 2 of 2017", Articles: Range(1, 106)},
		{Name: "Law No 3 of 2024", Articles: Range(1, 2)},
		{Name: "Government Regulation No 22 of 2020", Articles: Range(1, 110)},
		{Name: "Agency Regulation No 12 of 2021", Articles: Range(1, 18)},
		{Name: "Circular No 3 of 2020"},
		{Name: "Deputy Decision No 1 of 2021"},
	}, []string{
		"Presidential Regulation No 54 of 2010",
		"Presidential Regulation No 4 of 2015",
	}, nil)
	if err != nil {
		panic(err)
	}
	return c
}

type fileEntry struct {
	Name     string `yaml:"name"`
	Articles string `yaml:"articles"`
}

type fileFormat struct {
	Regulations []fileEntry `yaml:"regulations"`
	Exclusions  []string    `yaml:"exclusions"`
	Prefixes    []string    `yaml:"citation_prefixes"`
}

// LoadFile reads a catalog from YAML:
//
//	regulations:
//	  - name: Presidential Regulation No 16 of 2018
//	    articles: "1-94"
//	  - name: Circular No 3 of 2020
//	exclusions:
//	  - Presidential Regulation No 54 of 2010
//	citation_prefixes: [Law, Presidential Regulation]
//
// Articles are comma-separated numbers or ranges; empty means no numbering.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	entries := make([]Entry, 0, len(f.Regulations))
	for _, r := range f.Regulations {
		articles, err := ParseArticles(r.Articles)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Name, err)
		}
		entries = append(entries, Entry{Name: r.Name, Articles: articles})
	}
	var prefixes []string
	if len(f.Prefixes) > 0 {
		prefixes = f.Prefixes
	}
	return New(entries, f.Exclusions, prefixes)
}

// ParseArticles parses "1-94, 96, 100-102" into a set.
func ParseArticles(s string) (map[int]struct{}, error) {
	out := map[int]struct{}{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid article %q", part)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid article range %q", part)
			}
		}
		if from <= 0 || to < from {
			return nil, fmt.Errorf("invalid article range %q", part)
		}
		for n := from; n <= to; n++ {
			out[n] = struct{}{}
		}
	}
	return out, nil
}

// FormatArticles renders a set as compact ranges, e.g. "1-94, 96".
func FormatArticles(articles map[int]struct{}) string {
	nums := make([]int, 0, len(articles))
	for n := range articles {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var parts []string
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(nums[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", nums[i], nums[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
