// Package citation checks "<regulation>, Article <n>" references in generated text
// against the regulation catalog and annotates the ones that cannot be trusted.
package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/regubot/internal/catalog"
)

// Annotation suffixes.
const (
	ExcludedSuffix     = " (excluded from use)"
	UnverifiableSuffix = " (article not verifiable)"
)

// Citation is one match in a text. Start and End are byte offsets of the whole
// "<name>, Article <n>" span. Article is -1 when the number does not fit an int.
type Citation struct {
	Name    string
	Article int
	Start   int
	End     int
}

var (
	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

// pattern compiles (and memoises) the citation regexp for a prefix set. A name is a
// prefix followed by tokens such as "No", "of", numerals and capitalised words.
func pattern(prefixes []string) *regexp.Regexp {
	sorted := append([]string(nil), prefixes...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	key := strings.Join(sorted, "\x00")

	patternsMu.Lock()
	defer patternsMu.Unlock()
	if re, ok := patterns[key]; ok {
		return re
	}
	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(p), " ", `[ \t]+`)
	}
	re := regexp.MustCompile(`\b((?:` + strings.Join(quoted, "|") + `)` +
		`(?:[ \t]+(?:No\.?|of|[0-9][\w/.-]*[\w/]|[0-9]|[A-Z][\w.-]*[\w]|[A-Z]))*)` +
		`,[ \t]*Article[ \t]+([0-9]+)`)
	patterns[key] = re
	return re
}

// Scan returns the citations in text, leftmost first and non-overlapping.
func Scan(text string, prefixes []string) []Citation {
	if len(prefixes) == 0 {
		return nil
	}
	var out []Citation
	for _, m := range pattern(prefixes).FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.Atoi(text[m[4]:m[5]])
		if err != nil {
			n = -1
		}
		out = append(out, Citation{Name: text[m[2]:m[3]], Article: n, Start: m[0], End: m[1]})
	}
	return out
}

// Validate rewrites each citation in text:
//   - excluded regulation: "<name> (excluded from use)"
//   - unknown regulation or article outside the catalog range: "<name> (article not verifiable)"
//   - regulation without article numbering: "<name>"
//   - otherwise unchanged.
//
// Afterwards every other literal occurrence of an excluded name is suffixed with
// " (excluded from use)". Text outside these spans is left untouched.
func Validate(text string, cat *catalog.Catalog, exclusions []string) string {
	if text == "" {
		return text
	}
	excluded := make(map[string]struct{}, len(exclusions))
	for _, x := range exclusions {
		excluded[normalize(x)] = struct{}{}
	}

	var b strings.Builder
	last := 0
	for _, c := range Scan(text, cat.Prefixes()) {
		b.WriteString(text[last:c.Start])
		b.WriteString(rewrite(text[c.Start:c.End], c, cat, excluded))
		last = c.End
	}
	b.WriteString(text[last:])

	return annotateExcluded(b.String(), exclusions)
}

func rewrite(original string, c Citation, cat *catalog.Catalog, excluded map[string]struct{}) string {
	key := normalize(c.Name)
	if _, ok := excluded[key]; ok {
		return c.Name + ExcludedSuffix
	}
	entry, ok := lookup(cat, key)
	switch {
	case !ok:
		return c.Name + UnverifiableSuffix
	case !entry.HasArticles():
		return c.Name
	case !entry.HasArticle(c.Article):
		return c.Name + UnverifiableSuffix
	}
	return original
}

func lookup(cat *catalog.Catalog, key string) (catalog.Entry, bool) {
	if e, ok := cat.Lookup(key); ok {
		return e, true
	}
	for _, e := range cat.Entries() {
		if normalize(e.Name) == key {
			return e, true
		}
	}
	return catalog.Entry{}, false
}

// normalize collapses whitespace and treats "No." like "No".
func normalize(name string) string {
	fields := strings.Fields(name)
	for i, f := range fields {
		if f == "No." {
			fields[i] = "No"
		}
	}
	return strings.Join(fields, " ")
}

// annotateExcluded suffixes every occurrence of an excluded name that is not
// already suffixed. At each position the longest matching name wins. A name
// followed by a letter or digit is part of a longer token and is left alone.
func annotateExcluded(text string, exclusions []string) string {
	names := make([]string, 0, len(exclusions))
	for _, x := range exclusions {
		if x != "" {
			names = append(names, x)
		}
	}
	if len(names) == 0 {
		return text
	}
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	var b strings.Builder
	i := 0
	for i < len(text) {
		matched := ""
		for _, n := range names {
			if strings.HasPrefix(text[i:], n) && endsToken(text[i+len(n):]) {
				matched = n
				break
			}
		}
		if matched == "" {
			b.WriteByte(text[i])
			i++
			continue
		}
		b.WriteString(matched)
		i += len(matched)
		if !strings.HasPrefix(text[i:], ExcludedSuffix) {
			b.WriteString(ExcludedSuffix)
		}
	}
	return b.String()
}

func endsToken(rest string) bool {
	r, _ := utf8.DecodeRuneInString(rest)
	return rest == "" || !(unicode.IsLetter(r) || unicode.IsDigit(r))
}
