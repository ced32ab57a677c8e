package tags

import (
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"zotero-sync/core/zotero"
)

// TagMap groups tag records by their literal string. A string maps to more than one
// record only when the records differ in type.
type TagMap map[string][]zotero.TagRecord

// TagToken is a cluster of spellings of one tag.
type TagToken struct {
	Token  string             `json:"token"`
	Roam   []string           `json:"roam"`
	Zotero []zotero.TagRecord `json:"zotero"`
}

// Index is the categorized tag list of a library.
type Index struct {
	// Letters lists the buckets in order.
	Letters []string `json:"letters"`
	// Tokens maps each bucket to its clusters, sorted by token.
	Tokens map[string][]TagToken `json:"tokens"`
}

// BuildMap groups records by tag string, collapsing exact duplicates.
func BuildMap(records []zotero.TagRecord) TagMap {
	m := make(TagMap, len(records))
	for _, r := range records {
		if slices.Contains(m[r.Tag], r) {
			continue
		}
		m[r.Tag] = append(m[r.Tag], r)
	}
	return m
}

// BuildDictionary buckets strings by their lower-cased first character. Each bucket is sorted.
func BuildDictionary(keys []string) map[string][]string {
	dict := make(map[string][]string)
	for _, k := range keys {
		if k == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(k)
		initial := strings.ToLower(string(r))
		dict[initial] = append(dict[initial], k)
	}
	for _, bucket := range dict {
		sort.Strings(bucket)
	}
	return dict
}

// Categorize clusters the tags of m. Within each bucket strings are visited in
// descending order; a string joins the first existing token it contains as a whole
// word (case-insensitive, hyphenated tokens also match their spaced and joined
// forms), otherwise it opens a new token named after its lower-cased spelling.
func Categorize(m TagMap) Index {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	dict := BuildDictionary(keys)

	idx := Index{
		Letters: make([]string, 0, len(dict)),
		Tokens:  make(map[string][]TagToken, len(dict)),
	}
	for letter, bucket := range dict {
		idx.Letters = append(idx.Letters, letter)
		idx.Tokens[letter] = cluster(bucket, m)
	}
	sort.Strings(idx.Letters)
	return idx
}

func cluster(bucket []string, m TagMap) []TagToken {
	ordered := slices.Clone(bucket)
	sort.Sort(sort.Reverse(sort.StringSlice(ordered)))

	var tokens []TagToken
	for _, elem := range ordered {
		i := slices.IndexFunc(tokens, func(tk TagToken) bool {
			return matchesToken(elem, tk.Token)
		})
		if i < 0 {
			tokens = append(tokens, TagToken{
				Token:  strings.ToLower(elem),
				Roam:   []string{},
				Zotero: slices.Clone(m[elem]),
			})
			continue
		}
		tokens[i].Zotero = append(tokens[i].Zotero, m[elem]...)
	}

	sort.SliceStable(tokens, func(a, b int) bool {
		return tokens[a].Token < tokens[b].Token
	})
	return tokens
}

// matchesToken reports whether token occurs in elem as a whole word, ignoring case.
// A hyphenated token also matches its spaced ("self care") and joined ("selfcare") forms.
func matchesToken(elem, token string) bool {
	e := strings.ToLower(elem)
	t := strings.ToLower(token)
	if t == "" {
		return false
	}

	variants := []string{t}
	if strings.Contains(t, "-") {
		variants = append(variants, strings.ReplaceAll(t, "-", " "), strings.ReplaceAll(t, "-", ""))
	}
	for _, v := range variants {
		if containsWord(e, v) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for offset := 0; offset <= len(s)-len(word); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if wordBoundaryBefore(s, start) && wordBoundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
