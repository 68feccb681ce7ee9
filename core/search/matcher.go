package search

import (
	"regexp"
	"strings"
	"unicode"
)

// wordClass matches one word character. Letters, marks and digits of any
// script count, so Arabic text with diacritics splits into words as expected.
const wordClass = `[\p{L}\p{M}\p{N}_]`

// Matcher is a compiled keyword expression.
//
// A keyword wrapped in double quotes is a phrase: the quoted text must occur
// anywhere in a text. Any other keyword is a word list: every
// whitespace-separated token must match the start of some word. In both
// modes "*" matches any run of characters, "?" matches exactly one, and
// matching ignores case.
type Matcher struct {
	keyword  string
	phrase   bool
	patterns []*regexp.Regexp
}

// Compile builds a Matcher from keyword. An empty or blank keyword yields a
// Matcher for which Empty reports true.
func Compile(keyword string) (*Matcher, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	m := &Matcher{keyword: keyword}
	if keyword == "" {
		return m, nil
	}

	if strings.HasPrefix(keyword, `"`) && strings.HasSuffix(keyword, `"`) {
		m.phrase = true
		phrase := ""
		if len(keyword) >= 2 {
			phrase = keyword[1 : len(keyword)-1]
		}
		re, err := regexp.Compile("(?i)" + wildcardPattern(phrase))
		if err != nil {
			return nil, err
		}
		m.patterns = []*regexp.Regexp{re}
		return m, nil
	}

	for _, token := range strings.Fields(keyword) {
		re, err := regexp.Compile("(?i)" + boundaryFor(token) + wildcardPattern(token) + wordClass + "*")
		if err != nil {
			return nil, err
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(keyword string) *Matcher {
	m, err := Compile(keyword)
	if err != nil {
		panic("search: Compile(" + keyword + "): " + err.Error())
	}
	return m
}

// Empty reports whether the matcher has no keyword.
func (m *Matcher) Empty() bool {
	return m == nil || m.keyword == ""
}

// IsPhrase reports whether the keyword was a quoted phrase.
func (m *Matcher) IsPhrase() bool {
	return m != nil && m.phrase
}

// String returns the normalized keyword.
func (m *Matcher) String() string {
	if m == nil {
		return ""
	}
	return m.keyword
}

// Match reports whether text satisfies every compiled pattern.
// An empty matcher matches any text.
func (m *Matcher) Match(text string) bool {
	if m == nil {
		return true
	}
	for _, re := range m.patterns {
		if !re.MatchString(text) {
			return false
		}
	}
	return true
}

// wildcardPattern escapes token literally, turning "*" into ".*" and "?" into ".".
func wildcardPattern(token string) string {
	var sb strings.Builder
	for _, r := range token {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

// boundaryFor returns the word-boundary prefix for a token. A token starting
// with a word character must not be preceded by one; a token starting with a
// literal non-word character must follow one. Wildcard-led tokens are treated
// as word-led.
func boundaryFor(token string) string {
	for _, r := range token {
		if r == '*' || r == '?' || isWordRune(r) {
			return `(?:^|[^\p{L}\p{M}\p{N}_])`
		}
		return wordClass
	}
	return ""
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r)
}
