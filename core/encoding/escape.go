// Package encoding provides the text escaping shared by the corpus loader and
// the notes document writer.
package encoding

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#13;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// EscapeXMLText escapes the basic XML entities for element text.
// Line feeds are kept as is; carriage returns are written as character
// references because parsers fold a literal CR LF into LF. Characters XML
// cannot represent are dropped.
func EscapeXMLText(s string) string {
	return textEscaper.Replace(StripInvalidXML(s))
}

// EscapeXMLAttr escapes text for use in a double-quoted XML attribute.
// Whitespace control characters are written as character references so
// parsers do not normalize them to spaces.
func EscapeXMLAttr(s string) string {
	return attrEscaper.Replace(StripInvalidXML(s))
}

// StripInvalidXML removes the characters outside the XML 1.0 Char
// production, such as form feeds and other C0 controls. Invalid UTF-8
// becomes U+FFFD.
func StripInvalidXML(s string) string {
	if strings.IndexFunc(s, invalidXMLRune) < 0 && utf8.ValidString(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if invalidXMLRune(r) {
			return -1
		}
		return r
	}, strings.ToValidUTF8(s, "\uFFFD"))
}

func invalidXMLRune(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r == 0xFFFE, r == 0xFFFF:
		return true
	}
	return r > unicode.MaxRune
}

// CleanText prepares source text for the corpus: HTML entities left in the
// source (such as "&amp;quot;" double-escaped by the publisher) are decoded
// and surrounding whitespace is removed.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}
