// Package xml wraps xmlquery and xpath for the corpus and notes documents:
// parsing, streaming one element at a time, compiled XPath selectors, and
// indented output of documents built in memory.
//
// Security Notes:
//   - Parsing goes through xmlquery, which uses Go's encoding/xml and never
//     fetches external entities.
//   - Validate disables entity expansion entirely.
package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/VerseExplorer/core/encoding"
)

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node represents an XML element.
type Node struct {
	node *xmlquery.Node
}

// ValidationResult contains the result of XML validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Line    int
	Message string
}

// FormatOptions controls XML output.
type FormatOptions struct {
	Indent      string // Indentation string (e.g., "    " or "\t")
	Declaration bool   // Write an <?xml?> declaration first
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	return ParseReader(bytes.NewReader(data))
}

// ParseReader parses XML from r and returns a Document.
func ParseReader(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Validate checks that data is well-formed XML.
//
// Security: entity expansion is disabled (CWE-611).
func Validate(data []byte) ValidationResult {
	result := ValidationResult{Valid: true}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				line = syn.Line
			}
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{Line: line, Message: err.Error()})
			break
		}
	}
	return result
}

// Selector is a compiled XPath expression.
type Selector struct {
	expr *xpath.Expr
	src  string
}

// Compile compiles an XPath expression for repeated use.
func Compile(expr string) (*Selector, error) {
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return &Selector{expr: e, src: expr}, nil
}

// MustCompile is like Compile but panics if the expression is invalid.
func MustCompile(expr string) *Selector {
	s, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the source expression.
func (s *Selector) String() string {
	return s.src
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d == nil || d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// Select returns every node matching s.
func (d *Document) Select(s *Selector) []*Node {
	if d == nil || d.root == nil {
		return nil
	}
	return wrap(xmlquery.QuerySelectorAll(d.root, s.expr))
}

// XPath compiles expr and returns the matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	s, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return d.Select(s), nil
}

// Select returns every node below n matching s.
func (n *Node) Select(s *Selector) []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	return wrap(xmlquery.QuerySelectorAll(n.node, s.expr))
}

// SelectFirst returns the first node below n matching s, or nil.
func (n *Node) SelectFirst(s *Selector) *Node {
	if n == nil || n.node == nil {
		return nil
	}
	found := xmlquery.QuerySelector(n.node, s.expr)
	if found == nil {
		return nil
	}
	return &Node{node: found}
}

func wrap(nodes []*xmlquery.Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = &Node{node: n}
	}
	return out
}

// Name returns the element name.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns all text content of the node and its descendants.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Attr returns the value of a specific attribute.
func (n *Node) Attr(name string) string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// AttrInt parses a decimal integer attribute.
func (n *Node) AttrInt(name string) (int, error) {
	raw := strings.TrimSpace(n.Attr(name))
	if raw == "" {
		return 0, fmt.Errorf("<%s> missing %s attribute", n.Name(), name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("<%s> %s=%q is not an integer", n.Name(), name, raw)
	}
	return v, nil
}

// StreamReader yields the elements matching an XPath one at a time without
// building the whole document in memory.
type StreamReader struct {
	parser *xmlquery.StreamParser
}

// NewStreamReader creates a StreamReader for elements matching expr.
func NewStreamReader(r io.Reader, expr string) (*StreamReader, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	p, err := xmlquery.CreateStreamParser(r, expr)
	if err != nil {
		return nil, fmt.Errorf("creating stream parser: %w", err)
	}
	return &StreamReader{parser: p}, nil
}

// Next returns the next matching element, or io.EOF when the input is done.
func (s *StreamReader) Next() (*Node, error) {
	n, err := s.parser.Read()
	if err != nil {
		return nil, err
	}
	return &Node{node: n}, nil
}

// Element is an element of a document under construction.
type Element struct {
	node *xmlquery.Node
}

// NewElement creates a detached element.
func NewElement(name string) *Element {
	return &Element{node: &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}}
}

// SetAttr appends an attribute and returns e.
func (e *Element) SetAttr(name, value string) *Element {
	xmlquery.AddAttr(e.node, name, value)
	return e
}

// SetText appends a text child and returns e.
func (e *Element) SetText(text string) *Element {
	xmlquery.AddChild(e.node, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
	return e
}

// Add creates a child element and returns it.
func (e *Element) Add(name string) *Element {
	child := NewElement(name)
	xmlquery.AddChild(e.node, child.node)
	return child
}

// Render writes root and its descendants as indented XML.
func Render(root *Element, opts FormatOptions) []byte {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	var buf bytes.Buffer
	if opts.Declaration {
		buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	}
	formatNode(&buf, root.node, 0, opts.Indent)
	return buf.Bytes()
}

// formatNode writes an element. Elements holding only text keep it inline;
// elements with element children put each child on its own line.
func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	writeIndent(w, depth, indent)
	w.WriteString("<")
	w.WriteString(n.Data)
	for _, attr := range n.Attr {
		w.WriteString(" ")
		w.WriteString(attr.Name.Local)
		w.WriteString(`="`)
		w.WriteString(encoding.EscapeXMLAttr(attr.Value))
		w.WriteString(`"`)
	}

	if n.FirstChild == nil {
		w.WriteString("/>\n")
		return
	}

	hasElements := false
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			hasElements = true
			break
		}
	}

	w.WriteString(">")
	if hasElements {
		w.WriteString("\n")
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				formatNode(w, child, depth+1, indent)
			}
		}
		writeIndent(w, depth, indent)
	} else {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.TextNode {
				w.WriteString(encoding.EscapeXMLText(child.Data))
			}
		}
	}
	w.WriteString("</")
	w.WriteString(n.Data)
	w.WriteString(">\n")
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}
