package slide

import (
	"bytes"
	"io"
	"strings"
)

// Attr is a single element attribute. Values are literal and escaped on output.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of a slide document. Text holds unescaped character data.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []Node
}

// Attr returns the value of the named attribute, or "" if absent.
func (n Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// FindAll returns every descendant (and n itself) with the given element name, in document order.
func (n Node) FindAll(name string) []Node {
	var out []Node
	var walk func(Node)
	walk = func(cur Node) {
		if cur.Name == name {
			out = append(out, cur)
		}
		for _, child := range cur.Children {
			walk(child)
		}
	}
	walk(n)
	return out
}

// Document is a complete slide as a tree of elements.
type Document struct {
	Root Node
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Bytes serializes the document.
func (d Document) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = d.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo serializes the document to w.
func (d Document) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	writeNode(&sb, d.Root, 0)
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func writeNode(sb *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent)
	sb.WriteByte('<')
	sb.WriteString(n.Name)
	for _, a := range n.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(a.Value))
		sb.WriteByte('"')
	}
	switch {
	case len(n.Children) > 0:
		sb.WriteString(">\n")
		for _, child := range n.Children {
			writeNode(sb, child, depth+1)
		}
		sb.WriteString(indent)
		sb.WriteString("</")
		sb.WriteString(n.Name)
		sb.WriteString(">\n")
	case n.Text != "":
		sb.WriteByte('>')
		sb.WriteString(EscapeText(n.Text))
		sb.WriteString("</")
		sb.WriteString(n.Name)
		sb.WriteString(">\n")
	default:
		sb.WriteString("/>\n")
	}
}

// EscapeText replaces &, < and > with their entities, ampersand first. Invalid UTF-8
// becomes U+FFFD and characters XML cannot carry are dropped.
func EscapeText(s string) string {
	s = sanitize(s)
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(EscapeText(s), `"`, "&quot;")
}

func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}
