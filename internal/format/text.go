// Package format converts email bodies into prompt-friendly plain text.
package format

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var skipTags = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"div": true, "dl": true, "dt": true, "dd": true, "fieldset": true,
	"figure": true, "footer": true, "form": true, "header": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "ul": true,
}

// HTML2Text renders an HTML email body as plain text. Paragraph-like blocks
// are separated by a blank line, table rows and list items by a newline.
// Input that cannot be parsed is returned unchanged.
func HTML2Text(raw []byte) string {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}

	var sb strings.Builder
	walk(doc, &sb)

	return normalizeLines(sb.String())
}

func walk(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(collapseSpace(n.Data))
		return
	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}

		switch {
		case n.Data == "br":
			sb.WriteByte('\n')
			return
		case n.Data == "li":
			sb.WriteString("\n- ")
		case blockTags[n.Data]:
			sb.WriteByte('\n')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, sb)
	}

	if n.Type != html.ElementNode {
		return
	}

	switch {
	case blockTags[n.Data], n.Data == "tr":
		sb.WriteByte('\n')
	case n.Data == "td", n.Data == "th":
		sb.WriteByte(' ')
	}
}

// collapseSpace folds whitespace runs into one space, keeping a single space
// at either edge when the text had one.
func collapseSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")

	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}

	out := strings.Join(fields, " ")
	if strings.TrimLeftFunc(s, unicode.IsSpace) != s {
		out = " " + out
	}
	if strings.TrimRightFunc(s, unicode.IsSpace) != s {
		out += " "
	}

	return out
}

// normalizeLines trims every line and keeps at most one blank line between
// non-empty ones.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	blank := false
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, l)
	}

	return strings.Join(out, "\n")
}
