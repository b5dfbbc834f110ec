// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags is the closed set of structural elements a sanitized chapter
// may keep. Any other element's tag is dropped, attributes and all, while
// its text content is preserved; [droppedWithContent] elements (script,
// style, iframe, head) lose their text too.
var allowedTags = map[atom.Atom]bool{
	atom.P:      true,
	atom.Br:     true,
	atom.Em:     true,
	atom.I:      true,
	atom.Strong: true,
	atom.B:      true,
	atom.H1:     true,
	atom.H2:     true,
	atom.H3:     true,
	atom.Blockquote: true,
	atom.Ul:     true,
	atom.Ol:     true,
	atom.Li:     true,
	atom.Span:   true,
	atom.Div:    true,
}

// droppedWithContent are tags whose entire subtree (including text) must
// be discarded rather than unwrapped, since their content is never safe to
// surface as reading material.
var droppedWithContent = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Iframe: true,
	atom.Head:   true,
}

// sanitizeHTML parses fragment as an HTML5 fragment and re-serializes it
// keeping only [allowedTags], stripping every attribute along the way.
// The text of every node not in [droppedWithContent] is returned alongside
// for the chapter's plain-text field.
func sanitizeHTML(fragment string) (sanitizedHTML, plain string) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", fragment
	}

	var htmlBuf, textBuf strings.Builder
	for _, n := range nodes {
		walkSanitize(n, &htmlBuf, &textBuf)
	}
	return htmlBuf.String(), strings.TrimSpace(textBuf.String())
}

func walkSanitize(n *html.Node, htmlBuf, textBuf *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		htmlBuf.WriteString(html.EscapeString(n.Data))
		textBuf.WriteString(n.Data)
		return
	case html.ElementNode:
		if droppedWithContent[n.DataAtom] {
			return
		}
		keep := allowedTags[n.DataAtom]
		if keep {
			htmlBuf.WriteByte('<')
			htmlBuf.WriteString(n.Data)
			htmlBuf.WriteByte('>')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkSanitize(c, htmlBuf, textBuf)
		}
		if keep {
			htmlBuf.WriteString("</")
			htmlBuf.WriteString(n.Data)
			htmlBuf.WriteByte('>')
		}
		if blockLevel[n.DataAtom] {
			textBuf.WriteString("\n")
		}
		return
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkSanitize(c, htmlBuf, textBuf)
		}
	}
}

var blockLevel = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.Blockquote: true,
}
