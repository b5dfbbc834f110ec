// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import (
	"encoding/base64"
	"encoding/xml"
	"strings"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// fb2Document is the subset of the FictionBook 2.0 schema ingest reads:
// description metadata, an optional inline base64 cover, and the body's
// top-level sections, each becoming one chapter.
type fb2Document struct {
	XMLName     xml.Name `xml:"FictionBook"`
	Description struct {
		TitleInfo struct {
			BookTitle string `xml:"book-title"`
			Lang      string `xml:"lang"`
			Author    struct {
				FirstName string `xml:"first-name"`
				LastName  string `xml:"last-name"`
			} `xml:"author"`
			Coverpage struct {
				Image struct {
					Href string `xml:"href,attr"`
				} `xml:"image"`
			} `xml:"coverpage"`
		} `xml:"title-info"`
	} `xml:"description"`
	Binary []struct {
		ID          string `xml:"id,attr"`
		ContentType string `xml:"content-type,attr"`
		Data        string `xml:",chardata"`
	} `xml:"binary"`
	Body []struct {
		Section []fb2Section `xml:"section"`
	} `xml:"body"`
}

type fb2Section struct {
	Title   fb2Title     `xml:"title"`
	P       []string     `xml:"p"`
	Section []fb2Section `xml:"section"`
}

type fb2Title struct {
	P []string `xml:"p"`
}

func (t fb2Title) text() string {
	return strings.TrimSpace(strings.Join(t.P, " "))
}

// parseFB2 reads a single-file FictionBook 2.0 XML document into a
// [ParsedBook]. Nested sections are flattened into one chapter per
// top-level section, matching how most FB2 readers present chaptering.
func parseFB2(data []byte) (*ParsedBook, error) {
	var doc fb2Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Corrupted("unreadable FB2 document: " + err.Error())
	}

	info := doc.Description.TitleInfo
	title := strings.TrimSpace(info.BookTitle)
	if title == "" {
		return nil, apperr.Corrupted("FB2 document has no book-title")
	}

	author := strings.TrimSpace(strings.TrimSpace(info.Author.FirstName) + " " + strings.TrimSpace(info.Author.LastName))
	parsed := &ParsedBook{
		Title:    title,
		Author:   strings.TrimSpace(author),
		Language: strings.TrimSpace(info.Lang),
	}

	coverID := strings.TrimPrefix(info.Coverpage.Image.Href, "#")
	if coverID != "" {
		for _, b := range doc.Binary {
			if b.ID == coverID {
				if raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b.Data)); err == nil {
					parsed.CoverImage = raw
				}
				break
			}
		}
	}

	var sections []fb2Section
	for _, body := range doc.Body {
		sections = append(sections, body.Section...)
	}
	for i, sec := range sections {
		parsed.Chapters = append(parsed.Chapters, sectionToChapter(i+1, sec))
	}

	if len(parsed.Chapters) == 0 {
		return nil, apperr.Corrupted("no readable sections in FB2 body")
	}
	return parsed, nil
}

// sectionToChapter flattens sec and any nested subsections into one
// chapter, joining paragraphs with blank lines the way a reflowed reader
// view would.
func sectionToChapter(number int, sec fb2Section) ParsedChapter {
	var paragraphs []string
	collectParagraphs(sec, &paragraphs)

	var htmlBuf strings.Builder
	for _, p := range paragraphs {
		htmlBuf.WriteString("<p>")
		htmlBuf.WriteString(escapeHTML(p))
		htmlBuf.WriteString("</p>")
	}

	return ParsedChapter{
		Title:       chapterTitle(number, sec.Title.text()),
		Content:     strings.Join(paragraphs, "\n\n"),
		HTMLContent: htmlBuf.String(),
	}
}

func collectParagraphs(sec fb2Section, out *[]string) {
	for _, p := range sec.P {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			*out = append(*out, trimmed)
		}
	}
	for _, sub := range sec.Section {
		collectParagraphs(sub, out)
	}
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
