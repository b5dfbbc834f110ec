// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// container.xml points at the package document (the .opf file) that lists
// every asset and the chapter reading order.
type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfPackage is the subset of the OPF package document ingest cares about:
// Dublin Core metadata, the manifest (id -> file mapping), and the spine
// (reading order by manifest id).
type opfPackage struct {
	Metadata struct {
		Title    string `xml:"title"`
		Creator  string `xml:"creator"`
		Language string `xml:"language"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// parseEPUB reads an EPUB (a ZIP container of XHTML documents described by
// an OPF package manifest) into a [ParsedBook].
func parseEPUB(data []byte) (*ParsedBook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Corrupted("not a valid ZIP/EPUB container: " + err.Error())
	}
	files := indexZip(zr)

	containerBytes, ok := files["META-INF/container.xml"]
	if !ok {
		return nil, apperr.Corrupted("missing META-INF/container.xml")
	}
	var container epubContainer
	if err := xml.Unmarshal(containerBytes, &container); err != nil || len(container.Rootfiles) == 0 {
		return nil, apperr.Corrupted("unreadable container.xml")
	}
	opfPath := container.Rootfiles[0].FullPath

	opfBytes, ok := files[opfPath]
	if !ok {
		return nil, apperr.Corrupted(fmt.Sprintf("missing package document %s", opfPath))
	}
	var pkg opfPackage
	if err := xml.Unmarshal(opfBytes, &pkg); err != nil {
		return nil, apperr.Corrupted("unreadable package document: " + err.Error())
	}

	opfDir := path.Dir(opfPath)
	manifestByID := make(map[string]string, len(pkg.Manifest.Items))
	var coverHref string
	for _, item := range pkg.Manifest.Items {
		manifestByID[item.ID] = path.Join(opfDir, item.Href)
		if strings.Contains(item.Properties, "cover-image") {
			coverHref = path.Join(opfDir, item.Href)
		}
	}

	parsed := &ParsedBook{
		Title:    strings.TrimSpace(pkg.Metadata.Title),
		Author:   strings.TrimSpace(pkg.Metadata.Creator),
		Language: strings.TrimSpace(pkg.Metadata.Language),
	}
	if parsed.Title == "" {
		return nil, apperr.Corrupted("package document has no title")
	}

	if coverHref != "" {
		if raw, ok := files[coverHref]; ok {
			parsed.CoverImage = raw
		}
	}

	for i, ref := range pkg.Spine.ItemRefs {
		href, ok := manifestByID[ref.IDRef]
		if !ok {
			continue
		}
		raw, ok := files[href]
		if !ok {
			continue
		}
		title, sanitized, plain := extractXHTMLChapter(raw)
		parsed.Chapters = append(parsed.Chapters, ParsedChapter{
			Title:       chapterTitle(i+1, title),
			Content:     plain,
			HTMLContent: sanitized,
		})
	}

	if len(parsed.Chapters) == 0 {
		return nil, apperr.Corrupted("no readable chapters in spine")
	}
	return parsed, nil
}

// indexZip reads every file in zr into memory, keyed by its archive path.
// EPUBs are small enough (the caller already enforced the upload size cap)
// that holding the whole container in memory during parsing is acceptable.
func indexZip(zr *zip.Reader) map[string][]byte {
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		out[f.Name] = raw
	}
	return out
}

// extractXHTMLChapter pulls a <title> (if present) and the sanitized body
// markup/text out of one spine item's XHTML document.
func extractXHTMLChapter(raw []byte) (title, sanitizedHTML, plain string) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	var bodyBuf bytes.Buffer
	inBody, inTitle := false, false
	var titleBuf bytes.Buffer

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "body":
				inBody = true
			case "title":
				inTitle = true
			}
			if inBody {
				writeStartTag(&bodyBuf, t)
			}
		case xml.EndElement:
			if inBody {
				bodyBuf.WriteString("</" + t.Name.Local + ">")
			}
			switch t.Name.Local {
			case "body":
				inBody = false
			case "title":
				inTitle = false
			}
		case xml.CharData:
			if inTitle {
				titleBuf.Write(t)
			}
			if inBody {
				bodyBuf.Write(t)
			}
		}
	}

	sanitizedHTML, plain = sanitizeHTML(bodyBuf.String())
	return strings.TrimSpace(titleBuf.String()), sanitizedHTML, plain
}

func writeStartTag(buf *bytes.Buffer, t xml.StartElement) {
	buf.WriteByte('<')
	buf.WriteString(t.Name.Local)
	buf.WriteByte('>')
}
