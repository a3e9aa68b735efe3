// Package epub extracts metadata, chapters and covers from EPUB containers.
//
// Parsing is structural rather than schema-validating: the container and
// package documents are mined with targeted patterns, which keeps slightly
// malformed files from real-world publishers readable.
package epub

import (
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/islabooks/isla/internal/archive"
	"github.com/islabooks/isla/internal/errors"
)

const containerPath = "META-INF/container.xml"

// Options configures metadata defaults.
type Options struct {
	// FallbackLanguage is used when the package document declares none.
	FallbackLanguage string
	// PlaceholderAuthor is used when no creator element is present.
	PlaceholderAuthor string
}

// Book is the fully extracted content of an EPUB file.
type Book struct {
	Title    string
	Creators []string
	Language string
	Chapters []Chapter
	Cover    *Cover
}

// Chapter is one spine document converted to plain text.
type Chapter struct {
	Number  int
	Title   string
	Content string
}

// Cover holds the raw bytes of the cover image.
type Cover struct {
	Data      []byte
	MediaType string
}

var (
	fullPathRe = regexp.MustCompile(`full-path\s*=\s*["']([^"']+)["']`)
	titleRe    = regexp.MustCompile(`(?s)<(?:[A-Za-z0-9]+:)?title[^>]*>(.*?)</(?:[A-Za-z0-9]+:)?title>`)
	creatorRe  = regexp.MustCompile(`(?s)<(?:[A-Za-z0-9]+:)?creator[^>]*>(.*?)</(?:[A-Za-z0-9]+:)?creator>`)
	languageRe = regexp.MustCompile(`(?s)<(?:[A-Za-z0-9]+:)?language[^>]*>(.*?)</(?:[A-Za-z0-9]+:)?language>`)
	itemRe     = regexp.MustCompile(`<item\b[^>]*>`)
	itemrefRe  = regexp.MustCompile(`<itemref\b[^>]*>`)
	metaRe     = regexp.MustCompile(`<meta\b[^>]*>`)
	attrRe     = regexp.MustCompile(`([A-Za-z0-9_:-]+)\s*=\s*["']([^"']*)["']`)
	headingRe  = regexp.MustCompile(`(?s)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	tagRe      = regexp.MustCompile(`<[^>]+>`)
)

// Extract parses the archive as an EPUB. It fails fast on structural errors
// in the container or package document; missing metadata falls back to
// defaults instead of failing.
func Extract(r *archive.Reader, opts Options) (*Book, error) {
	container, ok := r.Lookup(containerPath)
	if !ok {
		return nil, errors.MissingContainer("archive has no META-INF/container.xml")
	}

	containerData, err := container.Bytes()
	if err != nil {
		return nil, err
	}

	match := fullPathRe.FindSubmatch(containerData)
	if match == nil {
		return nil, errors.InvalidContainer("container.xml has no full-path root file reference")
	}
	opfPath := strings.TrimSpace(string(match[1]))
	if opfPath == "" {
		return nil, errors.InvalidContainer("container.xml full-path is empty")
	}

	opfEntry, ok := r.Lookup(opfPath)
	if !ok {
		return nil, errors.MissingPackageDoc(fmt.Sprintf("package document %s not found in archive", opfPath))
	}
	opfData, err := opfEntry.Bytes()
	if err != nil {
		return nil, err
	}
	opf := string(opfData)
	opfDir := path.Dir(opfPath)

	book := &Book{
		Title:    "Untitled",
		Creators: []string{opts.PlaceholderAuthor},
		Language: opts.FallbackLanguage,
	}

	if m := titleRe.FindStringSubmatch(opf); m != nil {
		if title := cleanText(m[1]); title != "" {
			book.Title = title
		}
	}

	var creators []string
	for _, m := range creatorRe.FindAllStringSubmatch(opf, -1) {
		if name := cleanText(m[1]); name != "" {
			creators = append(creators, name)
		}
	}
	if len(creators) > 0 {
		book.Creators = creators
	}

	if m := languageRe.FindStringSubmatch(opf); m != nil {
		if lang := cleanText(m[1]); lang != "" {
			book.Language = lang
		}
	}

	manifest := parseManifest(opf)
	book.Chapters = extractChapters(r, opf, manifest, opfDir)
	book.Cover = extractCover(r, opf, manifest, opfDir)

	return book, nil
}

// manifestItem is one entry of the OPF manifest.
type manifestItem struct {
	id         string
	href       string
	mediaType  string
	properties string
}

func parseManifest(opf string) map[string]manifestItem {
	items := make(map[string]manifestItem)
	for _, tag := range itemRe.FindAllString(opf, -1) {
		attrs := parseAttrs(tag)
		item := manifestItem{
			id:         attrs["id"],
			href:       attrs["href"],
			mediaType:  attrs["media-type"],
			properties: attrs["properties"],
		}
		if item.id != "" && item.href != "" {
			items[item.id] = item
		}
	}
	return items
}

func parseAttrs(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(tag, -1) {
		attrs[strings.ToLower(m[1])] = html.UnescapeString(m[2])
	}
	return attrs
}

// extractChapters walks the spine in order and converts each XHTML document
// to plain text. Unreadable or empty spine items are skipped; numbering stays
// sequential over the chapters that survive.
func extractChapters(r *archive.Reader, opf string, manifest map[string]manifestItem, opfDir string) []Chapter {
	var chapters []Chapter
	number := 0

	for _, tag := range itemrefRe.FindAllString(opf, -1) {
		idref := parseAttrs(tag)["idref"]
		item, ok := manifest[idref]
		if !ok || !isDocument(item) {
			continue
		}

		entry, ok := r.Lookup(resolveHref(opfDir, item.href))
		if !ok {
			continue
		}
		data, err := entry.Bytes()
		if err != nil {
			continue
		}

		content := documentText(string(data))
		if content == "" {
			continue
		}

		number++
		title := documentTitle(string(data))
		if title == "" {
			title = fmt.Sprintf("Chapter %d", number)
		}
		chapters = append(chapters, Chapter{Number: number, Title: title, Content: content})
	}

	return chapters
}

func isDocument(item manifestItem) bool {
	if item.mediaType == "application/xhtml+xml" || item.mediaType == "text/html" {
		return true
	}
	ext := strings.ToLower(path.Ext(item.href))
	return ext == ".xhtml" || ext == ".html" || ext == ".htm"
}

// documentText converts an XHTML document body to readable plain text.
func documentText(doc string) string {
	text, err := htmltomarkdown.ConvertString(doc)
	if err != nil {
		// Fall back to stripping tags when conversion chokes.
		text = tagRe.ReplaceAllString(doc, " ")
	}
	return strings.TrimSpace(html.UnescapeString(text))
}

// documentTitle picks the first heading of a document as its chapter title.
func documentTitle(doc string) string {
	if m := headingRe.FindStringSubmatch(doc); m != nil {
		return cleanText(m[1])
	}
	if m := titleRe.FindStringSubmatch(doc); m != nil {
		return cleanText(m[1])
	}
	return ""
}

// extractCover finds the cover image. Best effort: a missing or unreadable
// cover returns nil rather than an error.
func extractCover(r *archive.Reader, opf string, manifest map[string]manifestItem, opfDir string) *Cover {
	var coverItem *manifestItem

	// EPUB 2 convention: <meta name="cover" content="item-id"/>.
	for _, tag := range metaRe.FindAllString(opf, -1) {
		attrs := parseAttrs(tag)
		if strings.EqualFold(attrs["name"], "cover") && attrs["content"] != "" {
			if item, ok := manifest[attrs["content"]]; ok {
				coverItem = &item
				break
			}
		}
	}

	// EPUB 3 convention: manifest item with the cover-image property, with a
	// loose fallback on ids that mention "cover".
	if coverItem == nil {
		for _, item := range manifest {
			if !strings.HasPrefix(item.mediaType, "image/") {
				continue
			}
			if strings.Contains(item.properties, "cover-image") ||
				strings.Contains(strings.ToLower(item.id), "cover") {
				coverItem = &item
				break
			}
		}
	}

	if coverItem == nil {
		return nil
	}

	entry, ok := r.Lookup(resolveHref(opfDir, coverItem.href))
	if !ok {
		return nil
	}
	data, err := entry.Bytes()
	if err != nil || len(data) == 0 {
		return nil
	}

	mediaType := coverItem.mediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return &Cover{Data: data, MediaType: mediaType}
}

func resolveHref(opfDir, href string) string {
	href = html.UnescapeString(href)
	if opfDir == "." || opfDir == "" {
		return href
	}
	return path.Join(opfDir, href)
}

// cleanText strips nested tags, unescapes entities and trims whitespace.
func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
