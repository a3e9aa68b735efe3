// Package textbook analyzes plain-text book files: metadata heuristics,
// language detection and chapter segmentation.
package textbook

import (
	"regexp"
	"strings"

	"github.com/islabooks/isla/internal/textenc"
)

// HeadingMatcher recognizes one chapter-heading convention. Matchers run in
// order against each line; the first match starts a new chapter. Callers may
// pass their own list to support additional conventions.
type HeadingMatcher struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultMatchers covers the common Chinese and English heading conventions.
var DefaultMatchers = []HeadingMatcher{
	{Name: "zh-chapter", Pattern: regexp.MustCompile(`^第[一二三四五六七八九十百千零\d]+章`)},
	{Name: "en-chapter", Pattern: regexp.MustCompile(`^Chapter\s+\d+`)},
	{Name: "zh-section", Pattern: regexp.MustCompile(`^第[一二三四五六七八九十百千零\d]+节`)},
	{Name: "numeric-dot", Pattern: regexp.MustCompile(`^\d+\.`)},
	{Name: "zh-enumerated", Pattern: regexp.MustCompile(`^[一二三四五六七八九十]+、`)},
}

// fallbackChapterTitle names the single chapter produced when no heading
// matches anywhere in the text.
const fallbackChapterTitle = "正文"

// Options configures analysis defaults.
type Options struct {
	// FilenameStem replaces the title when the first line is unusable.
	FilenameStem string
	// Matchers overrides DefaultMatchers when non-nil.
	Matchers []HeadingMatcher
	// FallbackEncoding is the legacy decoder tried after UTF-8 and UTF-16.
	// Zero value means GB18030.
	FallbackEncoding textenc.Fallback
}

// Analysis is the extracted structure of a text file.
type Analysis struct {
	Title    string
	Author   string
	Language string
	Encoding string
	Chapters []Chapter
}

// Chapter is one segmented chapter.
type Chapter struct {
	Number  int
	Title   string
	Content string
}

const (
	headScanLines  = 10
	maxTitleLen    = 100
	languageSample = 1000
	cjkThreshold   = 0.3
)

var authorMarkers = []string{"作者：", "作者:", "Author:", "author:"}

// Analyze decodes data and extracts title, author, language and chapters.
func Analyze(data []byte, opts Options) (*Analysis, error) {
	text, encName, err := textenc.Decode(data, opts.FallbackEncoding)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Title:    opts.FilenameStem,
		Language: DetectLanguage(text),
		Encoding: encName,
	}

	head := headLines(text, headScanLines)
	if len(head) > 0 && len([]rune(head[0])) < maxTitleLen {
		a.Title = head[0]
	}
	for _, line := range head {
		if author, ok := stripAuthorMarker(line); ok {
			a.Author = author
			break
		}
	}

	matchers := opts.Matchers
	if matchers == nil {
		matchers = DefaultMatchers
	}
	a.Chapters = Segment(text, matchers)

	return a, nil
}

// headLines returns the first n non-empty trimmed lines.
func headLines(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}

// stripAuthorMarker returns the author name when a line carries one of the
// recognized author markers.
func stripAuthorMarker(line string) (string, bool) {
	for _, marker := range authorMarkers {
		idx := strings.Index(strings.ToLower(line), strings.ToLower(marker))
		if idx < 0 {
			continue
		}
		author := strings.TrimSpace(line[idx+len(marker):])
		if author != "" {
			return author, true
		}
	}
	return "", false
}

// DetectLanguage classifies text by CJK ideograph ratio over the first 1000
// characters: above 30% is Simplified Chinese, anything else English. Also
// used standalone on chapter text.
func DetectLanguage(text string) string {
	sampled, cjk := 0, 0
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		sampled++
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		}
		if sampled == languageSample {
			break
		}
	}
	if sampled > 0 && float64(cjk)/float64(sampled) > cjkThreshold {
		return "zh-Hans"
	}
	return "en"
}

// Segment splits text into chapters at heading lines. A line matching any
// matcher starts a new chapter and closes the previous one. Front matter
// before the first heading is discarded. When nothing matches, the whole
// input becomes a single chapter.
func Segment(text string, matchers []HeadingMatcher) []Chapter {
	var chapters []Chapter
	var current *Chapter
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(body.String())
		body.Reset()
		current.Number = len(chapters) + 1
		chapters = append(chapters, *current)
		current = nil
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)

		if heading, ok := matchHeading(line, matchers); ok {
			if current != nil && current.Title == fallbackChapterTitle && len(chapters) == 0 {
				// Front matter accumulated before the first heading.
				current = nil
				body.Reset()
			}
			flush()
			current = &Chapter{Title: heading}
			continue
		}

		if current == nil {
			if line == "" {
				continue
			}
			current = &Chapter{Title: fallbackChapterTitle}
		}
		body.WriteString(rawLine)
		body.WriteString("\n")
	}
	flush()

	return chapters
}

// matchHeading reports whether line is a chapter heading, returning the
// chapter title with the heading prefix stripped.
func matchHeading(line string, matchers []HeadingMatcher) (string, bool) {
	if line == "" {
		return "", false
	}
	for _, m := range matchers {
		loc := m.Pattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(line[loc[1]:], " \t：:、.．"))
		if title == "" {
			// Bare headings like "第一章" keep the heading itself as title.
			title = line
		}
		return title, true
	}
	return "", false
}
