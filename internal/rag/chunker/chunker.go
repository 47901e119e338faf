package chunker

import (
	"math"
	"strings"
	"unicode"

	"github.com/raggio-engine/raggio/internal/config"
)

// Config controls the splitter. Zero values fall back to the deployment
// defaults; OverlapRatio is clamped to the legal window.
type Config struct {
	MaxChunkChars             int
	UnstructuredMaxChunkChars int
	OverlapRatio              float64
}

// Draft is a chunk before identity, index and embeddings are attached.
// HeaderContext is empty for every chunk that was not an intact section.
type Draft struct {
	HeaderContext string
	Content       string
}

func (c Config) withDefaults() Config {
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = config.MaxChunkChars
	}
	if c.UnstructuredMaxChunkChars <= 0 {
		c.UnstructuredMaxChunkChars = config.UnstructuredMaxChunkChars
	}
	if c.OverlapRatio == 0 {
		c.OverlapRatio = config.ChunkOverlapRatio
	}
	if c.OverlapRatio < config.MinChunkOverlapRatio {
		c.OverlapRatio = config.MinChunkOverlapRatio
	}
	if c.OverlapRatio > config.MaxChunkOverlapRatio {
		c.OverlapRatio = config.MaxChunkOverlapRatio
	}
	return c
}

// Chunk splits raw text into ordered drafts.
//
// Structure first: the text is scanned for headers (ATX "#"-"######",
// setext underlines of 3+ "="/"-", and standalone all-caps lines between
// blank lines). Each intact section body that fits MaxChunkChars becomes
// one draft carrying the header text verbatim as HeaderContext. Bodies
// over the limit are cut into fixed rune windows with the configured
// overlap; windows never carry a header, the anchor has to be genuine.
// Text without any header is windowed at UnstructuredMaxChunkChars.
// Output order is document order; empty input yields nothing.
func Chunk(rawText string, cfg Config) []Draft {
	cfg = cfg.withDefaults()

	text := NormalizeNewlines(rawText)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sections := splitSections(text)
	if len(sections) == 1 && sections[0].header == "" {
		//no structure anywhere: whole text, wide windows, no headers
		return windowDrafts(trimBlankEdges(sections[0].body), cfg.UnstructuredMaxChunkChars, cfg.OverlapRatio)
	}

	var drafts []Draft
	for _, s := range sections {
		body := trimBlankEdges(s.body)
		if body == "" {
			//a header anchoring no text produces no chunk
			continue
		}
		if s.header != "" && len([]rune(body)) <= cfg.MaxChunkChars {
			drafts = append(drafts, Draft{HeaderContext: s.header, Content: body})
			continue
		}
		drafts = append(drafts, windowDrafts(body, cfg.MaxChunkChars, cfg.OverlapRatio)...)
	}
	return drafts
}

// NormalizeNewlines folds Windows and bare-CR line endings to "\n".
func NormalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

type section struct {
	header string
	body   string
}

//header detection

func splitSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	current := section{}
	var body []string

	flush := func() {
		current.body = strings.Join(body, "\n")
		if current.header != "" || strings.TrimSpace(current.body) != "" {
			sections = append(sections, current)
		}
		body = nil
	}

	for i := 0; i < len(lines); i++ {
		if title, ok := atxHeader(lines[i]); ok {
			flush()
			current = section{header: title}
			continue
		}
		if title, ok := setextHeader(lines, i); ok {
			flush()
			current = section{header: title}
			i++ //the underline line belongs to the header
			continue
		}
		if title, ok := capsHeader(lines, i); ok {
			flush()
			current = section{header: title}
			continue
		}
		body = append(body, lines[i])
	}
	flush()

	if len(sections) == 0 {
		//blank input reduced to nothing; report one empty headerless section
		return []section{{}}
	}
	return sections
}

// atxHeader matches "#"-"######" followed by a space and a title. The
// returned title is the text as written, markers and a trailing run of
// closing "#" stripped.
func atxHeader(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level < 1 || level > 6 || level >= len(trimmed) {
		return "", false
	}
	if trimmed[level] != ' ' && trimmed[level] != '\t' {
		return "", false
	}
	title := strings.TrimSpace(trimmed[level+1:])
	title = strings.TrimRight(strings.TrimRight(title, "#"), " \t")
	if title == "" {
		return "", false
	}
	return title, true
}

// setextHeader matches a non-empty title line whose next line is 3 or more
// "=" or "-" and nothing else.
func setextHeader(lines []string, i int) (string, bool) {
	if i+1 >= len(lines) {
		return "", false
	}
	title := strings.TrimSpace(lines[i])
	if title == "" || isSetextUnderline(title) || !hasLetterOrDigit(title) {
		return "", false
	}
	if !isSetextUnderline(strings.TrimSpace(lines[i+1])) {
		return "", false
	}
	return title, true
}

func isSetextUnderline(line string) bool {
	if len(line) < 3 {
		return false
	}
	first := line[0]
	if first != '=' && first != '-' {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != first {
			return false
		}
	}
	return true
}

// capsHeader matches a standalone line of 3-80 chars whose letters are all
// uppercase, with no terminal period and a blank line (or text boundary)
// on both sides. Plain-text documents mark sections this way.
func capsHeader(lines []string, i int) (string, bool) {
	title := strings.TrimSpace(lines[i])
	runes := []rune(title)
	if len(runes) < 3 || len(runes) > 80 {
		return "", false
	}
	if strings.HasSuffix(title, ".") {
		return "", false
	}
	hasLetter := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return "", false
			}
		}
	}
	if !hasLetter {
		return "", false
	}
	if i > 0 && strings.TrimSpace(lines[i-1]) != "" {
		return "", false
	}
	if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
		return "", false
	}
	return title, true
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

//window splitting

// windowDrafts cuts body into fixed windows of maxChars runes advancing by
// maxChars minus the overlap. A body that already fits comes back as a
// single draft. Inner formatting is preserved as written.
func windowDrafts(body string, maxChars int, overlapRatio float64) []Draft {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	runes := []rune(body)
	if len(runes) <= maxChars {
		return []Draft{{Content: body}}
	}

	overlap := int(math.Round(float64(maxChars) * overlapRatio))
	step := maxChars - overlap
	if step < 1 {
		step = 1
	}

	var drafts []Draft
	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			drafts = append(drafts, Draft{Content: content})
		}
		if end == len(runes) {
			break
		}
	}
	return drafts
}

// trimBlankEdges drops leading and trailing blank lines, keeping inner
// blank lines and indentation untouched.
func trimBlankEdges(body string) string {
	lines := strings.Split(body, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}
