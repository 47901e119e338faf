package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkEmptyInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  \n"},
		{"windows newlines only", "\r\n\r\n"},
	}

	for _, tt := range tests {
		if got := Chunk(tt.text, Config{}); len(got) != 0 {
			t.Errorf("%s: expected zero drafts, got %d", tt.name, len(got))
		}
	}
}

func TestChunkMarkdownSections(t *testing.T) {
	text := "# Installazione\nScaricare il pacchetto e avviare il programma di installazione.\n\n## Requisiti di Sistema\nSono richiesti 8 GB di RAM. I requisiti completi sono elencati sotto.\n"

	drafts := Chunk(text, Config{})

	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d: %+v", len(drafts), drafts)
	}
	if drafts[0].HeaderContext != "Installazione" {
		t.Errorf("draft 0 header = %q; want %q", drafts[0].HeaderContext, "Installazione")
	}
	if drafts[1].HeaderContext != "Requisiti di Sistema" {
		t.Errorf("draft 1 header = %q; want %q", drafts[1].HeaderContext, "Requisiti di Sistema")
	}
	if !strings.Contains(drafts[1].Content, "8 GB di RAM") {
		t.Errorf("draft 1 content lost its body: %q", drafts[1].Content)
	}
	if strings.Contains(drafts[1].Content, "Requisiti di Sistema") {
		t.Errorf("header line leaked into the body: %q", drafts[1].Content)
	}
}

func TestChunkPreambleHasNoHeader(t *testing.T) {
	text := "Introduzione generale al documento.\n\n# Capitolo Uno\nContenuto del capitolo."

	drafts := Chunk(text, Config{})

	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].HeaderContext != "" {
		t.Errorf("preamble draft must not carry a header, got %q", drafts[0].HeaderContext)
	}
	if drafts[1].HeaderContext != "Capitolo Uno" {
		t.Errorf("draft 1 header = %q", drafts[1].HeaderContext)
	}
}

func TestChunkHeaderVariants(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantHeader string
	}{
		{"atx closing hashes", "## Titolo ##\ncorpo del testo", "Titolo"},
		{"setext equals", "Titolo\n======\ncorpo del testo", "Titolo"},
		{"setext dashes", "Titolo\n---\ncorpo del testo", "Titolo"},
		{"caps line", "\nREQUISITI DI SISTEMA\n\ncorpo del testo", "REQUISITI DI SISTEMA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := Chunk(tt.text, Config{})
			if len(drafts) != 1 {
				t.Fatalf("expected 1 draft, got %d: %+v", len(drafts), drafts)
			}
			if drafts[0].HeaderContext != tt.wantHeader {
				t.Errorf("header = %q; want %q", drafts[0].HeaderContext, tt.wantHeader)
			}
			if drafts[0].Content != "corpo del testo" {
				t.Errorf("content = %q", drafts[0].Content)
			}
		})
	}
}

func TestChunkNonHeaders(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"hash without space", "#senzaspazio\ncorpo"},
		{"thematic break alone", "prima parte\n\n---\n\nseconda parte"},
		{"caps line glued to text", "REQUISITI:\nsubito il corpo senza riga vuota"},
		{"lowercase title line", "requisiti\n\ncorpo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range Chunk(tt.text, Config{}) {
				if d.HeaderContext != "" {
					t.Errorf("unexpected header %q in %+v", d.HeaderContext, d)
				}
			}
		})
	}
}

func TestChunkHeaderWithoutBody(t *testing.T) {
	text := "# Vuoto\n\n# Pieno\nqualcosa"

	drafts := Chunk(text, Config{})

	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d: %+v", len(drafts), drafts)
	}
	if drafts[0].HeaderContext != "Pieno" {
		t.Errorf("header = %q", drafts[0].HeaderContext)
	}
}

func TestChunkOversizedSectionBecomesBareWindows(t *testing.T) {
	body := strings.Repeat("abcdefghij", 30) // 300 runes
	text := "# Sezione Lunga\n" + body

	cfg := Config{MaxChunkChars: 100, OverlapRatio: 0.10}
	drafts := Chunk(text, cfg)

	if len(drafts) < 3 {
		t.Fatalf("expected at least 3 windows, got %d", len(drafts))
	}
	for i, d := range drafts {
		if d.HeaderContext != "" {
			t.Errorf("window %d carries a header: %q", i, d.HeaderContext)
		}
		if n := len([]rune(d.Content)); n > 100 {
			t.Errorf("window %d has %d runes, limit 100", i, n)
		}
	}

	// step is 90, so window i+1 must start with the last 10 runes of window i
	first := []rune(drafts[0].Content)
	tail := string(first[len(first)-10:])
	if !strings.HasPrefix(drafts[1].Content, tail) {
		t.Errorf("overlap broken: %q does not start with %q", drafts[1].Content[:20], tail)
	}
}

func TestChunkUnstructuredFallback(t *testing.T) {
	text := strings.Repeat("parola ", 100) // ~700 runes, no headers

	cfg := Config{UnstructuredMaxChunkChars: 200, OverlapRatio: 0.10}
	drafts := Chunk(text, cfg)

	if len(drafts) < 3 {
		t.Fatalf("expected several windows, got %d", len(drafts))
	}
	for i, d := range drafts {
		if d.HeaderContext != "" {
			t.Errorf("window %d carries a header: %q", i, d.HeaderContext)
		}
	}
}

func TestChunkSmallUnstructuredIsSingleDraft(t *testing.T) {
	drafts := Chunk("solo un paragrafo breve", Config{})

	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	if drafts[0].HeaderContext != "" || drafts[0].Content != "solo un paragrafo breve" {
		t.Errorf("unexpected draft: %+v", drafts[0])
	}
}

func TestChunkWindowsRespectRuneBoundaries(t *testing.T) {
	text := strings.Repeat("perché è già così àèìòù ", 50)

	cfg := Config{UnstructuredMaxChunkChars: 64, OverlapRatio: 0.15}
	for i, d := range Chunk(text, cfg) {
		if !utf8.ValidString(d.Content) {
			t.Errorf("window %d split inside a rune: %q", i, d.Content)
		}
	}
}

func TestChunkOverlapRatioClamped(t *testing.T) {
	body := strings.Repeat("x", 1000)

	// a ratio above the legal window must behave like the maximum (0.20)
	wide := Chunk(body, Config{UnstructuredMaxChunkChars: 100, OverlapRatio: 0.90})
	capped := Chunk(body, Config{UnstructuredMaxChunkChars: 100, OverlapRatio: 0.20})

	if len(wide) != len(capped) {
		t.Errorf("clamp failed: ratio 0.90 made %d windows, ratio 0.20 made %d", len(wide), len(capped))
	}
}

func TestChunkDocumentOrderPreserved(t *testing.T) {
	text := "# Primo\nuno\n\n# Secondo\ndue\n\n# Terzo\ntre"

	drafts := Chunk(text, Config{})

	if len(drafts) != 3 {
		t.Fatalf("expected 3 drafts, got %d", len(drafts))
	}
	wantOrder := []string{"uno", "due", "tre"}
	for i, want := range wantOrder {
		if drafts[i].Content != want {
			t.Errorf("draft %d content = %q; want %q", i, drafts[i].Content, want)
		}
	}
}

func TestNormalizeNewlines(t *testing.T) {
	got := NormalizeNewlines("a\r\nb\rc\nd")
	if got != "a\nb\nc\nd" {
		t.Errorf("NormalizeNewlines = %q", got)
	}
}
