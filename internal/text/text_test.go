package text

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"golang.org/x/image/font/gofont/goregular"
)

func squeeze(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestWrapNeverExceedsWidth(t *testing.T) {
	face := GoRegular().Face(28)
	const maxWidth = 300

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"short", "Draw two."},
		{"forty cjk characters", strings.Repeat("秦以法治国赏罚分明", 4) + "强兵富"},
		{"long latin", strings.Repeat("Each player discards a card and the ruler gains one favour. ", 12)},
		{"mixed scripts", "出征时 gain +2 strength，若胜则 draw a card。" + strings.Repeat("兵", 30)},
		{"unbreakable token", strings.Repeat("W", 80)},
		{"punctuation runs", strings.Repeat("，。", 40)},
		{"explicit newlines", "first line\nsecond line\n\nfourth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := Wrap(face, tt.text, maxWidth)
			for i, line := range lines {
				if w := Width(face, line); w > maxWidth {
					t.Errorf("line %d %q has width %d > %d", i, line, w, maxWidth)
				}
			}
			if got, want := squeeze(strings.Join(lines, "")), squeeze(tt.text); got != want {
				t.Errorf("wrapping lost text:\n got %q\nwant %q", got, want)
			}
		})
	}
}

func TestWrapShapes(t *testing.T) {
	face := GoRegular().Face(20)

	if lines := Wrap(face, "   ", 200); lines != nil {
		t.Errorf("blank input should give no lines, got %q", lines)
	}

	lines := Wrap(face, "card deck card deck", Width(face, "card deck"))
	if len(lines) != 2 || lines[0] != "card deck" || lines[1] != "card deck" {
		t.Errorf("unexpected word wrap: %q", lines)
	}

	lines = Wrap(face, "第一行\n\n第三行", 400)
	if len(lines) != 3 || lines[1] != "" {
		t.Errorf("explicit newlines should be kept, got %q", lines)
	}
}

func TestWrapKeepsClosersWithPrecedingText(t *testing.T) {
	face := GoRegular().Face(20)
	width := Width(face, "秦秦")
	for _, line := range Wrap(face, "秦秦，秦秦。", width+Width(face, "，")) {
		if strings.HasPrefix(line, "，") || strings.HasPrefix(line, "。") {
			t.Errorf("line starts with closing punctuation: %q", line)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []token
	}{
		{"a bc", []token{{"a", false}, {"bc", true}}},
		{"秦法", []token{{"秦", false}, {"法", false}}},
		{"秦 law。", []token{{"秦", false}, {"law。", true}}},
		{"法，兵", []token{{"法，", false}, {"兵", false}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := tokenize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResolverFallsBackToBitmap(t *testing.T) {
	r := Resolver{Candidates: []string{"does-not-exist.ttf"}, Dirs: []string{t.TempDir()}}
	if got := r.Resolve().Name(); got != "basicfont" {
		t.Errorf("Resolve() = %s, want basicfont", got)
	}
}

func TestResolverFindsFontInDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.ttf"), []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "card.ttf"), goregular.TTF, 0644); err != nil {
		t.Fatal(err)
	}

	r := Resolver{Candidates: []string{"missing.ttf", "broken.ttf", "card.ttf", EmbeddedGo}, Dirs: []string{dir}}
	if got := r.Resolve().Name(); got != "card.ttf" {
		t.Errorf("Resolve() = %s, want card.ttf", got)
	}
}

func TestResolverEmbedded(t *testing.T) {
	r := Resolver{Candidates: []string{"GoRegular"}}
	if got := r.Resolve().Name(); got != EmbeddedGo {
		t.Errorf("Resolve() = %s, want %s", got, EmbeddedGo)
	}
}

func TestInkBounds(t *testing.T) {
	face := GoRegular().Face(40)
	b := InkBounds(face, "Iron Edict")
	if b.Dx() <= 0 || b.Dy() <= 0 {
		t.Fatalf("empty ink bounds %v", b)
	}
	if b.Min.Y >= 0 {
		t.Errorf("capital letters should rise above the baseline, got %v", b)
	}
	if b.Dx() > Width(face, "Iron Edict")+2 {
		t.Errorf("ink %d much wider than advance %d", b.Dx(), Width(face, "Iron Edict"))
	}
}
