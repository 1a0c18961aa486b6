package text

import (
	"strings"
	"unicode"

	"golang.org/x/image/font"
)

// closers never start a line; they stay on the line of the preceding token.
const closers = "，。、；：！？）》」』】〕…,.;:!?)]"

type token struct {
	text  string
	space bool // whitespace preceded the token in the source
}

// Wrap breaks s into lines whose measured width does not exceed maxWidth.
// CJK text breaks between any two characters, other scripts break at
// whitespace, and tokens wider than a line are split between characters.
// A single character wider than maxWidth is returned on its own line.
// Explicit newlines start a new line. Blank input yields no lines.
func Wrap(face font.Face, s string, maxWidth int) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var lines []string
	for _, paragraph := range strings.Split(s, "\n") {
		lines = append(lines, wrapParagraph(face, paragraph, maxWidth)...)
	}
	return lines
}

func wrapParagraph(face font.Face, paragraph string, maxWidth int) []string {
	var lines []string
	line := ""

	for _, tok := range tokenize(paragraph) {
		candidate := tok.text
		if line != "" {
			if tok.space {
				candidate = line + " " + tok.text
			} else {
				candidate = line + tok.text
			}
		}
		if Width(face, candidate) <= maxWidth {
			line = candidate
			continue
		}

		if line != "" {
			lines = append(lines, line)
			line = ""
		}
		if Width(face, tok.text) <= maxWidth {
			line = tok.text
			continue
		}

		pieces := breakToken(face, tok.text, maxWidth)
		lines = append(lines, pieces[:len(pieces)-1]...)
		line = pieces[len(pieces)-1]
	}

	if line != "" || len(lines) == 0 {
		lines = append(lines, line)
	}
	return lines
}

func breakToken(face font.Face, s string, maxWidth int) []string {
	var pieces []string
	cur := ""
	for _, r := range s {
		next := cur + string(r)
		if cur != "" && Width(face, next) > maxWidth {
			pieces = append(pieces, cur)
			cur = string(r)
			continue
		}
		cur = next
	}
	return append(pieces, cur)
}

func tokenize(s string) []token {
	var (
		tokens []token
		word   strings.Builder
		space  bool
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, token{text: word.String(), space: space})
			word.Reset()
			space = false
		}
	}

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()
			space = true
		case strings.ContainsRune(closers, r):
			switch {
			case word.Len() > 0:
				word.WriteRune(r)
			case len(tokens) > 0 && !space:
				tokens[len(tokens)-1].text += string(r)
			default:
				tokens = append(tokens, token{text: string(r), space: space})
				space = false
			}
		case isWide(r):
			flush()
			tokens = append(tokens, token{text: string(r), space: space})
			space = false
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// isWide reports runes from scripts written without spaces between words.
func isWide(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
		return true
	}
	return (r >= 0x3000 && r <= 0x303f) || (r >= 0xff00 && r <= 0xffef)
}
