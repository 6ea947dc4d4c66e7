// Package notation turns free-form game text into bare move tokens and back.
package notation

import (
	"regexp"
	"strings"
)

var (
	moveNumberPrefix = regexp.MustCompile(`^\d+\.+`)
	nagToken         = regexp.MustCompile(`^\$\d+$`)
)

var resultTokens = map[string]struct{}{
	"1-0":     {},
	"0-1":     {},
	"1/2-1/2": {},
	"½-½":     {},
	"*":       {},
}

// Normalize strips tag pairs, comments, variations, move numbers, NAGs and
// result markers from raw, returning the remaining move tokens in order.
// The last trimTrailing tokens are dropped.
func Normalize(raw string, trimTrailing int) []string {
	fields := strings.Fields(stripMarkup(raw))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := moveNumberPrefix.ReplaceAllString(f, "")
		if tok == "" || IsResult(tok) || nagToken.MatchString(tok) {
			continue
		}
		tok = canonicalCastle(strings.TrimRight(tok, "!?"))
		if tok == "" {
			continue
		}
		out = append(out, tok)
	}
	if trimTrailing > 0 {
		if trimTrailing >= len(out) {
			return []string{}
		}
		out = out[:len(out)-trimTrailing]
	}
	return out
}

// stripMarkup blanks out [tags], {comments}, ; line comments and (variations).
func stripMarkup(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	depth := 0
	inTag, inComment, inLine, inQuote := false, false, false, false
	for _, r := range raw {
		switch {
		case inLine:
			if r == '\n' {
				inLine = false
			}
			b.WriteRune(' ')
			continue
		case inComment:
			if r == '}' {
				inComment = false
			}
			b.WriteRune(' ')
			continue
		case inTag:
			if r == '"' {
				inQuote = !inQuote
			} else if r == ']' && !inQuote {
				inTag = false
			}
			b.WriteRune(' ')
			continue
		}
		switch r {
		case '{':
			inComment = true
		case '[':
			if depth == 0 {
				inTag = true
			}
		case ';':
			inLine = true
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
			b.WriteRune(' ')
			continue
		}
		if depth > 0 || inComment || inTag || inLine {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsResult reports whether tok is a game-result marker.
func IsResult(tok string) bool {
	_, ok := resultTokens[strings.TrimSpace(tok)]
	return ok
}

// Signature is the duplicate-detection key of a token sequence and side.
func Signature(tokens []string, color string) string {
	return strings.Join(tokens, " ") + "|" + color
}

// HasLeadingMoveNumber reports whether text starts with "1.".
func HasLeadingMoveNumber(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "1.")
}

// SameMove compares two SAN strings ignoring check, mate and annotation marks.
func SameMove(a, b string) bool {
	ca, cb := bare(a), bare(b)
	return ca != "" && ca == cb
}

func bare(san string) string {
	s := strings.TrimSpace(san)
	s = strings.TrimRight(s, "+#!?")
	return canonicalCastle(s)
}

func canonicalCastle(tok string) string {
	suffix := ""
	core := tok
	if i := strings.IndexAny(tok, "+#"); i >= 0 {
		core, suffix = tok[:i], tok[i:]
	}
	switch core {
	case "0-0":
		return "O-O" + suffix
	case "0-0-0":
		return "O-O-O" + suffix
	}
	return tok
}
