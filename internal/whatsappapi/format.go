package whatsappapi

import (
	"regexp"
)

// ChunkText splits text into pieces no longer than maxLen, each time
// splitting the current piece near its midpoint (preferring a newline,
// falling back to a space, falling back to a hard cut) and recursing on
// both halves. The split point itself is never trimmed, so the returned
// chunks concatenate back to exactly the original text: boundary whitespace
// stays attached to the start of the right-hand chunk instead of being
// dropped.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 4096
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	mid := len(text) / 2
	splitAt := lastIndexBefore(text, mid, '\n')
	if splitAt <= 0 {
		splitAt = lastIndexBefore(text, mid, ' ')
	}
	if splitAt <= 0 {
		splitAt = mid
	}

	left := text[:splitAt]
	right := text[splitAt:]

	out := ChunkText(left, maxLen)
	return append(out, ChunkText(right, maxLen)...)
}

func lastIndexBefore(s string, limit int, b byte) int {
	if limit > len(s) {
		limit = len(s)
	}
	for i := limit; i > 0; i-- {
		if s[i-1] == b {
			return i - 1
		}
	}
	return -1
}

var (
	mdBold      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	mdBulletDot = regexp.MustCompile(`(?m)^(\s*)[-*]\s+`)
)

// MarkdownToWhatsApp rewrites common markdown emphasis/heading syntax into
// the WhatsApp Cloud API's plain-text formatting dialect: "**bold**"
// becomes "*bold*", headings lose their "#" markers and get bolded, and
// list bullets become "•". Underscore italics ("_word_") need no rewrite:
// WhatsApp already renders that syntax as italic.
func MarkdownToWhatsApp(text string) string {
	text = mdHeading.ReplaceAllString(text, "*$1*")
	text = mdBold.ReplaceAllString(text, "*$1*")
	text = mdBulletDot.ReplaceAllString(text, "$1• ")
	return text
}
