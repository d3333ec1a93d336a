package github

import (
	"regexp"
	"strings"
)

var (
	mdImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinkRe  = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdBoldRe  = regexp.MustCompile(`\*+([^*]+)\*+`)
	bareURLRe = regexp.MustCompile(`https?://[^\s<>"]+`)
)

// ExtractText strips markdown links, emphasis and images down to plain text.
func ExtractText(s string) string {
	s = mdImageRe.ReplaceAllString(s, "")
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = mdBoldRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// ExtractURL pulls the target out of a markdown link, or a bare URL.
func ExtractURL(s string) string {
	if m := mdLinkRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[2])
	}
	return bareURLRe.FindString(s)
}
