package domain

import "strings"

// Source names. Each maps to one health-tracked run per invocation.
const (
	SourceGitHub  = "github"
	SourceCareers = "careers"
)

// JobRecord is one scraped posting as a source adapter produced it.
// It is never stored verbatim; identity comes from UniqueID().
type JobRecord struct {
	Company    string
	Title      string
	URL        string
	Location   string // may be empty; empty means "unknown", not "nowhere"
	Source     string // github | careers
	DatePosted string // as printed by the source, often empty
}

// UniqueID derives the dedup key: company|title|url, lower-cased with
// whitespace collapsed so repeated scrapes of an unchanged listing always
// map to the same row.
func (j JobRecord) UniqueID() string {
	return normalize(j.Company) + "|" + normalize(j.Title) + "|" + normalize(j.URL)
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}
