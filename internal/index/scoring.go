package index

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// domainTerms earn a bonus when they appear in both the query and the content
var domainTerms = []string{"al-go", "business central", "workflow", "actions", "templates", "devops"}

var newlines = regexp.MustCompile(`\n+`)

// query is a search query prepared once for scoring many documents
type query struct {
	lower    string
	words    []string
	whole    []*regexp.Regexp // whole-word, case-insensitive
	headings []*regexp.Regexp // markdown heading lines containing the word
	literal  []*regexp.Regexp // first occurrence, case-insensitive
}

func parseQuery(q string) query {
	pq := query{lower: strings.ToLower(strings.TrimSpace(q))}
	for _, w := range strings.Fields(pq.lower) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		quoted := regexp.QuoteMeta(w)
		pq.words = append(pq.words, w)
		pq.whole = append(pq.whole, regexp.MustCompile(`(?i)\b`+quoted+`\b`))
		pq.headings = append(pq.headings, regexp.MustCompile(`(?im)^#+.*`+quoted+`.*$`))
		pq.literal = append(pq.literal, regexp.MustCompile(`(?i)`+quoted))
	}
	return pq
}

// CalculateRelevance scores doc against a lower-cased query.
//
//	+10   title contains the query
//	+5    path contains the query
//	+0.5  per whole-word match of each query word in the content
//	+2    per markdown heading line containing a query word
//	+1    per domain term present in both query and content
//
// Query words of two characters or fewer are ignored.
func CalculateRelevance(doc DocumentEntry, lowerQuery string) float64 {
	return parseQuery(lowerQuery).score(doc)
}

func (q query) score(doc DocumentEntry) float64 {
	var score float64
	lowerContent := strings.ToLower(doc.Content)

	if strings.Contains(strings.ToLower(doc.Title), q.lower) {
		score += 10
	}
	if strings.Contains(strings.ToLower(doc.Path), q.lower) {
		score += 5
	}

	for i := range q.words {
		score += 0.5 * float64(len(q.whole[i].FindAllStringIndex(lowerContent, -1)))
		score += 2 * float64(len(q.headings[i].FindAllStringIndex(lowerContent, -1)))
	}

	for _, term := range domainTerms {
		if strings.Contains(q.lower, term) && strings.Contains(lowerContent, term) {
			score++
		}
	}

	return score
}

// ExtractExcerpt returns up to maxLength bytes of content around the earliest
// occurrence of a query word, with newlines collapsed and ellipses marking
// truncation. Without a match the start of the content is returned.
func ExtractExcerpt(content, lowerQuery string, maxLength int) string {
	return parseQuery(lowerQuery).excerpt(content, maxLength)
}

func (q query) excerpt(content string, maxLength int) string {
	best := -1
	for _, re := range q.literal {
		if loc := re.FindStringIndex(content); loc != nil && (best == -1 || loc[0] < best) {
			best = loc[0]
		}
	}

	if best == -1 {
		end := runeBoundary(content, min(len(content), maxLength))
		excerpt := strings.TrimSpace(content[:end])
		if end < len(content) {
			excerpt += "..."
		}
		return excerpt
	}

	start := best - 50
	if start < 0 {
		start = 0
	}
	start = runeBoundary(content, start)
	end := runeBoundary(content, min(len(content), start+maxLength))

	excerpt := strings.TrimSpace(newlines.ReplaceAllString(content[start:end], " "))
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(content) {
		excerpt += "..."
	}
	return excerpt
}

// runeBoundary moves i back to the start of the rune containing it
func runeBoundary(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
