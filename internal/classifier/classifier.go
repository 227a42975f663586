// Package classifier decides which category a GitHub workflow file belongs to
// (continuous integration, deployment or testing) using keyword heuristics over
// the file name and the YAML content.
package classifier

import (
	"strings"
)

// WorkflowType is a category of workflow requested by a client
type WorkflowType string

const (
	// TypeCICD selects continuous integration workflows
	TypeCICD WorkflowType = "cicd"
	// TypeDeployment selects deployment and release workflows
	TypeDeployment WorkflowType = "deployment"
	// TypeTesting selects test and validation workflows
	TypeTesting WorkflowType = "testing"
	// TypeAll selects every workflow
	TypeAll WorkflowType = "all"
)

// Types lists the workflow types clients may request, in display order.
func Types() []WorkflowType {
	return []WorkflowType{TypeCICD, TypeDeployment, TypeTesting, TypeAll}
}

// String returns the string representation of the WorkflowType
func (wt WorkflowType) String() string {
	return string(wt)
}

// ParseWorkflowType normalizes s into a WorkflowType. Empty input means TypeAll.
// Unknown values are returned as-is; the classifier treats them as unfiltered.
func ParseWorkflowType(s string) WorkflowType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeAll
	}
	return WorkflowType(s)
}

// Classifier determines whether a workflow file belongs to a workflow type
type Classifier interface {
	// Matches reports whether the workflow with the given file name and content
	// belongs to wt.
	Matches(fileName, content string, wt WorkflowType) bool
}

// Rule holds the keywords that place a workflow in a category. A workflow matches
// when its file name contains any NameKeywords entry or its content contains any
// ContentKeywords entry. Matching is case-insensitive substring matching.
type Rule struct {
	NameKeywords    []string
	ContentKeywords []string
}

// KeywordClassifier implements classification using keyword matching
type KeywordClassifier struct {
	rules map[WorkflowType]Rule
}

// NewKeywordClassifier creates a classifier with the given rules.
// Keywords are lower-cased once here.
func NewKeywordClassifier(rules map[WorkflowType]Rule) *KeywordClassifier {
	kc := &KeywordClassifier{rules: make(map[WorkflowType]Rule, len(rules))}
	for wt, rule := range rules {
		kc.rules[wt] = Rule{
			NameKeywords:    lowerAll(rule.NameKeywords),
			ContentKeywords: lowerAll(rule.ContentKeywords),
		}
	}
	return kc
}

// NewDefaultClassifier creates a classifier with DefaultRules.
func NewDefaultClassifier() *KeywordClassifier {
	return NewKeywordClassifier(DefaultRules())
}

// Matches implements the Classifier interface.
// TypeAll and types without a rule match everything.
func (kc *KeywordClassifier) Matches(fileName, content string, wt WorkflowType) bool {
	rule, ok := kc.rules[wt]
	if wt == TypeAll || !ok {
		return true
	}

	lowerName := strings.ToLower(fileName)
	for _, kw := range rule.NameKeywords {
		if strings.Contains(lowerName, kw) {
			return true
		}
	}

	lowerContent := strings.ToLower(content)
	for _, kw := range rule.ContentKeywords {
		if strings.Contains(lowerContent, kw) {
			return true
		}
	}

	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DefaultRules returns the keyword rules for AL-Go workflow categories
func DefaultRules() map[WorkflowType]Rule {
	return map[WorkflowType]Rule{
		TypeCICD: {
			NameKeywords:    []string{"cicd", "ci"},
			ContentKeywords: []string{"continuous integration", "build and test"},
		},
		TypeDeployment: {
			NameKeywords:    []string{"deploy", "release"},
			ContentKeywords: []string{"deployment", "publish"},
		},
		TypeTesting: {
			NameKeywords:    []string{"test"},
			ContentKeywords: []string{"test", "validation"},
		},
	}
}
