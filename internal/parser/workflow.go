package parser

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultWorkflowDescription is used when a workflow file has no comment line
const DefaultWorkflowDescription = "AL-Go workflow"

// WorkflowMeta is the metadata declared inside a workflow file
type WorkflowMeta struct {
	Name     string
	Triggers []string
}

// ExtractWorkflowDescription returns the text of the first line that starts with
// a '#' comment, or DefaultWorkflowDescription if there is none.
func ExtractWorkflowDescription(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if desc := strings.TrimSpace(strings.TrimLeft(line, "#")); desc != "" {
			return desc
		}
	}
	return DefaultWorkflowDescription
}

// ParseWorkflowMeta reads the workflow name and the events listed under its
// 'on' key. The 'on' key may be a single event, a list or a mapping.
func ParseWorkflowMeta(content string) (WorkflowMeta, error) {
	var raw struct {
		Name string    `yaml:"name"`
		On   yaml.Node `yaml:"on"`
	}
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return WorkflowMeta{}, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	meta := WorkflowMeta{Name: strings.TrimSpace(raw.Name)}

	seen := make(map[string]bool)
	add := func(event string) {
		event = strings.TrimSpace(event)
		if event != "" && !seen[event] {
			seen[event] = true
			meta.Triggers = append(meta.Triggers, event)
		}
	}

	switch raw.On.Kind {
	case yaml.ScalarNode:
		add(raw.On.Value)
	case yaml.SequenceNode:
		for _, item := range raw.On.Content {
			if item.Kind == yaml.ScalarNode {
				add(item.Value)
			}
		}
	case yaml.MappingNode:
		// Content alternates key and value nodes
		for i := 0; i < len(raw.On.Content); i += 2 {
			add(raw.On.Content[i].Value)
		}
	}

	sort.Strings(meta.Triggers)
	return meta, nil
}
