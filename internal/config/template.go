package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TeamTemplate is an optional YAML description of a team, passed to
// `crewmux init --template`. It pre-assigns worker names and roles.
type TeamTemplate struct {
	Task       string           `yaml:"task"`
	AgentType  string           `yaml:"agent_type"`
	MaxWorkers int              `yaml:"max_workers"`
	Workers    []TemplateWorker `yaml:"workers"`
}

// TemplateWorker is one worker slot in a template.
type TemplateWorker struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// LoadTeamTemplate reads and validates a team template file.
func LoadTeamTemplate(path string) (*TeamTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	var tpl TeamTemplate
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", path, err)
	}
	if len(tpl.Workers) == 0 {
		return nil, fmt.Errorf("template %s defines no workers", path)
	}
	seen := make(map[string]bool, len(tpl.Workers))
	for i, w := range tpl.Workers {
		if w.Name == "" {
			return nil, fmt.Errorf("template %s: worker %d has no name", path, i+1)
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("template %s: duplicate worker name %q", path, w.Name)
		}
		seen[w.Name] = true
	}
	return &tpl, nil
}

// WorkerNames returns the template's worker names in order.
func (t *TeamTemplate) WorkerNames() []string {
	names := make([]string, len(t.Workers))
	for i, w := range t.Workers {
		names[i] = w.Name
	}
	return names
}

// Roles returns the template's worker roles in order.
func (t *TeamTemplate) Roles() []string {
	roles := make([]string, len(t.Workers))
	for i, w := range t.Workers {
		roles[i] = w.Role
	}
	return roles
}
