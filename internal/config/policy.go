package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk table of protected fields and adjustment rules.
type PolicyFile struct {
	// Protected maps field names to whether automatic adjustments may touch them.
	// Fields not listed keep their built-in protection.
	Protected map[string]bool `yaml:"protected,omitempty"`
	// Rotatable lists the fields adjustment rules may target.
	Rotatable []string            `yaml:"rotatable"`
	Rules     []RuleConfig        `yaml:"rules"`
	Focus     map[string][]string `yaml:"focus"`
}

// RuleConfig is one automatic adjustment rule.
type RuleConfig struct {
	Name     string   `yaml:"name"`
	When     string   `yaml:"when"`
	Field    string   `yaml:"field"`
	Rotation []string `yaml:"rotation,omitempty"`
}

// DefaultPolicy is used when no policy file is configured.
func DefaultPolicy() PolicyFile {
	return PolicyFile{
		Rotatable: []string{"practice_focus", "hints_enabled"},
		Rules: []RuleConfig{
			{
				Name:  "rotate-focus-after-misses",
				When:  "incorrect_streak >= 3",
				Field: "practice_focus",
			},
		},
		Focus: map[string][]string{
			"addition":       {"single_digit", "carrying", "three_digit"},
			"subtraction":    {"single_digit", "borrowing", "three_digit"},
			"multiplication": {"times_tables", "two_by_one", "two_by_two"},
			"division":       {"exact", "remainders", "two_digit_divisor"},
			"percentages":    {"tens", "quarters", "any"},
		},
	}
}

// LoadPolicy reads a YAML policy file. Sections missing from the file fall
// back to DefaultPolicy.
func LoadPolicy(path string) (PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyFile{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes policy YAML.
func ParsePolicy(data []byte) (PolicyFile, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return PolicyFile{}, fmt.Errorf("failed to parse policy file: %w", err)
	}

	def := DefaultPolicy()
	if pf.Rotatable == nil {
		pf.Rotatable = def.Rotatable
	}
	if pf.Rules == nil {
		pf.Rules = def.Rules
	}
	if pf.Focus == nil {
		pf.Focus = def.Focus
	}
	return pf, nil
}

// Save writes the policy as YAML.
func (p PolicyFile) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}
	return nil
}
