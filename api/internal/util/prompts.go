package util

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptPack overrides the built-in prompts. Any empty field keeps the
// default.
type PromptPack struct {
	Solve    string `yaml:"solve"`
	Extract  string `yaml:"extract"`
	FollowUp struct {
		Preamble     string `yaml:"preamble"`
		Instructions string `yaml:"instructions"`
	} `yaml:"follow_up"`
}

// LoadPromptPack reads a YAML prompt pack. An empty path is not an error and
// yields an empty pack.
func LoadPromptPack(path string) (PromptPack, error) {
	var p PromptPack
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompt pack: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse prompt pack %s: %w", path, err)
	}
	return p, nil
}
