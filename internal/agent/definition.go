package agent

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/posse/internal/toolset"
	"github.com/ShayCichocki/posse/pkg/models"
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// frontmatter is the YAML header of an agent definition file. The markdown
// body below the closing delimiter becomes the system prompt.
type frontmatter struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Model         string   `yaml:"model"`
	Tools         []string `yaml:"tools"`
	Enabled       *bool    `yaml:"enabled"`
	MaxIterations int      `yaml:"max_iterations"`
	Temperature   *float64 `yaml:"temperature"`
	Author        string   `yaml:"author"`
	Version       string   `yaml:"version"`
	Tags          []string `yaml:"tags"`
	Override      bool     `yaml:"override"`
}

// ParseDefinitionFile reads and validates a single agent definition file.
func ParseDefinitionFile(path string, scope models.DefinitionScope) (*models.AgentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent definition %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parse agent definition %s: %w", path, err)
	}
	def.Scope = scope
	def.SourcePath = path
	if err := validateDefinition(def); err != nil {
		return nil, fmt.Errorf("validate agent definition %s: %w", path, err)
	}
	return def, nil
}

// ParseDefinition decodes frontmatter and prompt body from definition data.
//
// The tools list keeps its nil-versus-empty distinction from the YAML source:
// an absent tools key decodes to nil (no whitelist, every tool allowed) while
// an explicit `tools: []` decodes to an empty non-nil slice (nothing allowed).
func ParseDefinition(data []byte) (*models.AgentDefinition, error) {
	header, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	def := &models.AgentDefinition{
		Name:          strings.TrimSpace(fm.Name),
		Description:   strings.TrimSpace(fm.Description),
		Model:         strings.TrimSpace(fm.Model),
		MaxIterations: fm.MaxIterations,
		Temperature:   fm.Temperature,
		SystemPrompt:  strings.TrimSpace(body),
		Author:        strings.TrimSpace(fm.Author),
		Version:       strings.TrimSpace(fm.Version),
		Override:      fm.Override,
		Enabled:       true,
	}
	if fm.Enabled != nil {
		def.Enabled = *fm.Enabled
	}
	if fm.Tools != nil {
		tools := make([]string, 0, len(fm.Tools))
		for _, tool := range fm.Tools {
			tool = strings.TrimSpace(tool)
			if tool != "" {
				tools = append(tools, tool)
			}
		}
		def.Tools = tools
	}
	if len(fm.Tags) > 0 {
		tags := make([]string, 0, len(fm.Tags))
		for _, tag := range fm.Tags {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				tags = append(tags, tag)
			}
		}
		def.Tags = tags
	}

	return def, nil
}

// validateDefinition enforces structural rules beyond the basic field checks.
func validateDefinition(def *models.AgentDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if len(def.Name) > 64 {
		return fmt.Errorf("agent name must be 1-64 characters")
	}
	if !namePattern.MatchString(def.Name) {
		return fmt.Errorf("agent name %q is invalid: use lowercase letters, digits, - or _", def.Name)
	}
	if def.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}
	if def.Temperature != nil && (*def.Temperature < 0 || *def.Temperature > 1) {
		return fmt.Errorf("temperature %v out of range [0, 1]", *def.Temperature)
	}
	if err := toolset.ValidateWhitelist(def.Tools); err != nil {
		return err
	}
	return nil
}

// splitFrontmatter separates the YAML header from the markdown body.
func splitFrontmatter(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("missing frontmatter")
	}
	lines := strings.Split(string(data), "\n")

	first := strings.TrimSuffix(lines[0], "\r")
	if strings.TrimSpace(first) != "---" {
		return nil, "", fmt.Errorf("missing frontmatter delimiter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		if strings.TrimSpace(line) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, "", fmt.Errorf("missing closing frontmatter delimiter")
	}

	headerLines := make([]string, 0, end-1)
	for _, line := range lines[1:end] {
		headerLines = append(headerLines, strings.TrimSuffix(line, "\r"))
	}
	bodyLines := lines[end+1:]
	for i, line := range bodyLines {
		bodyLines[i] = strings.TrimSuffix(line, "\r")
	}

	return []byte(strings.Join(headerLines, "\n")), strings.Join(bodyLines, "\n"), nil
}
