package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateStarterAgent(t *testing.T) {
	dir := t.TempDir()

	created, err := createStarterAgent(dir)
	if err != nil {
		t.Fatalf("createStarterAgent: %v", err)
	}
	if !created {
		t.Fatal("expected starter agent to be created")
	}

	data, err := os.ReadFile(filepath.Join(dir, "reviewer.md"))
	if err != nil {
		t.Fatalf("read starter agent: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		t.Error("starter agent missing frontmatter")
	}
	if !strings.Contains(content, "name: reviewer") {
		t.Error("starter agent missing name field")
	}

	// Second call must not overwrite
	created, err = createStarterAgent(dir)
	if err != nil {
		t.Fatalf("createStarterAgent second call: %v", err)
	}
	if created {
		t.Error("starter agent was recreated over an existing file")
	}
}

func TestCreateProjectConfig(t *testing.T) {
	dir := t.TempDir()

	created, err := createProjectConfig(dir)
	if err != nil {
		t.Fatalf("createProjectConfig: %v", err)
	}
	if !created {
		t.Fatal("expected .posse.yaml to be created")
	}

	path := filepath.Join(dir, ".posse.yaml")
	if err := os.WriteFile(path, []byte("max_concurrent: 2\n"), 0644); err != nil {
		t.Fatalf("overwrite config: %v", err)
	}

	created, err = createProjectConfig(dir)
	if err != nil {
		t.Fatalf("createProjectConfig second call: %v", err)
	}
	if created {
		t.Error("existing .posse.yaml was replaced")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "max_concurrent: 2\n" {
		t.Error("existing .posse.yaml content was clobbered")
	}
}

func TestUpdateGitignore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")

	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore on missing file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if !strings.Contains(string(data), ".posse/history.db*") {
		t.Error("history entry missing from .gitignore")
	}
	if !strings.Contains(string(data), ".posse/logs/") {
		t.Error("logs entry missing from .gitignore")
	}

	// Running again must not duplicate entries
	before := string(data)
	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore second call: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != before {
		t.Error("second updateGitignore changed the file")
	}
}

func TestUpdateGitignorePreservesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(path, []byte("node_modules/"), 0644); err != nil {
		t.Fatalf("seed .gitignore: %v", err)
	}

	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore: %v", err)
	}

	data, _ := os.ReadFile(path)
	content := string(data)
	if !strings.Contains(content, "node_modules/") {
		t.Error("existing entry was lost")
	}
	if !strings.Contains(content, ".posse/history.db*") {
		t.Error("posse entry was not appended")
	}
}
