package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/posse/pkg/models"
)

func TestGuard_Defaults(t *testing.T) {
	g := NewGuard()

	for _, name := range DefaultProtectedNames {
		if !g.IsProtected(name) {
			t.Errorf("IsProtected(%q) = false, want default name protected", name)
		}
	}
	if g.IsProtected("reviewer") {
		t.Error("IsProtected(reviewer) = true, want ordinary names unprotected")
	}
}

func TestGuard_Check(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name    string
		def     *models.AgentDefinition
		wantErr bool
	}{
		{
			name:    "ordinary name passes",
			def:     &models.AgentDefinition{Name: "reviewer"},
			wantErr: false,
		},
		{
			name:    "protected name without override fails",
			def:     &models.AgentDefinition{Name: "general"},
			wantErr: true,
		},
		{
			name:    "protected name with override passes",
			def:     &models.AgentDefinition{Name: "general", Override: true},
			wantErr: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Check(tc.def)
			if (err != nil) != tc.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrProtectedName) {
				t.Errorf("Check() error = %v, want ErrProtectedName", err)
			}
		})
	}
}

func TestGuard_Add(t *testing.T) {
	g := NewGuard()

	if g.IsProtected("deployer") {
		t.Fatal("deployer protected before Add")
	}
	g.Add("deployer")
	if !g.IsProtected("deployer") {
		t.Error("deployer not protected after Add")
	}
	if !g.IsProtected("Deployer") {
		t.Error("IsProtected is case sensitive, want case insensitive")
	}
}

func TestGuard_LoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".posse.yaml")
	configContent := `protected_agents:
  - deployer
  - Releaser
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	g := NewGuard()
	if err := g.LoadConfig(configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !g.IsProtected("deployer") {
		t.Error("deployer not protected after LoadConfig")
	}
	if !g.IsProtected("releaser") {
		t.Error("releaser not protected: config names must be lowercased")
	}
	if !g.IsProtected("general") {
		t.Error("defaults lost after LoadConfig")
	}
}
