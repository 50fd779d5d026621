package agent

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestRegistry_BuiltinSeeded(t *testing.T) {
	r := NewRegistry(nil)

	def, ok := r.Get("general")
	if !ok {
		t.Fatal("builtin general agent missing")
	}
	if def.SystemPrompt == "" {
		t.Error("builtin general agent has no system prompt")
	}
	if def.Tools != nil {
		t.Errorf("builtin general agent Tools = %v, want nil (all tools allowed)", def.Tools)
	}
	if !r.IsEnabled("general") {
		t.Error("IsEnabled(general) = false")
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry(nil)

	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) = ok, want miss")
	}
	if r.IsEnabled("nonexistent") {
		t.Error("IsEnabled(nonexistent) = true, want false")
	}
}

func TestRegistry_IsEnabledRespectsFlag(t *testing.T) {
	projectDir := t.TempDir()
	writeAgents(t, projectDir, map[string]string{
		"retired.md": "---\nname: retired\ndescription: d\nenabled: false\n---\nprompt",
	})

	r := NewRegistry(NewDiscoverer("", projectDir, nil))

	if _, ok := r.Get("retired"); !ok {
		t.Fatal("disabled agent missing from catalog, want present but disabled")
	}
	if r.IsEnabled("retired") {
		t.Error("IsEnabled(retired) = true, want false")
	}
}

func TestRegistry_ListAllSorted(t *testing.T) {
	projectDir := t.TempDir()
	writeAgents(t, projectDir, map[string]string{
		"zeta.md":  definitionContent("zeta", "last"),
		"alpha.md": definitionContent("alpha", "first"),
	})

	r := NewRegistry(NewDiscoverer("", projectDir, nil))
	defs := r.ListAll()

	if len(defs) != 3 {
		t.Fatalf("ListAll() returned %d agents, want 3 (alpha, general, zeta)", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Name >= defs[i].Name {
			t.Errorf("ListAll() not sorted: %q before %q", defs[i-1].Name, defs[i].Name)
		}
	}
}

func TestRegistry_ReloadReplacesCatalog(t *testing.T) {
	projectDir := t.TempDir()
	writeAgents(t, projectDir, map[string]string{
		"scout.md": definitionContent("scout", "v1"),
	})

	r := NewRegistry(NewDiscoverer("", projectDir, nil))
	if _, ok := r.Get("scout"); !ok {
		t.Fatal("scout missing after initial load")
	}

	// Replace scout with reviewer on disk and reload.
	if err := os.Remove(filepath.Join(projectDir, "scout.md")); err != nil {
		t.Fatalf("failed to remove scout.md: %v", err)
	}
	writeAgents(t, projectDir, map[string]string{
		"reviewer.md": definitionContent("reviewer", "new arrival"),
	})
	r.Reload()

	if _, ok := r.Get("scout"); ok {
		t.Error("scout still present after its file was deleted and the registry reloaded")
	}
	if _, ok := r.Get("reviewer"); !ok {
		t.Error("reviewer missing after reload")
	}
	if _, ok := r.Get("general"); !ok {
		t.Error("builtin general lost across reload")
	}
}

func TestRegistry_ReloadKeepsResolvedSnapshots(t *testing.T) {
	projectDir := t.TempDir()
	writeAgents(t, projectDir, map[string]string{
		"scout.md": definitionContent("scout", "v1"),
	})

	r := NewRegistry(NewDiscoverer("", projectDir, nil))
	before, ok := r.Get("scout")
	if !ok {
		t.Fatal("scout missing after initial load")
	}

	if err := os.WriteFile(filepath.Join(projectDir, "scout.md"),
		[]byte(definitionContent("scout", "v2")), 0644); err != nil {
		t.Fatalf("failed to rewrite scout.md: %v", err)
	}
	r.Reload()

	// The definition resolved before the reload is untouched; a run holding
	// it keeps its snapshot.
	if before.Description != "v1" {
		t.Errorf("pre-reload snapshot mutated to %q", before.Description)
	}
	after, _ := r.Get("scout")
	if after.Description != "v2" {
		t.Errorf("post-reload Get() = %q, want v2", after.Description)
	}
}

func TestRegistry_LoadErrorsRecorded(t *testing.T) {
	projectDir := t.TempDir()
	writeAgents(t, projectDir, map[string]string{
		"broken.md": "not a definition",
	})

	r := NewRegistry(NewDiscoverer("", projectDir, nil))

	errs := r.LoadErrors()
	if len(errs) != 1 {
		t.Fatalf("LoadErrors() = %d entries, want 1", len(errs))
	}
	if errs[0].Path == "" {
		t.Error("load error has no path")
	}

	// Fixing the file clears the error on the next reload.
	if err := os.WriteFile(filepath.Join(projectDir, "broken.md"),
		[]byte(definitionContent("fixed", "now loads")), 0644); err != nil {
		t.Fatalf("failed to fix broken.md: %v", err)
	}
	r.Reload()
	if got := r.LoadErrors(); len(got) != 0 {
		t.Errorf("LoadErrors() after fix = %v, want none", got)
	}
}

func TestRegistry_ConcurrentReadsDuringReload(t *testing.T) {
	projectDir := t.TempDir()
	writeAgents(t, projectDir, map[string]string{
		"scout.md": definitionContent("scout", "v1"),
	})

	r := NewRegistry(NewDiscoverer("", projectDir, nil))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				defs := r.ListAll()
				// The catalog always contains at least the builtins, and a
				// reader never sees a torn set missing them.
				found := false
				for _, def := range defs {
					if def.Name == "general" {
						found = true
						break
					}
				}
				if !found {
					t.Error("reader observed a catalog without the builtin general agent")
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		r.Reload()
	}
	close(stop)
	wg.Wait()
}
