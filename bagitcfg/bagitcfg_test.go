package bagitcfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Processes != 0 {
		t.Errorf("Processes = %d, want 0", cfg.Processes)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != (Config{}) {
		t.Errorf("got %+v, want zero value", cfg)
	}
}

func TestLoadParsesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bagitrc.toml")
	content := "processes = 4\nalgorithms = [\"sha256\", \"sha512\"]\nencoding = \"UTF-8\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Processes != 4 {
		t.Errorf("Processes = %d, want 4", cfg.Processes)
	}
	if len(cfg.Algorithms) != 2 || cfg.Algorithms[0] != "sha256" {
		t.Errorf("Algorithms = %v", cfg.Algorithms)
	}
	if cfg.Encoding != "UTF-8" {
		t.Errorf("Encoding = %q", cfg.Encoding)
	}
}
