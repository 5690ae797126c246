package permscan

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCanBagCleanTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "data", "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if got := CanBag(dir); len(got) != 0 {
		t.Errorf("CanBag = %v, want none", got)
	}
}

func TestCanBagUnwritableSubdir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	if err := os.Mkdir(locked, 0555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0755)

	got := CanBag(dir)
	found := false
	for _, p := range got {
		if p == locked {
			found = true
		}
	}
	if !found {
		t.Errorf("CanBag = %v, want it to include %s", got, locked)
	}
}

func TestCanBagUnwritableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	dir := t.TempDir()
	locked := filepath.Join(dir, "locked.txt")
	if err := os.WriteFile(locked, []byte("x"), 0444); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0644)

	got := CanBag(dir)
	found := false
	for _, p := range got {
		if p == locked {
			found = true
		}
	}
	if !found {
		t.Errorf("CanBag = %v, want it to include %s", got, locked)
	}
}

func TestCanBagUnreadableRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	if err := os.Mkdir(locked, 0000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0755)

	got := CanBag(locked)
	if len(got) != 1 || got[0] != locked {
		t.Errorf("CanBag(unreadable) = %v, want [%s]", got, locked)
	}
}

func TestCanReadCleanTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	dirs, files := CanRead(dir)
	if len(dirs) != 0 || len(files) != 0 {
		t.Errorf("CanRead = (%v, %v), want (none, none)", dirs, files)
	}
}

func TestCanReadUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	dir := t.TempDir()
	locked := filepath.Join(dir, "locked.txt")
	if err := os.WriteFile(locked, []byte("x"), 0000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0644)

	_, files := CanRead(dir)
	if len(files) != 1 || files[0] != locked {
		t.Errorf("CanRead files = %v, want [%s]", files, locked)
	}
}
