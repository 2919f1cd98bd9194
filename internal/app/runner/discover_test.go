package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiscoverTestsGlobsAndSorts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	basics := filepath.Join(root, "basics")
	misc := filepath.Join(root, "misc")
	for _, dir := range []string{basics, misc} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	for _, name := range []string{
		filepath.Join(misc, "zz.py"),
		filepath.Join(basics, "b.py"),
		filepath.Join(basics, "a.py"),
		filepath.Join(basics, "readme.txt"),
	} {
		if err := os.WriteFile(name, []byte("print(0)\n"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	files, err := DiscoverTests([]string{misc, basics})
	if err != nil {
		t.Fatalf("DiscoverTests returned error: %v", err)
	}

	want := []string{
		filepath.Join(basics, "a.py"),
		filepath.Join(basics, "b.py"),
		filepath.Join(misc, "zz.py"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("discovered files mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverTestsEmptyDirectory(t *testing.T) {
	t.Parallel()

	files, err := DiscoverTests([]string{t.TempDir()})
	if err != nil {
		t.Fatalf("DiscoverTests returned error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}
