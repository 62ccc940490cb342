package fsops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pagewright/pagewright/internal/models"
)

func TestDirWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewDirWriter(dir, nil)

	if err := w.Open("pages/index.html"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := w.Write("pages/index.html", "<html></html>"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "pages", "index.html"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Errorf("content = %q", data)
	}

	if err := w.Remove("pages/index.html"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pages", "index.html")); !os.IsNotExist(err) {
		t.Error("file still exists after Remove")
	}

	// Removing a missing file is not an error
	if err := w.Remove("pages/missing.html"); err != nil {
		t.Errorf("Remove of missing file: %v", err)
	}
}

func TestDirWriterRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	w := NewDirWriter(dir, nil)
	// Clean("/"+path) strips traversal; the result must stay inside root
	if err := w.Write("../../etc/passwd", "nope"); err != nil {
		t.Fatalf("escape attempt should be neutralized, got error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "etc", "passwd")); err != nil {
		t.Errorf("neutralized path not written inside root: %v", err)
	}
}

func TestDirWriterWriteCreatesParents(t *testing.T) {
	dir := t.TempDir()
	w := NewDirWriter(dir, nil)

	if err := w.Write("assets/css/site.css", "body{}"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "assets", "css", "site.css"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "body{}" {
		t.Errorf("content = %q", data)
	}
}

// failingFS fails every call, for exercising per-file error handling.
type failingFS struct{}

func (failingFS) Open(string) error          { return errors.New("no") }
func (failingFS) Write(string, string) error { return errors.New("no") }
func (failingFS) Remove(string) error        { return errors.New("no") }

func TestApplyContinuesPastFailures(t *testing.T) {
	ops := []models.FileOperation{
		{Path: "a.html", Content: "a", Action: models.FileActionCreate},
		{Path: "b.html", Content: "b", Action: models.FileActionUpdate},
		{Path: "c.html", Action: models.FileActionDelete},
	}

	if got := Apply(failingFS{}, ops, nil); got != 0 {
		t.Errorf("applied = %d, want 0", got)
	}

	dir := t.TempDir()
	w := NewDirWriter(dir, nil)
	if got := Apply(w, ops, nil); got != 3 {
		t.Errorf("applied = %d, want 3", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.html")); err != nil {
		t.Errorf("a.html not written: %v", err)
	}
}
