package lcu

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func fakeInstall(t *testing.T, marker string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, marker), []byte("LeagueClient:1:2:pw:https"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestFindInstallDir(t *testing.T) {
	empty := t.TempDir()
	install := fakeInstall(t, "LeagueClient.exe")

	got, err := FindInstallDir(empty, filepath.Join(empty, "missing"), install)
	if err != nil {
		t.Fatalf("FindInstallDir failed: %v", err)
	}
	if got != install {
		t.Errorf("got %q, want %q", got, install)
	}

	if _, err := FindInstallDir(empty); !errors.Is(err, ErrInstallNotFound) {
		t.Errorf("Expected ErrInstallNotFound, got %v", err)
	}
}

func TestClientRunning(t *testing.T) {
	if !ClientRunning(fakeInstall(t, "lockfile")) {
		t.Error("lockfile present, expected running")
	}
	if ClientRunning(fakeInstall(t, "LeagueClient.exe")) {
		t.Error("no lockfile, expected not running")
	}
}

func TestInstall(t *testing.T) {
	tree := t.TempDir()
	for _, key := range []string{"Ahri", "Zed"} {
		dir := filepath.Join(tree, key, "Recommended")
		os.MkdirAll(dir, 0755)
		os.WriteFile(filepath.Join(dir, key+".json"), []byte(`{"title":"`+key+`"}`), 0644)
	}
	os.WriteFile(filepath.Join(tree, "notes.txt"), []byte("skip me"), 0644)

	install := fakeInstall(t, "LeagueClient.exe")
	n, err := Install(tree, install)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if n != 2 {
		t.Errorf("copied: got %d, want 2", n)
	}

	data, err := os.ReadFile(filepath.Join(install, "Config", "Champions", "Zed", "Recommended", "Zed.json"))
	if err != nil {
		t.Fatalf("installed file missing: %v", err)
	}
	if string(data) != `{"title":"Zed"}` {
		t.Errorf("installed content: got %s", data)
	}
	if _, err := os.Stat(filepath.Join(install, "Config", "Champions", "notes.txt")); !os.IsNotExist(err) {
		t.Error("non-JSON file should not be installed")
	}
}

func TestInstall_NotAnInstall(t *testing.T) {
	if _, err := Install(t.TempDir(), t.TempDir()); !errors.Is(err, ErrInstallNotFound) {
		t.Errorf("Expected ErrInstallNotFound, got %v", err)
	}
}
