// Package lcu finds the local League of Legends install and copies
// generated item sets into it.
package lcu

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrInstallNotFound = errors.New("league install not found")

// ChampionsDir is where the client reads per-champion item sets
const ChampionsDir = "Config/Champions"

// DefaultInstallPaths are the usual install locations
func DefaultInstallPaths() []string {
	paths := []string{
		"C:/Riot Games/League of Legends",
		"D:/Riot Games/League of Legends",
		"C:/Program Files/Riot Games/League of Legends",
		"C:/Program Files (x86)/Riot Games/League of Legends",
		"/Applications/League of Legends.app/Contents/LoL",
	}
	for _, drive := range []string{"E:", "F:", "G:"} {
		paths = append(paths, drive+"/Riot Games/League of Legends")
	}
	return paths
}

// FindInstallDir returns the first candidate that looks like a League
// install. With no candidates the default paths are searched.
func FindInstallDir(candidates ...string) (string, error) {
	if len(candidates) == 0 {
		candidates = DefaultInstallPaths()
	}
	for _, dir := range candidates {
		if isInstallDir(dir) {
			return dir, nil
		}
	}
	return "", ErrInstallNotFound
}

// isInstallDir accepts a directory holding the client lockfile, the client
// binary or a Config directory
func isInstallDir(dir string) bool {
	for _, marker := range []string{"lockfile", "LeagueClient.exe", "LeagueClient.app", "Config"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// ClientRunning reports whether the client lockfile is present. The client
// only picks up new item sets after a restart.
func ClientRunning(installDir string) bool {
	_, err := os.Stat(filepath.Join(installDir, "lockfile"))
	return err == nil
}

// Install copies every JSON file of a generated tree (<key>/Recommended/<key>.json)
// into the install's Config/Champions directory and returns the number of
// files copied
func Install(treeDir, installDir string) (int, error) {
	if !isInstallDir(installDir) {
		return 0, fmt.Errorf("%s: %w", installDir, ErrInstallNotFound)
	}
	target := filepath.Join(installDir, filepath.FromSlash(ChampionsDir))

	copied := 0
	err := filepath.WalkDir(treeDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		rel, err := filepath.Rel(treeDir, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(target, rel)); err != nil {
			return fmt.Errorf("install %s: %w", rel, err)
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
