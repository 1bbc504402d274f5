package packager

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"itemset-builder/internal/itemset"
)

func testDocs() map[string]*itemset.Document {
	doc := func(key string) *itemset.Document {
		return &itemset.Document{
			Title: "CB for " + key + " (3 games)",
			Type:  "custom",
			Map:   "SR",
			Mode:  "CLASSIC",
			Blocks: []itemset.Block{
				{Type: itemset.BlockStarting, Items: []itemset.BlockItem{{ID: "1056", Count: 1}}},
			},
		}
	}
	return map[string]*itemset.Document{"Zed": doc("Zed"), "Ahri": doc("Ahri")}
}

func TestRelPath(t *testing.T) {
	if got := RelPath("MonkeyKing"); got != "MonkeyKing/Recommended/MonkeyKing.json" {
		t.Errorf("RelPath: got %q", got)
	}
}

func TestEncode_TwoSpaceIndent(t *testing.T) {
	data, err := Encode(testDocs()["Ahri"])
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"title\": \"CB for Ahri (3 games)\"") {
		t.Errorf("unexpected encoding:\n%s", data)
	}
}

func TestPackage(t *testing.T) {
	out := t.TempDir()
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

	res, err := New(out).Package(testDocs(), at)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if res.Champions != 2 {
		t.Errorf("Champions: got %d", res.Champions)
	}

	// tree
	data, err := os.ReadFile(filepath.Join(res.TreeDir, "Ahri", "Recommended", "Ahri.json"))
	if err != nil {
		t.Fatalf("tree file missing: %v", err)
	}
	var doc itemset.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("tree file not JSON: %v", err)
	}
	if doc.Title != "CB for Ahri (3 games)" {
		t.Errorf("tree doc title: got %q", doc.Title)
	}

	// zip
	zr, err := zip.OpenReader(res.ZipPath)
	if err != nil {
		t.Fatalf("zip unreadable: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"Ahri/Recommended/Ahri.json", "Zed/Recommended/Zed.json"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("zip entries: got %v, want %v", names, want)
	}

	// index
	index, err := os.ReadFile(res.IndexPath)
	if err != nil {
		t.Fatalf("index missing: %v", err)
	}
	for _, s := range []string{`href="item_set.zip"`, "2024-03-01 08:30:00 UTC", "2 champions"} {
		if !strings.Contains(string(index), s) {
			t.Errorf("index missing %q", s)
		}
	}
}

func TestPackage_WithoutTree(t *testing.T) {
	out := t.TempDir()
	res, err := New(out, WithTree(false)).Package(testDocs(), time.Now())
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if res.TreeDir != "" {
		t.Errorf("TreeDir: got %q, want empty", res.TreeDir)
	}
	if _, err := os.Stat(filepath.Join(out, "tree")); !os.IsNotExist(err) {
		t.Error("tree directory should not exist")
	}
}
