// Package packager writes generated item sets to disk in the layout the
// game client expects, bundles them into a zip and renders a download page.
package packager

import (
	"archive/zip"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"itemset-builder/internal/itemset"
	"itemset-builder/internal/logger"
)

const (
	ZipName   = "item_set.zip"
	IndexName = "index.html"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Item sets</title>
</head>
<body>
  <h1>Recommended item sets</h1>
  <p>Built from {{.Champions}} champions on {{.Timestamp}}.</p>
  <p><a href="{{.Filename}}">Download {{.Filename}}</a></p>
  <p>Extract the archive into <code>League of Legends/Config/Champions</code>.</p>
</body>
</html>
`))

// Result lists what Package wrote
type Result struct {
	Champions int
	TreeDir   string
	ZipPath   string
	IndexPath string
}

// Packager writes output under one directory
type Packager struct {
	outDir    string
	writeTree bool
	log       *logger.Logger
}

// Option configures a Packager
type Option func(*Packager)

// WithTree also writes the unpacked directory tree next to the zip
func WithTree(enabled bool) Option {
	return func(p *Packager) {
		p.writeTree = enabled
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(p *Packager) {
		p.log = l
	}
}

// New creates a packager writing into outDir
func New(outDir string, opts ...Option) *Packager {
	p := &Packager{outDir: outDir, writeTree: true, log: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RelPath is the slash-separated path of a champion's item set file
func RelPath(championKey string) string {
	return path.Join(championKey, "Recommended", championKey+".json")
}

// Encode serializes a document with 2-space indentation
func Encode(doc *itemset.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Package writes the tree (when enabled), the zip and the index page
func (p *Packager) Package(docs map[string]*itemset.Document, at time.Time) (Result, error) {
	res := Result{Champions: len(docs)}

	if err := os.MkdirAll(p.outDir, 0755); err != nil {
		return res, fmt.Errorf("failed to create output dir: %w", err)
	}

	if p.writeTree {
		dir := filepath.Join(p.outDir, "tree")
		if err := WriteTree(dir, docs); err != nil {
			return res, err
		}
		res.TreeDir = dir
	}

	res.ZipPath = filepath.Join(p.outDir, ZipName)
	if err := WriteZip(res.ZipPath, docs); err != nil {
		return res, err
	}

	res.IndexPath = filepath.Join(p.outDir, IndexName)
	if err := WriteIndex(res.IndexPath, ZipName, len(docs), at); err != nil {
		return res, err
	}

	p.log.Info("[Packager] Output written", "champions", len(docs), "zip", res.ZipPath)
	return res, nil
}

// WriteTree writes <dir>/<key>/Recommended/<key>.json for every document
func WriteTree(dir string, docs map[string]*itemset.Document) error {
	for _, key := range sortedKeys(docs) {
		data, err := Encode(docs[key])
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		target := filepath.Join(dir, filepath.FromSlash(RelPath(key)))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
	}
	return nil
}

// WriteZip bundles every document into one archive, in key order
func WriteZip(zipPath string, docs map[string]*itemset.Document) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, key := range sortedKeys(docs) {
		data, err := Encode(docs[key])
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		w, err := zw.Create(RelPath(key))
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", key, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("zip entry %s: %w", key, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	return f.Close()
}

// WriteIndex renders the download page
func WriteIndex(indexPath, zipName string, champions int, at time.Time) error {
	f, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer f.Close()

	err = indexTemplate.Execute(f, struct {
		Timestamp string
		Filename  string
		Champions int
	}{
		Timestamp: at.UTC().Format("2006-01-02 15:04:05 UTC"),
		Filename:  zipName,
		Champions: champions,
	})
	if err != nil {
		return fmt.Errorf("failed to render index: %w", err)
	}
	return f.Close()
}

func sortedKeys(docs map[string]*itemset.Document) []string {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
