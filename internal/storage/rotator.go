// Package storage keeps every downloaded match as JSON lines on disk so the
// event store can be rebuilt without talking to the API again.
package storage

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"itemset-builder/internal/logger"
	"itemset-builder/internal/store"
)

const (
	// Rotation triggers
	MaxMatchesPerFile = 1000
	MaxFileAge        = 1 * time.Hour

	filePrefix = "raw_matches_"
)

// MatchCache writes matches to rotating JSONL files.
// hot holds the file being written, warm holds closed files and cold holds
// gzip archives.
type MatchCache struct {
	mu  sync.Mutex
	log *logger.Logger

	hotDir  string
	warmDir string
	coldDir string

	maxMatches int

	// Current file state
	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	matchCount    int
	fileOpenedAt  time.Time
	seq           int
}

// Option configures a MatchCache
type Option func(*MatchCache)

// WithMaxMatchesPerFile overrides the rotation size
func WithMaxMatchesPerFile(n int) Option {
	return func(c *MatchCache) {
		if n > 0 {
			c.maxMatches = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(c *MatchCache) {
		c.log = l
	}
}

// Open creates the directory layout under baseDir. No file is opened until
// the first Append.
func Open(baseDir string, opts ...Option) (*MatchCache, error) {
	c := &MatchCache{
		log:        logger.Nop(),
		hotDir:     filepath.Join(baseDir, "hot"),
		warmDir:    filepath.Join(baseDir, "warm"),
		coldDir:    filepath.Join(baseDir, "cold"),
		maxMatches: MaxMatchesPerFile,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, dir := range []string{c.hotDir, c.warmDir, c.coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// a crashed run leaves its hot file behind; it is still replayable
	if err := c.recoverHot(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MatchCache) recoverHot() error {
	entries, err := os.ReadDir(c.hotDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Rename(filepath.Join(c.hotDir, e.Name()), filepath.Join(c.warmDir, e.Name())); err != nil {
			return fmt.Errorf("failed to recover %s: %w", e.Name(), err)
		}
		c.log.Info("[Cache] Recovered hot file", "file", e.Name())
	}
	return nil
}

// Append writes one match as a JSON line and rotates when the file is full
// or too old
func (c *MatchCache) Append(m store.RawMatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentFile == nil {
		if err := c.rotate(); err != nil {
			return err
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", m.MatchID, err)
	}
	if _, err := c.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write match: %w", err)
	}
	if err := c.currentWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := c.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	c.matchCount++
	if c.matchCount >= c.maxMatches || time.Since(c.fileOpenedAt) >= MaxFileAge {
		return c.rotate()
	}
	return nil
}

// rotate moves the current file to warm and opens a new one
func (c *MatchCache) rotate() error {
	if c.currentFile != nil {
		if err := c.closeCurrent(); err != nil {
			return err
		}
	}

	c.seq++
	filename := fmt.Sprintf("%s%s_%04d.jsonl", filePrefix, time.Now().UTC().Format("2006-01-02_15-04-05.000000"), c.seq)
	c.currentPath = filepath.Join(c.hotDir, filename)

	file, err := os.Create(c.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	c.currentFile = file
	c.currentWriter = bufio.NewWriterSize(file, 64*1024)
	c.matchCount = 0
	c.fileOpenedAt = time.Now()

	c.log.Debug("[Cache] Opened new file", "file", filename)
	return nil
}

// closeCurrent flushes and closes the hot file, moving it to warm when it
// holds data
func (c *MatchCache) closeCurrent() error {
	if err := c.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := c.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	c.currentFile = nil

	name := filepath.Base(c.currentPath)
	if c.matchCount == 0 {
		return os.Remove(c.currentPath)
	}
	if err := os.Rename(c.currentPath, filepath.Join(c.warmDir, name)); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	c.log.Info("[Cache] Moved file to warm storage", "file", name, "matches", c.matchCount)
	return nil
}

// Close flushes and closes the current file
func (c *MatchCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentFile == nil {
		return nil
	}
	return c.closeCurrent()
}

// Archive compresses every warm file into cold storage
func (c *MatchCache) Archive() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := listFiles(c.warmDir, ".jsonl")
	if err != nil {
		return 0, err
	}
	for i, path := range files {
		if err := compressToCold(path, c.coldDir); err != nil {
			return i, fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
		}
		c.log.Debug("[Cache] Compressed file to cold storage", "file", filepath.Base(path))
	}
	return len(files), nil
}

// compressToCold gzips a warm file into coldDir and removes the original
func compressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	src.Close()
	return os.Remove(warmPath)
}

// Replay streams every cached match (cold archives first, then warm files,
// each in name order) to fn in batches of batchSize
func (c *MatchCache) Replay(batchSize int, fn func([]store.RawMatch) error) (int, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	cold, err := listFiles(c.coldDir, ".jsonl.gz")
	if err != nil {
		return 0, err
	}
	warm, err := listFiles(c.warmDir, ".jsonl")
	if err != nil {
		return 0, err
	}

	total := 0
	batch := make([]store.RawMatch, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = make([]store.RawMatch, 0, batchSize)
		return nil
	}

	for _, path := range append(cold, warm...) {
		err := readFile(path, func(m store.RawMatch) error {
			batch = append(batch, m)
			if len(batch) >= batchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("replay %s: %w", filepath.Base(path), err)
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// ReadAll loads every cached match into memory
func (c *MatchCache) ReadAll() ([]store.RawMatch, error) {
	var out []store.RawMatch
	_, err := c.Replay(MaxMatchesPerFile, func(batch []store.RawMatch) error {
		out = append(out, batch...)
		return nil
	})
	return out, err
}

func readFile(path string, fn func(store.RawMatch) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var m store.RawMatch
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// listFiles returns the cache files in dir with the suffix, sorted by name
func listFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// Stats returns the number of matches in the current file and its name
func (c *MatchCache) Stats() (matchesInCurrentFile int, currentFileName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentFile == nil {
		return 0, ""
	}
	return c.matchCount, filepath.Base(c.currentPath)
}
