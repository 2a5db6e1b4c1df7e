package pipeline

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/texture-upscaler/pkg/logging"
	"github.com/menta2k/texture-upscaler/pkg/processing"
)

// Context is the state shared by every stage of one graph: the WIP
// directory, the log and the record of produced outputs.
type Context struct {
	WIPDir    string
	Verbosity int
	RunID     string
	Logger    *slog.Logger

	mu       sync.Mutex
	produced map[string][]string
	written  map[string]map[string]bool
}

// NewContext creates a context. A nil logger discards output.
func NewContext(wipDir string, verbosity int, logger *slog.Logger) *Context {
	if logger == nil {
		logger = logging.Logger(io.Discard, false, slog.LevelError)
	}
	return &Context{
		WIPDir:    wipDir,
		Verbosity: verbosity,
		RunID:     uuid.NewString(),
		Logger:    logger,
		produced:  map[string][]string{},
		written:   map[string]map[string]bool{},
	}
}

// Path returns the WIP location for obj with the given extension.
func (c *Context) Path(obj *Object, ext string) string {
	name := obj.Name()
	if obj.Role != "" && !strings.HasSuffix(name, obj.Role) {
		name += "_" + obj.Role
	}
	return filepath.Join(c.WIPDir, filepath.FromSlash(name)+"."+strings.TrimPrefix(ext, "."))
}

// Materialize makes sure obj exists on disk and returns its path. In-memory
// images are written to the WIP directory as PNG.
func (c *Context) Materialize(obj *Object) (string, error) {
	if obj.Path != "" {
		return obj.Path, nil
	}
	if obj.Image == nil {
		return "", fmt.Errorf("%w: %q has neither image nor path", ErrInvalidObject, obj.Name())
	}
	path := c.Path(obj, "png")
	if err := c.write(obj.Image, path); err != nil {
		return "", err
	}
	obj.Path = path
	return path, nil
}

// Save writes img for obj into the WIP directory and returns the stored object.
func (c *Context) Save(obj *Object, img image.Image, ext string) (*Object, error) {
	path := c.Path(obj, ext)
	if err := c.write(img, path); err != nil {
		return nil, err
	}
	obj.Path = path
	obj.Image = img
	return obj, nil
}

// write encodes img next to path and renames it into place, so an
// interrupted or failed encode never leaves a file that reads as cached.
func (c *Context) write(img image.Image, path string) error {
	tmp := c.tempPath(path)
	if err := processing.NewProcessor().SaveImage(img, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// tempPath keeps the extension of path so encoders pick the same format.
func (c *Context) tempPath(path string) string {
	return filepath.Join(filepath.Dir(path), ".tmp-"+c.RunID+"-"+filepath.Base(path))
}

// Record notes that output name was produced from the original base.
func (c *Context) Record(base, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.produced[base] {
		if n == name {
			return
		}
	}
	c.produced[base] = append(c.produced[base], name)
}

// RecordWrite notes that rel was written below dir during this run.
func (c *Context) RecordWrite(dir, rel string) {
	key := dirKey(dir)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.written[key] == nil {
		c.written[key] = map[string]bool{}
	}
	c.written[key][filepath.ToSlash(rel)] = true
}

// Written reports whether any stage wrote rel below dir during this run.
func (c *Context) Written(dir, rel string) bool {
	key := dirKey(dir)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written[key][filepath.ToSlash(rel)]
}

func dirKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// Produced returns the outputs recorded for base.
func (c *Context) Produced(base string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.produced[base]...)
}

// Originals returns every base that produced at least one output, sorted.
func (c *Context) Originals() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.produced))
	for b := range c.produced {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Seen reports whether name was produced during this run.
func (c *Context) Seen(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, names := range c.produced {
		for _, n := range names {
			if n == name {
				return true
			}
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
