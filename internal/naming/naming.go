// Package naming generates timestamped photo file names and resolves the
// root directory the scoped backend writes into.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// Prefix is prepended to every photo file name.
	Prefix = "PK_"
	// Extension of every stored photo.
	Extension = ".jpg"
	// Volume is the subdirectory photos are kept in under the resolved base
	// directory.
	Volume = "PhotoKeep"

	timeLayout = "2006-01-02-15-04-05"
)

// Generator produces collision-resistant file names from a millisecond
// timestamp and resolves where they live. Millisecond granularity makes
// collisions rare enough that a same-millisecond name is treated as an
// overwrite, not an error. The clock is injectable for tests.
type Generator struct {
	mediaDirs  []string
	privateDir string
	now        func() time.Time
}

// New builds a Generator. mediaDirs are candidate shared media directories
// checked in order; privateDir is the always-available fallback. A nil clock
// defaults to time.Now.
func New(mediaDirs []string, privateDir string, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		mediaDirs:  mediaDirs,
		privateDir: privateDir,
		now:        now,
	}
}

// baseDirectory picks the first existing media directory, falling back to
// the private directory. The chain is deterministic and never errors so
// that write targets and gallery listing always agree.
func (g *Generator) baseDirectory() string {
	for _, dir := range g.mediaDirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return g.privateDir
}

// RootDirectory returns the directory photos are stored in, creating the
// volume subdirectory on demand. If it cannot be created, the base directory
// itself is used.
func (g *Generator) RootDirectory() string {
	base := g.baseDirectory()
	root := filepath.Join(base, Volume)
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return root
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return base
	}
	return root
}

// Filename returns a fresh timestamped file name without any directory part,
// e.g. PK_2026-08-31-14-05-09-042.jpg.
func (g *Generator) Filename() string {
	t := g.now()
	return fmt.Sprintf("%s%s-%03d%s", Prefix, t.Format(timeLayout), t.Nanosecond()/int(time.Millisecond), Extension)
}

// Generate returns the full path for a fresh photo file under the root
// directory.
func (g *Generator) Generate() string {
	return filepath.Join(g.RootDirectory(), g.Filename())
}
