// Package staging owns the private directory that holds resized variants
// before they are compressed into the output directory.
package staging

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/appropriate-images/pkg/types"
)

// Prefix starts the name of every staging directory.
const Prefix = "appropriate-images-"

// Area is a staging directory exclusive to one invocation
type Area struct {
	dir  string
	once sync.Once
	err  error
}

// Create makes a fresh, uniquely named staging directory under root.
// An empty root uses os.TempDir.
func Create(root string) (*Area, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, Prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, types.Fatal("create staging area", dir, err)
	}
	return &Area{dir: dir}, nil
}

// Dir returns the staging directory path
func (a *Area) Dir() string {
	return a.dir
}

// Path returns the staging path for a file name
func (a *Area) Path(name string) string {
	return filepath.Join(a.dir, name)
}

// Release removes the staging directory and everything in it. Only the first
// call does work; later calls return the same result.
func (a *Area) Release() error {
	a.once.Do(func() {
		if err := os.RemoveAll(a.dir); err != nil {
			a.err = types.Fatal("release staging area", a.dir, err)
		}
	})
	return a.err
}
