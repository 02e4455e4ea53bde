// Package config loads the sushi.toml project manifest. The sushic command
// falls back to single-file compilation when no manifest is found in the
// input's directory or any parent directory.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Manifest is the decoded sushi.toml.
type Manifest struct {
	Package PackageSection `toml:"package"`
	Build   BuildSection   `toml:"build"`
}

// PackageSection names the project and its entry point.
type PackageSection struct {
	Name    string   `toml:"name"`
	Version string   `toml:"version"`
	Entry   string   `toml:"entry"`
	Sources []string `toml:"sources"`
}

// BuildSection carries codegen and toolchain settings.
type BuildSection struct {
	Target     string `toml:"target"`
	OptLevel   string `toml:"opt-level"`
	StdlibPath string `toml:"stdlib-path"`
	EmitLLVM   bool   `toml:"emit-llvm"`
}

// Default returns the manifest used when no sushi.toml is present.
func Default(entry string) *Manifest {
	name := filepath.Base(entry)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	return &Manifest{
		Package: PackageSection{Name: name, Entry: entry},
		Build:   BuildSection{OptLevel: "2"},
	}
}

// Load decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, errors.Wrapf(err, "cannot read manifest %s", path)
	}
	if m.Build.OptLevel == "" {
		m.Build.OptLevel = "2"
	}
	return &m, nil
}

// Discover walks up from dir looking for a sushi.toml; a missing manifest is
// not an error (single-file mode), a malformed one is.
func Discover(dir string) (*Manifest, string, error) {
	for {
		candidate := filepath.Join(dir, "sushi.toml")
		if _, err := os.Stat(candidate); err == nil {
			m, err := Load(candidate)
			if err != nil {
				return nil, "", err
			}
			return m, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}
