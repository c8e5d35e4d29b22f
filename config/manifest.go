package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml"

	"ltold/common"
	"ltold/ld"
)

// tomlManifest represents a link manifest as it is encoded in TOML
type tomlManifest struct {
	Link   *tomlLink   `toml:"link"`
	Plugin *tomlPlugin `toml:"plugin"`
}

// tomlLink represents the `[link]` table
type tomlLink struct {
	Output       string   `toml:"output"`
	Kind         string   `toml:"kind"`
	Machine      string   `toml:"machine"`
	Inputs       []string `toml:"inputs"`
	LibraryPaths []string `toml:"library-paths,omitempty"`
}

// tomlPlugin represents the `[plugin]` table
type tomlPlugin struct {
	Path    string   `toml:"path"`
	Options []string `toml:"options,omitempty"`
}

// Manifest is a validated link manifest.
type Manifest struct {
	// Root is the directory containing the manifest.  Relative paths in the
	// manifest are relative to it.
	Root string

	// Args are the link options the manifest describes.
	Args ld.Args

	// Inputs are the input files in link order.
	Inputs []string
}

// LoadManifest loads and validates the manifest at `path`.  If `path` is a
// directory, the manifest is the `ltold.toml` file inside it.
func LoadManifest(path string) (*Manifest, error) {
	if finfo, err := os.Stat(path); err == nil && finfo.IsDir() {
		path = filepath.Join(path, common.ManifestFileName)
	}

	buff, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}

	return ParseManifest(filepath.Dir(path), buff)
}

// ParseManifest parses and validates the contents of a manifest located in
// the directory `root`.
func ParseManifest(root string, buff []byte) (*Manifest, error) {
	tm := &tomlManifest{}
	if err := toml.Unmarshal(buff, tm); err != nil {
		return nil, errors.Wrap(err, "malformed manifest")
	}

	if tm.Link == nil {
		return nil, errors.New("manifest is missing the [link] table")
	}

	m := &Manifest{Root: root}
	if err := convertLink(m, tm.Link); err != nil {
		return nil, err
	}

	if tm.Plugin != nil {
		if err := convertPlugin(m, tm.Plugin); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// convertLink validates the `[link]` table and moves it into the manifest
func convertLink(m *Manifest, link *tomlLink) error {
	if len(link.Inputs) == 0 {
		return errors.New("link.inputs: at least one input file is required")
	}

	if link.Output == "" {
		m.Args.Output = "a.out"
	} else {
		m.Args.Output = m.resolve(link.Output)
	}

	if link.Kind != "" {
		kind, ok := ld.OutputKindNames[link.Kind]
		if !ok {
			return errors.Newf("link.kind: unknown output kind `%s` (expected exe, pie or shared)", link.Kind)
		}

		m.Args.Kind = kind
	}

	if link.Machine != "" {
		target, ok := ld.TargetByName(link.Machine)
		if !ok {
			return errors.Newf("link.machine: unsupported machine `%s`", link.Machine)
		}

		m.Args.Target = target
	}

	for _, input := range link.Inputs {
		if strings.TrimSpace(input) == "" {
			return errors.New("link.inputs: empty input path")
		}

		if strings.HasPrefix(input, "-l") {
			m.Inputs = append(m.Inputs, input)
		} else {
			m.Inputs = append(m.Inputs, m.resolve(input))
		}
	}

	for _, dir := range link.LibraryPaths {
		m.Args.LibraryPaths = append(m.Args.LibraryPaths, m.resolve(dir))
	}

	return nil
}

// convertPlugin validates the `[plugin]` table and moves it into the manifest
func convertPlugin(m *Manifest, plugin *tomlPlugin) error {
	if plugin.Path == "" {
		return errors.New("plugin.path: a plugin table requires a path")
	}

	if plugin.Path == common.BuiltinPluginPath {
		m.Args.Plugin = plugin.Path
	} else {
		m.Args.Plugin = m.resolve(plugin.Path)
	}

	m.Args.PluginOpts = plugin.Options
	return nil
}

// resolve makes a manifest-relative path absolute.
func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(m.Root, path)
}
