package boot

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/shared/paths"
)

// Server names accepted in a manifest.
const (
	ServerMM  = "mm"
	ServerPM  = "pm"
	ServerRTC = "rtc"
	ServerBlk = "blk"
	ServerFS  = "fs"
)

var knownServers = map[string]bool{
	ServerMM:  true,
	ServerPM:  true,
	ServerRTC: true,
	ServerBlk: true,
	ServerFS:  true,
}

// Manifest describes what the system starts.
type Manifest struct {
	// Servers are started in order, each in its own trusted process.
	Servers []string `yaml:"servers"`
	// Init programs are spawned one after the other, each waited for
	// before the next starts.
	Init  []InitEntry `yaml:"init"`
	Files []SeedFile  `yaml:"files"`
}

// InitEntry is one program run at boot.
type InitEntry struct {
	Path string `yaml:"path"`
	Arg  uint64 `yaml:"arg"`
}

// SeedFile is placed in the filesystem before any server starts.
type SeedFile struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

// DefaultManifest starts every server and runs the demo programs.
func DefaultManifest() *Manifest {
	return &Manifest{
		Servers: []string{ServerMM, ServerRTC, ServerBlk, ServerFS, ServerPM},
		Init: []InitEntry{
			{Path: ProgramHello},
			{Path: ProgramDate},
			{Path: ProgramPS},
		},
		Files: []SeedFile{
			{Path: paths.MOTD, Content: "welcome to the microkernel\n"},
		},
	}
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads a manifest file, or returns DefaultManifest when path
// is empty.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks server names and the programs' dependencies on them.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, name := range m.Servers {
		if !knownServers[name] {
			errs = append(errs, fmt.Errorf("unknown server %q", name))
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("server %q listed twice", name))
		}
		seen[name] = true
	}
	if !seen[ServerMM] {
		errs = append(errs, errors.New("the mm server is required"))
	}
	if len(m.Init) > 0 && !seen[ServerPM] {
		errs = append(errs, errors.New("init programs need the pm server"))
	}
	for _, e := range m.Init {
		if !paths.IsProgram(e.Path) {
			errs = append(errs, fmt.Errorf("init program %q is not in %s", e.Path, paths.Bin))
		}
	}
	for _, f := range m.Files {
		if err := paths.Validate(f.Path); err != nil {
			errs = append(errs, fmt.Errorf("seed file: %w", err))
		}
	}
	return errors.Join(errs...)
}
