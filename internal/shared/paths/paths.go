package paths

import (
	"fmt"
	"path"
	"strings"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// Top-level directories
const (
	Bin = "/bin"
	Etc = "/etc"
	Var = "/var"
	Tmp = "/tmp"
)

// Well-known files and directories
const (
	Log  = "/var/log"
	MOTD = "/etc/motd"
)

// MaxLen is the longest path a request can carry.
const MaxLen = proto.MaxPathLen

// Program returns the path of the named program.
func Program(name string) string {
	return path.Join(Bin, name)
}

// LogFile returns the path of the named log file.
func LogFile(name string) string {
	return path.Join(Log, name)
}

// IsProgram reports whether p lies in the program directory.
func IsProgram(p string) bool {
	return strings.HasPrefix(p, Bin+"/")
}

// Validate checks that p is absolute, clean and short enough to send.
func Validate(p string) error {
	switch {
	case p == "" || p[0] != '/':
		return fmt.Errorf("path %q is not absolute", p)
	case len(p) > MaxLen:
		return fmt.Errorf("path of %d bytes exceeds %d", len(p), MaxLen)
	case path.Clean(p) != p:
		return fmt.Errorf("path %q is not clean", p)
	}
	return nil
}
