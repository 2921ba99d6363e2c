package paths

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelpers(t *testing.T) {
	assert.Equal(t, "/bin/hello", Program("hello"))
	assert.Equal(t, "/var/log/hello", LogFile("hello"))
	assert.True(t, IsProgram("/bin/date"))
	assert.False(t, IsProgram("/binary"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		path  string
		valid bool
	}{
		{"/etc/motd", true},
		{"/", true},
		{"", false},
		{"etc/motd", false},
		{"/etc/../motd", false},
		{"/tmp/", false},
		{"/" + strings.Repeat("a", MaxLen), false},
		{"/" + strings.Repeat("a", MaxLen-1), true},
	}
	for _, tt := range tests {
		err := Validate(tt.path)
		if tt.valid {
			assert.NoError(t, err, tt.path)
		} else {
			assert.Error(t, err, tt.path)
		}
	}
}
