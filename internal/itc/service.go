package itc

import (
	"fmt"
	"strings"
)

// ServiceID names a well-known server. The set is fixed at build time.
type ServiceID uint64

const (
	ServiceBlk      ServiceID = 0
	ServiceFS       ServiceID = 1
	ServiceTerminal ServiceID = 2
	ServiceMM       ServiceID = 3
	ServicePM       ServiceID = 4
	ServiceRTC      ServiceID = 5
	ServiceTest     ServiceID = 6
)

var serviceNames = map[ServiceID]string{
	ServiceBlk:      "blk",
	ServiceFS:       "fs",
	ServiceTerminal: "terminal",
	ServiceMM:       "mm",
	ServicePM:       "pm",
	ServiceRTC:      "rtc",
	ServiceTest:     "test",
}

// Valid reports whether id is one of the compiled-in services.
func (id ServiceID) Valid() bool {
	_, ok := serviceNames[id]
	return ok
}

func (id ServiceID) String() string {
	if name, ok := serviceNames[id]; ok {
		return name
	}
	return fmt.Sprintf("service(%d)", uint64(id))
}

// ParseService resolves a service by its short name.
func ParseService(name string) (ServiceID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, n := range serviceNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown service %q", name)
}

// Services returns every compiled-in service id in ascending order.
func Services() []ServiceID {
	out := make([]ServiceID, 0, len(serviceNames))
	for id := ServiceBlk; id <= ServiceTest; id++ {
		out = append(out, id)
	}
	return out
}
