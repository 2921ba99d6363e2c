package proto

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

// PersistentFailure is replied by any server whose handler kept panicking
// for the same request.
const PersistentFailure = 0x999

// IsHoldOn reports whether reply is svc's own "try again" status.
func IsHoldOn(svc itc.ServiceID, reply itc.Message) bool {
	return svc == itc.ServicePM && reply.A == PMHoldOn
}

// HasStatus reports whether svc puts a status code in word a of its
// replies. The clock puts the time there instead.
func HasStatus(svc itc.ServiceID) bool {
	return svc != itc.ServiceRTC
}

var statusNames = map[itc.ServiceID]map[uint64]string{
	itc.ServiceMM: {
		MMOK:            "ok",
		MMErr:           "allocation failed",
		MMUnknownAction: "unknown action",
	},
	itc.ServicePM: {
		PMOK:          "ok",
		PMHoldOn:      "hold on",
		PMInvArg:      "invalid argument",
		PMSpawnFailed: "spawn failed",
	},
	itc.ServiceBlk: {
		BlkOK:  "ok",
		BlkErr: "i/o error",
	},
	itc.ServiceFS: {
		FSOK:       "ok",
		FSErr:      "i/o error",
		FSNotFound: "not found",
		FSInvArg:   "invalid argument",
	},
}

// StatusText is a short diagnostic for a reply status.
func StatusText(svc itc.ServiceID, status uint64) string {
	if status == PersistentFailure {
		return "persistent server failure"
	}
	if name, ok := statusNames[svc][status]; ok {
		return name
	}
	return fmt.Sprintf("status %#x", status)
}
