package proto

// Process manager actions.
const (
	// PMSpawn starts the program at the path b (length c) with argument d.
	// The reply carries the new pid in b.
	PMSpawn = 1
	// PMWait polls process b. It replies PMHoldOn while the process runs.
	PMWait = 2
	// PMPS logs the process table and replies with the process count in b.
	PMPS = 3
)

// Process manager replies.
const (
	PMOK          = 0
	PMHoldOn      = 1
	PMInvArg      = 2
	PMSpawnFailed = 3
)

// MaxPathLen bounds a spawn path.
const MaxPathLen = 127

// FirstPID is the pid given to the first spawned process.
const FirstPID = 200
