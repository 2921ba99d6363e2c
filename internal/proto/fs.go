package proto

// Filesystem actions.
const (
	FSOpen  = 1 // b = path, c = path length, d = open flags; reply b = fd
	FSRead  = 2 // b = fd, c = buffer, d = length; reply b = bytes read
	FSWrite = 3 // b = fd, c = buffer, d = length; reply b = bytes written
	FSClose = 4 // b = fd
	FSStat  = 5 // b = fd; reply b = file size
)

// Open flags.
const (
	OpenCreate   = 1 << 0
	OpenTruncate = 1 << 1
	OpenAppend   = 1 << 2
)

// Filesystem replies.
const (
	FSOK       = 0
	FSErr      = 1
	FSNotFound = 2
	FSInvArg   = 3
)
