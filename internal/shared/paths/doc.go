// Package paths defines the file layout the boot programs and the
// filesystem server agree on.
//
//	/bin/      programs, resolved by the process manager
//	/etc/      seeded configuration (motd)
//	/var/log/  files programs append to
//	/tmp/      scratch files
package paths
