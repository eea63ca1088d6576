//go:build linux || darwin

package matemap

import "golang.org/x/sys/unix"

// DefaultHandleQuota derives a file-handle budget for the unmatched-
// mate map from the process's open-file rlimit when the caller has
// not set MAX_FILE_HANDLES_FOR_READ_ENDS_MAP explicitly, reserving
// half the soft limit for the rest of the engine (the external
// sorters' own spill files, plus the input/output streams).
func DefaultHandleQuota() int {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 8000
	}
	budget := int(rl.Cur / 2)
	if budget < 100 {
		budget = 100
	}
	if budget > 8000 {
		budget = 8000
	}
	return budget
}
