package prealign

import (
	"os"

	"github.com/grailbio/base/errors"
	"golang.org/x/sys/unix"
)

// newFIFO creates a fresh named pipe at path for one stage's
// aligner-to-filter stream. Any stale pipe left at the same path by an
// interrupted run is removed first so the endpoint is unambiguous. The
// pipe is registered for end-of-run cleanup.
func newFIFO(run *Run, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.E(err, "removing stale pipe "+path)
	}
	if err := unix.Mkfifo(path, 0666); err != nil {
		return errors.E(err, "mkfifo "+path)
	}
	run.RegisterCleanup(path)
	return nil
}

// fileNonEmpty reports whether path exists with non-zero size. It is the
// "stage already ran" test used for idempotent re-invocation.
func fileNonEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

// existingOutput returns whichever of path or its gzipped form survives
// from an earlier run, preferring the plain file.
func existingOutput(path string) (string, bool) {
	if fileNonEmpty(path) {
		return path, true
	}
	if fileNonEmpty(path + ".gz") {
		return path + ".gz", true
	}
	return "", false
}
