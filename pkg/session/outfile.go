package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoAvailableFilename is returned when the desired output path and
	// every numbered fallback are taken or unwritable.
	ErrNoAvailableFilename = errors.New("no available output filename")
)

// maxFilenameAttempts bounds the numbered fallbacks tried after the
// desired name: stem_1 through stem_100.
const maxFilenameAttempts = 100

// ResolveOutputPath returns desired if it can be written, otherwise the
// first writable fallback of the form stem_N.ext. The probe leaves no
// file behind.
func ResolveOutputPath(desired string) (string, error) {
	if isWritable(desired) {
		return desired, nil
	}

	ext := filepath.Ext(desired)
	stem := strings.TrimSuffix(desired, ext)

	for n := 1; n <= maxFilenameAttempts; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if isWritable(candidate) {
			logrus.WithFields(logrus.Fields{
				"desired":  desired,
				"fallback": candidate,
			}).Warn("desired output file is not writable, using a numbered fallback")
			return candidate, nil
		}
	}

	return "", ErrNoAvailableFilename
}

// isWritable probes whether path can be opened for writing. An existing
// file counts when it can be opened for append (so files locked by other
// programs are skipped); a missing one when it can be created, in which
// case the probe file is removed again.
func isWritable(path string) bool {
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		if fi.IsDir() {
			return false
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return false
		}
		_ = f.Close()
		return true
	case os.IsNotExist(err):
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return false
		}
		_ = f.Close()
		_ = os.Remove(path)
		return true
	default:
		return false
	}
}
