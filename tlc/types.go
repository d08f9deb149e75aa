// Package tlc describes the files a sync covers: what kind of entry sits at
// a path, its permission bits and its size.
package tlc

import (
	"os"

	"github.com/itchio/buoy/wire"
	"github.com/pkg/errors"
)

var IgnoredDirs = []string{
	".git",
	".cvs",
	".svn",
}

// Kind is the first character of a mode string.
type Kind byte

const (
	KindRegular Kind = '-'
	KindDir     Kind = 'd'
	KindOther   Kind = '?'
	// KindAbsent marks a path that no longer exists.
	KindAbsent Kind = 'x'
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDir:
		return "directory"
	case KindOther:
		return "other"
	case KindAbsent:
		return "absent"
	}
	return "unknown"
}

// Entry is what a stat tells us about a path.
type Entry struct {
	Path string
	Kind Kind
	Mode os.FileMode

	Size int64
}

const permChars = "rwxrwxrwx"

// ModeString formats the entry as a type character followed by
// rwx for owner, group and other, e.g. "-rw-r--r--".
func (e *Entry) ModeString() string {
	s := make([]byte, wire.ModeSize)
	s[0] = byte(e.Kind)
	for i := 0; i < 9; i++ {
		if e.Mode&(1<<uint(8-i)) != 0 {
			s[i+1] = permChars[i]
		} else {
			s[i+1] = '-'
		}
	}
	return string(s)
}

// ParseMode is the inverse of ModeString.
func ParseMode(s string) (Kind, os.FileMode, error) {
	if len(s) != wire.ModeSize {
		return 0, 0, errors.Wrapf(wire.ErrFormatViolation, "mode %q should be %d characters", s, wire.ModeSize)
	}

	kind := Kind(s[0])
	switch kind {
	case KindRegular, KindDir, KindOther, KindAbsent:
		// good
	default:
		return 0, 0, errors.Wrapf(wire.ErrFormatViolation, "mode %q has unknown type %q", s, s[0])
	}

	var mode os.FileMode
	for i := 0; i < 9; i++ {
		switch s[i+1] {
		case permChars[i]:
			mode |= 1 << uint(8-i)
		case '-':
			// unset
		default:
			return 0, 0, errors.Wrapf(wire.ErrFormatViolation, "mode %q has invalid permission character %q", s, s[i+1])
		}
	}
	return kind, mode, nil
}
