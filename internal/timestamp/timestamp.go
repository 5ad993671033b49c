// Package timestamp resolves the capture time of a media file. Resolution
// preference is: filename pattern, embedded metadata, filesystem mtime.
package timestamp

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MetadataReader extracts a capture timestamp from a file's embedded
// metadata (EXIF and friends). Implementations return false when the file
// carries no usable timestamp.
type MetadataReader interface {
	CaptureTime(path string) (time.Time, bool)
}

// Resolver resolves capture timestamps for files discovered on disk.
// The metadata reader is optional.
type Resolver struct {
	metadata MetadataReader
}

// NewResolver creates a resolver. reader may be nil.
func NewResolver(reader MetadataReader) *Resolver {
	return &Resolver{metadata: reader}
}

var (
	// Matches names like IMG_20210405_123456.jpg, PXL_20210405_123456789.jpg
	// and Screenshot_20210405-123456.png.
	dateTimePattern = regexp.MustCompile(`(20\d{6})[_-](\d{6})`)
	// Matches a bare unix milliseconds timestamp, e.g. 1617621296000.jpg.
	unixMillisPattern = regexp.MustCompile(`^(1\d{12})$`)
)

// CaptureTime resolves the capture time for the file at path. The boolean
// is false only when every strategy failed, including reading the file's
// mtime.
func (r *Resolver) CaptureTime(path string) (time.Time, bool) {
	name := filepath.Base(path)

	if ts, ok := fromFileName(name); ok {
		return ts, true
	}

	if r.metadata != nil {
		if ts, ok := r.metadata.CaptureTime(path); ok {
			return ts, true
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime().UTC(), true
}

func fromFileName(name string) (time.Time, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	if m := dateTimePattern.FindStringSubmatch(stem); m != nil {
		ts, err := time.Parse("20060102150405", m[1]+m[2])
		if err == nil {
			return ts.UTC(), true
		}
	}

	if m := unixMillisPattern.FindStringSubmatch(stem); m != nil {
		millis, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return time.UnixMilli(millis).UTC(), true
		}
	}

	return time.Time{}, false
}
