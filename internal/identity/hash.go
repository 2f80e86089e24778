package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// FileDescriptor holds the metadata attributes a video is keyed on.
// File content is never read; two files with identical name, size and
// modification time map to the same key even if their bytes differ.
type FileDescriptor struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// Digest derives the cache key for a video file. The digest is a
// SHA-256 over the metadata triple, rendered as lowercase hex, and is
// stable across processes.
func Digest(fd FileDescriptor) string {
	sum := sha256.Sum256([]byte(canonical(fd)))
	return hex.EncodeToString(sum[:])
}

func canonical(fd FileDescriptor) string {
	return fmt.Sprintf("%s|%d|%d", fd.Name, fd.Size, fd.ModifiedAt.UnixMilli())
}
