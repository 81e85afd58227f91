// Package magic sniffs file types from their leading bytes.
package magic

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

type Magic uint32

const (
	// MagicZipLocal starts a zip archive with at least one entry.
	MagicZipLocal Magic = 0x04034b50
	// MagicZipEmpty is the end-of-central-directory record of an empty zip.
	MagicZipEmpty Magic = 0x06054b50
	// MagicZipSpanned marks a split archive.
	MagicZipSpanned Magic = 0x08074b50
)

// IsZip reports whether filePath starts like a zip archive, which every APK
// is. A short or unrecognized header returns an error describing why.
func IsZip(filePath string) (bool, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err = io.ReadFull(f, magic[:]); err != nil {
		return false, fmt.Errorf("failed to read magic: %w", err)
	}

	switch Magic(binary.LittleEndian.Uint32(magic[:])) {
	case MagicZipLocal, MagicZipEmpty:
		return true, nil
	case MagicZipSpanned:
		return false, fmt.Errorf("split zip archives are not supported")
	default:
		return false, fmt.Errorf("not a zip archive")
	}
}
