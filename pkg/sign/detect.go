package sign

import (
	"encoding/binary"
	"io"
	"log/slog"
	"os"

	"github.com/blacktop/go-macho/types"
)

// magic64Swapped is types.Magic64 read from a binary written in the
// opposite byte order.
const magic64Swapped = 0xcffaedfe

// isSignableBinary reports whether the file at path starts with a 64-bit
// Mach-O header, in either byte order. Fat/universal headers are not
// recognized; artifacts are expected to have been thinned to a single
// architecture before release.
//
// Any failure to read the first four bytes (permissions, a race with a
// concurrent delete, a file shorter than a header) means the file is not
// signable; the event is logged at debug level and never escalated.
func isSignableBinary(path string, log *slog.Logger) bool {
	f, err := os.Open(path)
	if err != nil {
		log.Debug("skipping unreadable candidate", "path", path, "error", err)
		return false
	}
	defer f.Close()

	var header [4]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		log.Debug("skipping candidate with short header", "path", path, "error", err)
		return false
	}

	magic := binary.BigEndian.Uint32(header[:])
	return magic == uint32(types.Magic64) || magic == magic64Swapped
}
