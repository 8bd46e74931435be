// Package index builds and loads the on-disk index that lets this module
// open a multi-gigabyte MBOX archive without a full re-scan on every
// launch: a fixed-size header plus a gob-encoded slice of mail.Record.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// magic is the 8-byte file signature, mirroring the original
// implementation's on-disk format so an index built by one version is at
// least recognizable (if not necessarily compatible) across rewrites.
var magic = [8]byte{'M', 'B', 'O', 'X', 'T', 'U', 'I', 0}

// formatVersion bumps whenever Header or the gob record encoding changes
// in an incompatible way. A mismatch is treated as IndexCorrupt, forcing
// a rebuild rather than risking a misread.
const formatVersion uint32 = 1

// headerSize is the fixed on-disk size of Header, including reserved
// padding for future fields.
const headerSize = 128

// Header is the first 128 bytes of an index file. Everything after it is
// a gob-encoded []mail.Record.
type Header struct {
	Magic        [8]byte
	Version      uint32
	Flags        uint32
	MessageCount uint64
	FileSize     uint64
	MTimeUnix    int64
	Hash         [32]byte // sha256 of the archive's first 4 KiB
}

func newHeader(messageCount uint64, fileSize uint64, mtimeUnix int64, hash [32]byte) Header {
	return Header{
		Magic:        magic,
		Version:      formatVersion,
		MessageCount: messageCount,
		FileSize:     fileSize,
		MTimeUnix:    mtimeUnix,
		Hash:         hash,
	}
}

// marshal renders h as exactly headerSize bytes.
func (h Header) marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(headerSize)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > headerSize {
		return nil, fmt.Errorf("index: header encodes to %d bytes, exceeds %d byte budget", len(out), headerSize)
	}
	padded := make([]byte, headerSize)
	copy(padded, out)
	return padded, nil
}

// unmarshalHeader reads a Header from the first headerSize bytes of data.
func unmarshalHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < headerSize {
		return h, fmt.Errorf("index: truncated header (%d bytes)", len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return h, err
	}
	if h.Magic != magic {
		return h, fmt.Errorf("index: bad magic")
	}
	return h, nil
}
