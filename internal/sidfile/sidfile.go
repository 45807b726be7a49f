package sidfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

const (
	headerSizeV1 = 0x76
	headerSizeV2 = 0x7C
	maxSongs     = 256
)

// Header carries the metadata block of a PSID/RSID file.
type Header struct {
	Magic       string // "PSID" or "RSID"
	Version     int    // 1-4
	DataOffset  int
	LoadAddress uint16
	InitAddress uint16
	PlayAddress uint16
	Songs       int
	StartSong   int
	Speed       uint32
	Title       string
	Author      string
	Released    string
}

func wrapInvalid(op, message string) error {
	return services.Wrap(services.ErrValidation, "sidfile", op, message, nil)
}

// ParseFile reads and parses the header of a SID file on disk.
func ParseFile(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sid: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes a PSID/RSID header. Text fields are stored as
// ISO 8859-1 in the container and are transcoded to UTF-8.
func Parse(data []byte) (*Header, error) {
	if len(data) < headerSizeV1 {
		return nil, wrapInvalid("parse", "malformed header: file too short")
	}

	magic := string(data[0:4])
	if magic != "PSID" && magic != "RSID" {
		return nil, wrapInvalid("parse", fmt.Sprintf("invalid magic %q (expected PSID or RSID)", magic))
	}

	version := int(binary.BigEndian.Uint16(data[4:6]))
	if version < 1 || version > 4 {
		return nil, wrapInvalid("parse", fmt.Sprintf("invalid version %d (expected 1-4)", version))
	}
	if magic == "RSID" && version < 2 {
		return nil, wrapInvalid("parse", "invalid header: RSID requires version 2 or later")
	}

	dataOffset := int(binary.BigEndian.Uint16(data[6:8]))
	wantOffset := headerSizeV1
	if version >= 2 {
		wantOffset = headerSizeV2
	}
	if dataOffset != wantOffset {
		return nil, wrapInvalid("parse", fmt.Sprintf("invalid data offset 0x%X for version %d", dataOffset, version))
	}
	if len(data) <= dataOffset {
		return nil, wrapInvalid("parse", "malformed file: no song data after header")
	}

	songs := int(binary.BigEndian.Uint16(data[14:16]))
	if songs < 1 || songs > maxSongs {
		return nil, wrapInvalid("parse", fmt.Sprintf("invalid song count %d", songs))
	}
	startSong := int(binary.BigEndian.Uint16(data[16:18]))
	if startSong < 1 || startSong > songs {
		// Some rips in the wild store 0; normalize instead of rejecting.
		startSong = 1
	}

	title, err := decodeLatin1(data[0x16:0x36])
	if err != nil {
		return nil, wrapInvalid("parse", "malformed title field")
	}
	author, err := decodeLatin1(data[0x36:0x56])
	if err != nil {
		return nil, wrapInvalid("parse", "malformed author field")
	}
	released, err := decodeLatin1(data[0x56:0x76])
	if err != nil {
		return nil, wrapInvalid("parse", "malformed released field")
	}

	return &Header{
		Magic:       magic,
		Version:     version,
		DataOffset:  dataOffset,
		LoadAddress: binary.BigEndian.Uint16(data[8:10]),
		InitAddress: binary.BigEndian.Uint16(data[10:12]),
		PlayAddress: binary.BigEndian.Uint16(data[12:14]),
		Songs:       songs,
		StartSong:   startSong,
		Speed:       binary.BigEndian.Uint32(data[18:22]),
		Title:       title,
		Author:      author,
		Released:    released,
	}, nil
}

// decodeLatin1 transcodes a fixed-size, zero-padded ISO 8859-1 field to UTF-8.
func decodeLatin1(field []byte) (string, error) {
	trimmed := field
	if idx := bytes.IndexByte(field, 0); idx >= 0 {
		trimmed = field[:idx]
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(trimmed)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(decoded)), nil
}
