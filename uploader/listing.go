package uploader

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cubicap/Jaculus-tools-sub000/types"
)

const (
	sizeFieldLen = 4
	sha1Len      = 20
)

// parseListing decodes repeated `('d'|'f') name 0x00 size(4 BE)` entries.
func parseListing(data []byte) ([]types.DirEntry, error) {
	entries := []types.DirEntry{}
	for len(data) > 0 {
		name, rest, err := cutName(data)
		if err != nil {
			return nil, err
		}
		if len(name) == 0 {
			return nil, fmt.Errorf("%w: entry without type flag", ErrMalformedListing)
		}
		var isDir bool
		switch name[0] {
		case 'd':
			isDir = true
		case 'f':
		default:
			return nil, fmt.Errorf("%w: unknown entry type %q", ErrMalformedListing, name[0])
		}
		if len(rest) < sizeFieldLen {
			return nil, fmt.Errorf("%w: truncated size of %q", ErrMalformedListing, name[1:])
		}
		entries = append(entries, types.DirEntry{
			Name:  string(name[1:]),
			IsDir: isDir,
			Size:  binary.BigEndian.Uint32(rest),
		})
		data = rest[sizeFieldLen:]
	}
	return entries, nil
}

// parseHashes decodes repeated `name 0x00 sha1(20)` entries.
func parseHashes(data []byte) ([]types.HashEntry, error) {
	entries := []types.HashEntry{}
	for len(data) > 0 {
		name, rest, err := cutName(data)
		if err != nil {
			return nil, err
		}
		if len(rest) < sha1Len {
			return nil, fmt.Errorf("%w: truncated digest of %q", ErrMalformedListing, name)
		}
		entries = append(entries, types.HashEntry{
			Name: string(name),
			SHA1: hex.EncodeToString(rest[:sha1Len]),
		})
		data = rest[sha1Len:]
	}
	return entries, nil
}

// parseResources decodes repeated `name 0x00 size(4 BE)` entries.
func parseResources(data []byte) ([]types.Resource, error) {
	entries := []types.Resource{}
	for len(data) > 0 {
		name, rest, err := cutName(data)
		if err != nil {
			return nil, err
		}
		if len(rest) < sizeFieldLen {
			return nil, fmt.Errorf("%w: truncated size of %q", ErrMalformedListing, name)
		}
		entries = append(entries, types.Resource{
			Name: string(name),
			Size: binary.BigEndian.Uint32(rest),
		})
		data = rest[sizeFieldLen:]
	}
	return entries, nil
}

func cutName(data []byte) (name, rest []byte, err error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return nil, nil, fmt.Errorf("%w: unterminated name", ErrMalformedListing)
	}
	return data[:i], data[i+1:], nil
}
