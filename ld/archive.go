package ld

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// archiveHeaderSize is the size of an `ar` member header.
const archiveHeaderSize = 60

// ReadArchiveMembers splits a System V / GNU archive into its members.  The
// symbol index (`/`, `/SYM64/`) is skipped and long names are looked up in
// the `//` string table.  BSD `#1/<len>` names are supported as well.
func ReadArchiveMembers(mf *MappedFile) ([]*MappedFile, error) {
	data := mf.Data
	if !strings.HasPrefix(string(data), archiveMagic) {
		return nil, errors.Newf("%s: not an archive", mf.DisplayName())
	}

	var (
		members  []*MappedFile
		strTable string
	)

	pos := int64(len(archiveMagic))
	for pos+archiveHeaderSize <= int64(len(data)) {
		hdr := string(data[pos : pos+archiveHeaderSize])
		if hdr[58:60] != "`\n" {
			return nil, errors.Newf("%s: corrupted archive header at offset %d", mf.DisplayName(), pos)
		}

		size, err := strconv.ParseInt(strings.TrimSpace(hdr[48:58]), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: bad member size at offset %d", mf.DisplayName(), pos)
		}

		if size < 0 {
			return nil, errors.Newf("%s: negative member size at offset %d", mf.DisplayName(), pos)
		}

		start := pos + archiveHeaderSize
		if start+size > int64(len(data)) {
			return nil, errors.Newf("%s: member at offset %d extends past end of file", mf.DisplayName(), pos)
		}

		// members are aligned to even offsets
		pos = start + size
		if pos%2 == 1 {
			pos++
		}

		rawName := strings.TrimRight(hdr[:16], " ")
		var name string

		switch {
		case rawName == "//":
			strTable = string(data[start : start+size])
			continue
		case rawName == "/" || rawName == "/SYM64/" || rawName == "__.SYMDEF" || rawName == "__.SYMDEF SORTED":
			continue
		case strings.HasPrefix(rawName, "#1/"):
			// BSD: the name is stored at the start of the member data
			nameLen, err := strconv.ParseInt(rawName[3:], 10, 64)
			if err != nil || nameLen < 0 || nameLen > size {
				return nil, errors.Newf("%s: bad BSD member name %q", mf.DisplayName(), rawName)
			}

			name = strings.TrimRight(string(data[start:start+nameLen]), "\x00")
			start += nameLen
			size -= nameLen
		case strings.HasPrefix(rawName, "/"):
			off, err := strconv.Atoi(rawName[1:])
			if err != nil || off < 0 || off >= len(strTable) {
				return nil, errors.Newf("%s: bad long member name %q", mf.DisplayName(), rawName)
			}

			name = strTable[off:]
			if end := strings.Index(name, "/\n"); end >= 0 {
				name = name[:end]
			}
		default:
			name = strings.TrimSuffix(rawName, "/")
		}

		members = append(members, mf.Slice(name, start, size))
	}

	return members, nil
}
