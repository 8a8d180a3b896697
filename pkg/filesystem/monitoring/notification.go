package monitoring

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

// Format identifies the record layout used in a directory's notification
// buffer. Not every filesystem supports the extended layout, so each directory
// watcher starts with FormatExtended and falls back to FormatLegacy once the
// filesystem rejects it.
type Format uint8

const (
	// FormatExtended is the FILE_NOTIFY_EXTENDED_INFORMATION layout.
	FormatExtended Format = iota
	// FormatLegacy is the FILE_NOTIFY_INFORMATION layout.
	FormatLegacy
)

// String provides a human-readable representation of a format.
func (f Format) String() string {
	switch f {
	case FormatExtended:
		return "extended"
	case FormatLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Action is the action code carried by a notification record.
type Action uint32

const (
	// ActionAdded indicates that a name was added to the directory.
	ActionAdded Action = 1 + iota
	// ActionRemoved indicates that a name was removed from the directory.
	ActionRemoved
	// ActionModified indicates that the content or metadata of an entry
	// changed.
	ActionModified
	// ActionRenamedOldName indicates that an entry was renamed away from the
	// name.
	ActionRenamedOldName
	// ActionRenamedNewName indicates that an entry was renamed to the name.
	ActionRenamedNewName
)

// String provides a human-readable representation of an action.
func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionRemoved:
		return "removed"
	case ActionModified:
		return "modified"
	case ActionRenamedOldName:
		return "renamed-old-name"
	case ActionRenamedNewName:
		return "renamed-new-name"
	default:
		return "unknown"
	}
}

// isChange returns whether the action leaves the name referring to new or
// changed content.
func (a Action) isChange() bool {
	return a == ActionAdded || a == ActionModified || a == ActionRenamedNewName
}

// isDeletion returns whether the action leaves the name referring to nothing.
func (a Action) isDeletion() bool {
	return a == ActionRemoved || a == ActionRenamedOldName
}

// notification is a decoded notification record, normalized across formats.
type notification struct {
	// action is the record's action code.
	action Action
	// name is the affected entry's name within the directory.
	name string
}

// recordLayout describes the fixed portion of a notification record. All
// integers are little-endian. Every layout starts with the next-record offset
// at offset 0 and the action code at offset 4.
type recordLayout struct {
	// headerSize is the byte size of the fixed header preceding the inline
	// name.
	headerSize int
	// nameLengthOffset is the offset of the name byte length field.
	nameLengthOffset int
	// alignment is the alignment used for record starts when encoding.
	alignment int
}

// recordLayouts are the record layouts indexed by format. The extended header
// carries six 64-bit timestamps and sizes, attributes, a reparse tag, and two
// 64-bit file identifiers before the name length.
var recordLayouts = [...]recordLayout{
	FormatExtended: {headerSize: 84, nameLengthOffset: 80, alignment: 8},
	FormatLegacy:   {headerSize: 12, nameLengthOffset: 8, alignment: 4},
}

const (
	// recordNextOffsetOffset is the offset of the next-record offset field.
	recordNextOffsetOffset = 0
	// recordActionOffset is the offset of the action code field.
	recordActionOffset = 4
)

// layout returns the record layout for the format.
func (f Format) layout() (recordLayout, error) {
	if int(f) >= len(recordLayouts) {
		return recordLayout{}, errors.Errorf("unknown notification format: %d", f)
	}
	return recordLayouts[f], nil
}

// decodeName decodes a UTF-16LE record name.
func decodeName(data []byte) (string, error) {
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// encodeName encodes a record name as UTF-16LE.
func encodeName(name string) ([]byte, error) {
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(name))
}

// decodeNotifications decodes the linked list of notification records stored
// in buffer. Records are traversed via their next-record offsets until an
// offset of zero. If the buffer is malformed, the records decoded before the
// malformed record are returned along with an error.
func decodeNotifications(format Format, buffer []byte) ([]notification, error) {
	// Look up the layout.
	layout, err := format.layout()
	if err != nil {
		return nil, err
	}

	// Walk the record list.
	var result []notification
	for offset := 0; ; {
		// Ensure that the fixed header is present.
		record := buffer[offset:]
		if len(record) < layout.headerSize {
			return result, errors.Errorf("truncated record header at offset %d", offset)
		}

		// Extract the header fields.
		next := binary.LittleEndian.Uint32(record[recordNextOffsetOffset:])
		action := Action(binary.LittleEndian.Uint32(record[recordActionOffset:]))
		nameLength := uint64(binary.LittleEndian.Uint32(record[layout.nameLengthOffset:]))

		// Validate the name length against the record and buffer bounds.
		recordSize := uint64(layout.headerSize) + nameLength
		if nameLength%2 != 0 {
			return result, errors.Errorf("odd name length at offset %d", offset)
		} else if recordSize > uint64(len(record)) {
			return result, errors.Errorf("name exceeds buffer at offset %d", offset)
		} else if next != 0 && uint64(next) < recordSize {
			return result, errors.Errorf("overlapping record at offset %d", offset)
		}

		// Decode the name.
		name, err := decodeName(record[layout.headerSize:recordSize])
		if err != nil {
			return result, errors.Wrapf(err, "unable to decode name at offset %d", offset)
		}
		result = append(result, notification{action: action, name: name})

		// Move to the next record, if any.
		if next == 0 {
			return result, nil
		} else if uint64(offset)+uint64(next) >= uint64(len(buffer)) {
			return result, errors.Errorf("next record offset out of bounds at offset %d", offset)
		}
		offset += int(next)
	}
}

// encodeNotifications encodes notifications into buffer using the specified
// format's record layout, linking records in order. It returns the number of
// bytes written and the number of notifications consumed. Encoding stops at the
// first notification that doesn't fit. Notifications whose names can't be
// encoded are consumed without being written.
func encodeNotifications(format Format, buffer []byte, notifications []notification) (int, int, error) {
	// Look up the layout.
	layout, err := format.layout()
	if err != nil {
		return 0, 0, err
	}

	// Encode records.
	var written, consumed int
	offset, previous := 0, -1
	for _, n := range notifications {
		// Encode the name.
		name, err := encodeName(n.name)
		if err != nil {
			consumed++
			continue
		}

		// Ensure that the record fits.
		size := layout.headerSize + len(name)
		if offset+size > len(buffer) {
			break
		}

		// Write the record. The header is cleared first because the buffer is
		// reused across reads, and a zeroed next-record offset terminates the
		// list.
		record := buffer[offset : offset+size]
		clear(record[:layout.headerSize])
		binary.LittleEndian.PutUint32(record[recordActionOffset:], uint32(n.action))
		binary.LittleEndian.PutUint32(record[layout.nameLengthOffset:], uint32(len(name)))
		copy(record[layout.headerSize:], name)

		// Link the previous record to this one.
		if previous >= 0 {
			binary.LittleEndian.PutUint32(buffer[previous+recordNextOffsetOffset:], uint32(offset-previous))
		}

		// Update tracking.
		previous = offset
		written = offset + size
		offset += (size + layout.alignment - 1) &^ (layout.alignment - 1)
		consumed++
	}

	// Done.
	return written, consumed, nil
}
