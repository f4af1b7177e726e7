// Package snip implements the Simple Node Ident Info Protocol's 253-byte
// buffer layout: two versioned groups of null-terminated strings.
package snip

import "log/slog"

// Field indices into the six SNIP strings: four manufacturer-supplied
// fields under version byte 4, then two user-supplied fields under
// version byte 2.
const (
	MfgName = iota
	MfgModel
	HWVersion
	SWVersion
	UserName
	UserDescription
)

// maxLen is the maximum byte length (excluding the terminating null) for
// each of the six fields, matching the reference implementation's layout.
var maxLen = [6]int{41, 41, 21, 21, 63, 64}

const bufSize = 253

// SNIP holds both the raw 253-byte wire buffer and the six decoded
// strings. Either representation can be the source of truth; call
// UpdateSnipDataFromStrings after setting Strings, or
// UpdateStringsFromSnipData after setting Data, to sync the other.
type SNIP struct {
	Data    [bufSize]byte
	Strings [6]string

	// writeOffset tracks where the next Append call writes, for
	// accumulating a Simple_Node_Ident_Info_Reply that arrives split
	// across several frames/datagram-like fragments.
	writeOffset int
}

// New returns a SNIP with version bytes set and all strings empty.
func New() *SNIP {
	s := &SNIP{}
	s.Data[0] = 4
	s.Data[5] = 2 // second version byte, after the four empty fields
	return s
}

// FindString returns the buffer offset of the first byte of field n,
// computed by walking past the version byte and every null-terminated
// field before it.
func (s *SNIP) FindString(n int) int {
	pos := 1
	for i := 0; i < n; i++ {
		pos = s.skipString(pos)
		if i == 3 {
			pos++ // second version byte, between field 3 and field 4
		}
	}
	return pos
}

func (s *SNIP) skipString(pos int) int {
	for pos < bufSize && s.Data[pos] != 0 {
		pos++
	}
	return pos + 1
}

// GetStringN reads the n'th field out of Data starting at the offset
// FindString computes for it, stopping at the first null byte or the
// field's max length.
func (s *SNIP) GetStringN(n int) string {
	return s.GetString(s.FindString(n), maxLen[n])
}

// GetString reads a null-terminated string from Data starting at first,
// never reading past maxLength bytes or the end of the buffer.
func (s *SNIP) GetString(first, maxLength int) string {
	end := first
	for end < bufSize && end-first < maxLength && s.Data[end] != 0 {
		end++
	}
	return string(s.Data[first:end])
}

// UpdateStringsFromSnipData decodes all six fields from Data into
// Strings.
func (s *SNIP) UpdateStringsFromSnipData() {
	for i := 0; i < 6; i++ {
		s.Strings[i] = s.GetStringN(i)
	}
}

// UpdateSnipDataFromStrings rebuilds the 253-byte buffer from Strings:
// version byte 4, the first four fields null-terminated and truncated to
// their max lengths, version byte 2, then the last two fields likewise.
func (s *SNIP) UpdateSnipDataFromStrings() {
	var out [bufSize]byte
	pos := 0
	out[pos] = 4
	pos++
	for i := 0; i < 4; i++ {
		pos = writeField(out[:], pos, s.Strings[i], maxLen[i])
	}
	out[pos] = 2
	pos++
	for i := 4; i < 6; i++ {
		pos = writeField(out[:], pos, s.Strings[i], maxLen[i])
	}
	s.Data = out
}

func writeField(buf []byte, pos int, v string, max int) int {
	b := []byte(v)
	if len(b) > max {
		b = b[:max]
	}
	n := copy(buf[pos:], b)
	pos += n
	if pos < len(buf) {
		buf[pos] = 0
		pos++
	}
	return pos
}

// AddData appends incoming SNIP reply fragment bytes at the given
// offset, used while accumulating a multi-frame Simple_Node_Ident_Info
// reply. Data beyond the buffer is dropped and logged rather than
// panicking, since a misbehaving remote node could otherwise overflow
// the fixed-size buffer.
func (s *SNIP) AddData(offset int, in []byte) {
	if offset >= bufSize {
		slog.Default().Warn("snip: overlapping SNIP requests, truncating", "offset", offset)
		return
	}
	n := copy(s.Data[offset:], in)
	if n < len(in) {
		slog.Default().Warn("snip: overlapping SNIP requests, truncating", "offset", offset, "dropped", len(in)-n)
	}
}

// Append writes in at the current accumulation offset and advances it,
// for a remote node's SNIP reply that arrives as several fragments; a
// fresh SNIP (New, or after ClearCaches) starts accumulating at 0.
func (s *SNIP) Append(in []byte) {
	s.AddData(s.writeOffset, in)
	s.writeOffset += len(in)
}

// ReturnStrings copies the buffer out up to and including the sixth
// terminating zero byte, the exact slice sent as a
// Simple_Node_Ident_Info_Reply payload.
func (s *SNIP) ReturnStrings() []byte {
	zeros := 0
	end := 0
	for end < bufSize {
		if s.Data[end] == 0 {
			zeros++
			if zeros == 6 {
				end++
				break
			}
		}
		end++
	}
	out := make([]byte, end)
	copy(out, s.Data[:end])
	return out
}
