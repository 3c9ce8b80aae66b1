package stompy

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// a header entry preserves insertion order; stomp allows duplicate
// header names and the last one wins for lookups.
type HeaderEntry struct {
	Name  string
	Value string
}

// Frame is the in-memory representation of one stomp frame: a command,
// an ordered list of headers (duplicates permitted), and an optional body.
type Frame struct {
	Command string
	Headers []HeaderEntry
	Body    []byte
}

const (
	defaultMime     = "text/plain"
	defaultEncoding = "utf16le"
)

// isoToNative / nativeToISO implement the content-type charset table from
// the spec: both directions, unknown labels pass through unchanged.
var isoToNative = map[string]string{
	"utf-16":   "utf16le",
	"utf-16le": "utf16le",
	"utf-8":    "utf8",
	"ascii":    "ascii",
	"us-ascii": "ascii",
	"base64":   "base64",
}

var nativeToISO = map[string]string{
	"utf16le": "utf-16le",
	"utf8":    "utf-8",
	"ascii":   "ascii",
	"base64":  "base64",
}

// NewFrame constructs an empty frame with the given command and pre-sized
// header/body capacity. Callers append headers and set Body afterward.
func NewFrame(command string, headerCap, bodyCap int) *Frame {
	return &Frame{
		Command: command,
		Headers: make([]HeaderEntry, 0, headerCap),
		Body:    make([]byte, 0, bodyCap),
	}
}

// AppendHeader adds a header at the end of the list. The name is
// lower-cased; a nil/empty value is coerced to "".
func (f *Frame) AppendHeader(name, value string) {
	f.Headers = append(f.Headers, HeaderEntry{Name: strings.ToLower(name), Value: value})
}

// OverrideHeader replaces the last matching entry in place, or appends
// a new one if no entry with that name exists.
func (f *Frame) OverrideHeader(name, value string) {
	name = strings.ToLower(name)
	if i := f.lastIndexOfHeader(name); i >= 0 {
		f.Headers[i].Value = value
		return
	}
	f.AppendHeader(name, value)
}

// RemoveLastHeaderOfType deletes the last matching entry and returns its
// prior value, or "" if no such header existed.
func (f *Frame) RemoveLastHeaderOfType(name string) string {
	name = strings.ToLower(name)
	i := f.lastIndexOfHeader(name)
	if i < 0 {
		return ""
	}
	prior := f.Headers[i].Value
	f.Headers = append(f.Headers[:i], f.Headers[i+1:]...)
	return prior
}

// RemoveAllHeadersOfType removes every header entry with the given name.
func (f *Frame) RemoveAllHeadersOfType(name string) {
	name = strings.ToLower(name)
	kept := f.Headers[:0]
	for _, h := range f.Headers {
		if h.Name != name {
			kept = append(kept, h)
		}
	}
	f.Headers = kept
}

// GetHeaderValue returns the last matching entry's value, or "".
func (f *Frame) GetHeaderValue(name string) string {
	name = strings.ToLower(name)
	if i := f.lastIndexOfHeader(name); i >= 0 {
		return f.Headers[i].Value
	}
	return ""
}

func (f *Frame) lastIndexOfHeader(name string) int {
	for i := len(f.Headers) - 1; i >= 0; i-- {
		if f.Headers[i].Name == name {
			return i
		}
	}
	return -1
}

// AppendContentType appends a content-type header built from mime and
// the native encoding tag, e.g. "text/plain;charset=utf-16le".
func (f *Frame) AppendContentType(mime, encoding string) {
	f.AppendHeader("content-type", contentTypeValue(mime, encoding))
}

// OverrideContentType overrides the existing content-type header (or
// appends one), built the same way as AppendContentType.
func (f *Frame) OverrideContentType(mime, encoding string) {
	f.OverrideHeader("content-type", contentTypeValue(mime, encoding))
}

func contentTypeValue(mime, encoding string) string {
	if mime == "" {
		mime = defaultMime
	}
	if encoding == "" {
		encoding = defaultEncoding
	}
	iso, ok := nativeToISO[encoding]
	if !ok {
		iso = encoding
	}
	return strings.ToLower(mime) + ";charset=" + strings.ToLower(iso)
}

// nativeEncodingOf maps an ISO charset label (as seen on the wire) back
// to the library's native encoding tag. Unknown labels pass through.
func nativeEncodingOf(isoLabel string) string {
	if native, ok := isoToNative[strings.ToLower(isoLabel)]; ok {
		return native
	}
	return isoLabel
}

// AppendContentLength appends a content-length header with the current
// body length (0 if the body is absent).
func (f *Frame) AppendContentLength() {
	f.AppendHeader("content-length", strconv.Itoa(len(f.Body)))
}

// OverrideContentLength overrides the content-length header with the
// current body length.
func (f *Frame) OverrideContentLength() {
	f.OverrideHeader("content-length", strconv.Itoa(len(f.Body)))
}

// escapeHeaderToken applies stomp 1.1 header escaping: backslash, colon
// and newline are escaped; all other bytes pass through unchanged.
func escapeHeaderToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteString(`\\`)
		case ':':
			b.WriteString(`\c`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// unescapeHeaderToken reverses escapeHeaderToken. An unknown escape
// sequence consumes the backslash and its successor with no output,
// matching the reference implementation's conservative behavior.
func unescapeHeaderToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'c':
			b.WriteByte(':')
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			// unknown escape: drop both bytes
		}
		i++
	}
	return b.String()
}

// escapedLen returns the length of s after header-escaping, without
// allocating, for wire-size planning.
func escapedLen(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', ':', '\n':
			n += 2
		default:
			n++
		}
	}
	return n
}

// SizeOnWire predicts the exact serialized size of the frame:
// command + \n + headers ("key:value\n" each, escaped) + \n + body + \0.
func (f *Frame) SizeOnWire() int {
	size := len(f.Command) + 1
	for _, h := range f.Headers {
		size += escapedLen(h.Name) + 1 + escapedLen(h.Value) + 1
	}
	size += 1 // blank header-terminator line
	size += len(f.Body)
	size += 1 // terminating null
	return size
}

// ToBuffer allocates a buffer exactly the frame's wire size and writes
// command, headers (escaped), blank line, body, and the null terminator.
func (f *Frame) ToBuffer() []byte {
	buf := make([]byte, 0, f.SizeOnWire())
	buf = append(buf, f.Command...)
	buf = append(buf, '\n')
	for _, h := range f.Headers {
		buf = append(buf, escapeHeaderToken(h.Name)...)
		buf = append(buf, ':')
		buf = append(buf, escapeHeaderToken(h.Value)...)
		buf = append(buf, '\n')
	}
	buf = append(buf, '\n')
	buf = append(buf, f.Body...)
	buf = append(buf, 0)
	return buf
}

// NewStringBody builds a body byte buffer from a string.
func NewStringBody(s string) []byte {
	return []byte(s)
}

// NewJSONBody marshals v to JSON and returns the resulting byte buffer.
// Callers typically pair this with AppendContentType("application/json", encoding).
func NewJSONBody(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// ReferenceBody wraps an existing buffer slice without copying it.
func ReferenceBody(buf []byte) []byte {
	return buf
}

// Base64Body encodes src into a freshly allocated buffer.
func Base64Body(src []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(src)))
	base64.StdEncoding.Encode(out, src)
	return out
}

// CopyBody deep-copies the region [start:end) of src into a new buffer.
func CopyBody(src []byte, start, end int) []byte {
	out := make([]byte, end-start)
	copy(out, src[start:end])
	return out
}
