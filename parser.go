package stompy

import (
	"strconv"
	"strings"
)

// ParseStatus is the result of pushing a byte into the Parser.
type ParseStatus int

const (
	NeedMore ParseStatus = iota
	MessageReady
)

// outer frame state
type frameState int

const (
	stateSyncing frameState = iota
	stateHeaders
	stateBody
)

// header sub-state, only meaningful while frameState == stateHeaders
type headerState int

const (
	stateCommand headerState = iota
	stateKeyStart
	stateKeyData
	stateValueStart
	stateValueData
)

const bodyGrain = 8192

// Parser is an incremental, push-driven stomp frame decoder. It
// tolerates arbitrary network chunking: bytes may be pushed one at a
// time or in bulk, and it yields a completed Frame once the wire
// encoding of one frame has been fully consumed. It is reused across
// frames on one connection; call Reset after extracting a completed
// frame to accept the next one.
type Parser struct {
	frameState  frameState
	headerState headerState

	command strings.Builder
	curKey  strings.Builder
	curVal  strings.Builder

	headers []HeaderEntry

	body       []byte
	bodyOffset int

	fixedLength bool
	bodySize    int

	ready bool
}

// NewParser creates an empty parser ready to accept the first frame.
func NewParser() *Parser {
	p := &Parser{}
	p.reset()
	return p
}

func isAsciiLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// Push advances the machine by one byte. Once MessageReady is
// returned, further Push calls are no-ops until the caller extracts
// the frame via ReturnMessage and calls Reset.
func (p *Parser) Push(b byte) ParseStatus {
	if p.ready {
		return MessageReady
	}

	switch p.frameState {
	case stateSyncing:
		if isAsciiLetter(b) {
			p.command.WriteByte(b)
			p.frameState = stateHeaders
			p.headerState = stateCommand
		}
		return NeedMore

	case stateHeaders:
		return p.pushHeaderByte(b)

	case stateBody:
		return p.pushBodyByte(b)
	}
	return NeedMore
}

func (p *Parser) pushHeaderByte(b byte) ParseStatus {
	switch p.headerState {
	case stateCommand:
		if b == '\n' {
			p.headerState = stateKeyStart
			return NeedMore
		}
		p.command.WriteByte(b)
		return NeedMore

	case stateKeyStart:
		if b == '\n' {
			p.enterBody()
			return p.statusAfterEnterBody()
		}
		p.curKey.Reset()
		p.curVal.Reset()
		p.curKey.WriteByte(b)
		p.headerState = stateKeyData
		return NeedMore

	case stateKeyData:
		switch b {
		case ':':
			p.headerState = stateValueStart
		case '\n':
			p.commitHeader()
			p.headerState = stateKeyStart
		default:
			p.curKey.WriteByte(b)
		}
		return NeedMore

	case stateValueStart, stateValueData:
		if b == '\n' {
			p.commitHeader()
			p.headerState = stateKeyStart
			return NeedMore
		}
		p.curVal.WriteByte(b)
		p.headerState = stateValueData
		return NeedMore
	}
	return NeedMore
}

func (p *Parser) commitHeader() {
	name := strings.ToLower(strings.TrimSpace(unescapeHeaderToken(p.curKey.String())))
	value := strings.TrimLeft(unescapeHeaderToken(p.curVal.String()), " \t")
	p.headers = append(p.headers, HeaderEntry{Name: name, Value: value})
	p.curKey.Reset()
	p.curVal.Reset()
}

// enterBody determines content-length from the accumulated headers and
// transitions to the body state. A missing, negative, or malformed
// content-length means variable-length (null-terminated) body.
func (p *Parser) enterBody() {
	p.frameState = stateBody
	p.fixedLength = false
	p.bodySize = 0

	raw := lastHeaderValue(p.headers, "content-length")
	if raw == "" {
		p.body = make([]byte, 0, bodyGrain)
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		p.body = make([]byte, 0, bodyGrain)
		return
	}
	p.fixedLength = true
	p.bodySize = n
	if cap(p.body) < n {
		p.body = make([]byte, 0, n)
	}
}

func lastHeaderValue(headers []HeaderEntry, name string) string {
	for i := len(headers) - 1; i >= 0; i-- {
		if headers[i].Name == name {
			return headers[i].Value
		}
	}
	return ""
}

// statusAfterEnterBody handles the degenerate case of content-length:0
// with no body bytes at all (the very next byte is the null terminator,
// handled by pushBodyByte on the next call), so this is always NeedMore.
func (p *Parser) statusAfterEnterBody() ParseStatus {
	return NeedMore
}

func (p *Parser) pushBodyByte(b byte) ParseStatus {
	if p.fixedLength {
		if p.bodyOffset < p.bodySize {
			p.body = append(p.body, b)
			p.bodyOffset++
			return NeedMore
		}
		// declared length fully consumed; the next byte must be the
		// null terminator. Surplus bytes before it are discarded.
		if b == 0 {
			p.ready = true
			return MessageReady
		}
		return NeedMore
	}

	// variable-length: grow in bodyGrain chunks until the null byte
	if b == 0 {
		p.ready = true
		return MessageReady
	}
	if len(p.body) == cap(p.body) {
		grown := make([]byte, len(p.body), cap(p.body)+bodyGrain)
		copy(grown, p.body)
		p.body = grown
	}
	p.body = append(p.body, b)
	return NeedMore
}

// ReturnMessage returns the completed frame (command upper-cased and
// trimmed), or nil if the parser has not reached MessageReady.
func (p *Parser) ReturnMessage() *Frame {
	if !p.ready {
		return nil
	}
	body := make([]byte, len(p.body))
	copy(body, p.body)
	return &Frame{
		Command: strings.ToUpper(strings.TrimSpace(p.command.String())),
		Headers: p.headers,
		Body:    body,
	}
}

// Reset clears all accumulators and returns the parser to Syncing,
// ready to accept the next frame.
func (p *Parser) Reset() {
	p.reset()
}

func (p *Parser) reset() {
	p.frameState = stateSyncing
	p.headerState = stateCommand
	p.command.Reset()
	p.curKey.Reset()
	p.curVal.Reset()
	p.headers = nil
	p.body = make([]byte, 0, bodyGrain)
	p.bodyOffset = 0
	p.fixedLength = false
	p.bodySize = 0
	p.ready = false
}

// Feed pushes an entire byte slice through the parser, invoking onFrame
// for each completed frame and continuing with the remaining bytes in
// the same call — implementing the bulk-push algorithm described for
// callers that read a socket in chunks.
func (p *Parser) Feed(data []byte, onFrame func(*Frame)) {
	for _, b := range data {
		if p.Push(b) == MessageReady {
			f := p.ReturnMessage()
			p.Reset()
			if onFrame != nil && f != nil {
				onFrame(f)
			}
		}
	}
}
