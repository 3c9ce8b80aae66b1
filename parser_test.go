package stompy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(p *Parser, data []byte) []*Frame {
	var frames []*Frame
	for _, b := range data {
		if p.Push(b) == MessageReady {
			f := p.ReturnMessage()
			p.Reset()
			frames = append(frames, f)
		}
	}
	return frames
}

func TestParser_S1_MessageWithJSONBody(t *testing.T) {
	input := "MESSAGE\ndestination:/topic/a\nmessage-id:42\nsubscription:0\n" +
		"content-type:text/json;charset=utf-8\ncontent-length:17\n\n{\"hello\":\"world\"}\x00"

	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)

	f := frames[0]
	assert.Equal(t, "MESSAGE", f.Command)
	assert.Len(t, f.Headers, 5)
	assert.Equal(t, `{"hello":"world"}`, string(f.Body))
	assert.Equal(t, 17, len(f.Body))
}

func TestParser_S2_VariableLengthBody(t *testing.T) {
	input := "MESSAGE\ndestination:/q\n\nhi\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Equal(t, "MESSAGE", frames[0].Command)
	assert.Equal(t, "hi", string(frames[0].Body))
}

func TestParser_S6_ChunkedDeliveryMatchesBulk(t *testing.T) {
	input := []byte("MESSAGE\ndestination:/topic/a\nmessage-id:42\nsubscription:0\n" +
		"content-type:text/json;charset=utf-8\ncontent-length:17\n\n{\"hello\":\"world\"}\x00")

	// feed everything in a single bulk call
	var bulk []*Frame
	NewParser().Feed(input, func(f *Frame) { bulk = append(bulk, f) })

	// feed one byte at a time
	oneAtATime := feedAll(NewParser(), input)

	// feed in two arbitrary splits
	p := NewParser()
	split := len(input) / 3
	var twoChunks []*Frame
	p.Feed(input[:split], func(f *Frame) { twoChunks = append(twoChunks, f) })
	p.Feed(input[split:], func(f *Frame) { twoChunks = append(twoChunks, f) })

	assert.Len(t, bulk, 1)
	assert.Len(t, oneAtATime, 1)
	assert.Len(t, twoChunks, 1)
	assert.Equal(t, bulk[0].Command, twoChunks[0].Command)
	assert.Equal(t, string(bulk[0].Body), string(twoChunks[0].Body))
	assert.Equal(t, bulk[0].Headers, oneAtATime[0].Headers)
}

func TestParser_HeartbeatBytesSkippedBeforeFrame(t *testing.T) {
	input := "\n\n\nMESSAGE\ndestination:/q\n\nhi\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Equal(t, "MESSAGE", frames[0].Command)
}

func TestParser_EmptyBody(t *testing.T) {
	input := "CONNECTED\nversion:1.1\n\n\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Equal(t, 0, len(frames[0].Body))
}

func TestParser_ContentLengthZero(t *testing.T) {
	input := "MESSAGE\ncontent-length:0\n\n\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Equal(t, 0, len(frames[0].Body))
}

func TestParser_FixedLengthBodyRetainsNullBytes(t *testing.T) {
	input := "MESSAGE\ncontent-length:3\n\na\x00b\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Equal(t, []byte{'a', 0, 'b'}, frames[0].Body)
}

func TestParser_FixedLengthSurplusBeforeNullDiscarded(t *testing.T) {
	// declared length 2, but 4 bytes precede the terminator; the
	// extra bytes beyond bodySize are discarded, not appended.
	input := "MESSAGE\ncontent-length:2\n\nabcd\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Equal(t, "ab", string(frames[0].Body))
}

func TestParser_VariableLengthStopsAtFirstNull(t *testing.T) {
	input := "MESSAGE\n\nhi\x00garbage\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Equal(t, "hi", string(frames[0].Body))
}

func TestParser_DuplicateHeaders_LastWins(t *testing.T) {
	input := "MESSAGE\nfoo:1\nfoo:2\n\n\x00"
	p := NewParser()
	frames := feedAll(p, []byte(input))
	assert.Len(t, frames, 1)
	assert.Len(t, frames[0].Headers, 2)
	assert.Equal(t, "2", frames[0].Headers[len(frames[0].Headers)-1].Value)
}

func TestParser_PushIsNoopAfterMessageReady(t *testing.T) {
	p := NewParser()
	input := []byte("MESSAGE\n\nhi\x00")
	var status ParseStatus
	for _, b := range input {
		status = p.Push(b)
	}
	assert.Equal(t, MessageReady, status)
	// further pushes are no-ops until Reset
	assert.Equal(t, MessageReady, p.Push('X'))
	f := p.ReturnMessage()
	assert.NotNil(t, f)
}

func TestParser_ReturnMessageNilWhenNotReady(t *testing.T) {
	p := NewParser()
	assert.Nil(t, p.ReturnMessage())
}
