package ai

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Segment is one element of a multimodal prompt. It is either a TextSegment or an ImageSegment.
type Segment interface {
	segment()
}

// TextSegment carries plain prompt text.
type TextSegment struct {
	Text string
}

// ImageSegment carries an inline image attachment.
type ImageSegment struct {
	MimeType string
	Data     []byte
}

func (TextSegment) segment()  {}
func (ImageSegment) segment() {}

// Base64 returns the standard base64 encoding of the image payload.
func (s ImageSegment) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Data)
}

// DataURL renders the image as a data URL suitable for providers that take image URLs.
func (s ImageSegment) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", s.MimeType, s.Base64())
}

// Prompt is the ordered list of segments sent to a judge.
type Prompt []Segment

// ImageCount reports how many image segments the prompt carries.
func (p Prompt) ImageCount() int {
	count := 0
	for _, segment := range p {
		if _, ok := segment.(ImageSegment); ok {
			count++
		}
	}
	return count
}

// ChunkStream yields model output text in the order the backend produced it.
// Recv returns io.EOF once the stream is exhausted.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// Judge opens a streamed completion for a prompt.
type Judge interface {
	Name() string
	Stream(ctx context.Context, prompt Prompt) (ChunkStream, error)
}
