package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacBlockSize = 4096

// Encoder turns raw PCM into an encoded byte stream. The stream grows
// append-only: bytes already returned by Buffered never change, so slicing
// it at arbitrary points yields chunks whose concatenation is the stream.
type Encoder interface {
	EncodePCM(pcm []byte) error
	Flush() error
	Buffered() []byte
	MimeType() string
}

// NewEncoder picks the first encodable format from the preference list,
// falling back to WAV when nothing matches.
func NewEncoder(preferred []string, sampleRate int) (Encoder, error) {
	for _, mime := range preferred {
		switch mime {
		case "audio/flac":
			return newFlacEncoder(sampleRate)
		case "audio/wav":
			return newWAVEncoder(sampleRate), nil
		}
	}
	return newWAVEncoder(sampleRate), nil
}

// wavEncoder emits a streaming WAV: the header goes out first with
// unknown-length size fields (length is not known until stop, and emitted
// chunks are immutable), followed by raw PCM.
type wavEncoder struct {
	buf        bytes.Buffer
	sampleRate int
}

func newWAVEncoder(sampleRate int) *wavEncoder {
	e := &wavEncoder{sampleRate: sampleRate}
	e.writeHeader()
	return e
}

func (e *wavEncoder) writeHeader() {
	byteRate := e.sampleRate * Channels * BitsPerSample / 8
	blockAlign := Channels * BitsPerSample / 8

	e.buf.WriteString("RIFF")
	binary.Write(&e.buf, binary.LittleEndian, uint32(0xFFFFFFFF)) // stream length unknown
	e.buf.WriteString("WAVE")
	e.buf.WriteString("fmt ")
	binary.Write(&e.buf, binary.LittleEndian, uint32(16))
	binary.Write(&e.buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&e.buf, binary.LittleEndian, uint16(Channels))
	binary.Write(&e.buf, binary.LittleEndian, uint32(e.sampleRate))
	binary.Write(&e.buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&e.buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&e.buf, binary.LittleEndian, uint16(BitsPerSample))
	e.buf.WriteString("data")
	binary.Write(&e.buf, binary.LittleEndian, uint32(0xFFFFFFFF))
}

func (e *wavEncoder) EncodePCM(pcm []byte) error {
	_, err := e.buf.Write(pcm)
	return err
}

func (e *wavEncoder) Flush() error     { return nil }
func (e *wavEncoder) Buffered() []byte { return e.buf.Bytes() }
func (e *wavEncoder) MimeType() string { return "audio/wav" }

// flacEncoder wraps mewkiz/flac, encoding verbatim mono frames in fixed
// blocks and holding leftover samples until the next block or flush.
type flacEncoder struct {
	buf        bytes.Buffer
	enc        *flac.Encoder
	sampleRate int
	pending    []int16
}

func newFlacEncoder(sampleRate int) (*flacEncoder, error) {
	e := &flacEncoder{sampleRate: sampleRate}
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(&e.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	e.enc = enc
	return e, nil
}

func (e *flacEncoder) EncodePCM(pcm []byte) error {
	for i := 0; i+1 < len(pcm); i += 2 {
		e.pending = append(e.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(e.pending) >= flacBlockSize {
		if err := e.encodeBlock(e.pending[:flacBlockSize]); err != nil {
			return err
		}
		e.pending = e.pending[flacBlockSize:]
	}
	return nil
}

func (e *flacEncoder) encodeBlock(block []int16) error {
	samples := make([]int32, len(block))
	for i, s := range block {
		samples[i] = int32(s)
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    uint32(e.sampleRate),
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	return nil
}

func (e *flacEncoder) Flush() error {
	if len(e.pending) > 0 {
		if err := e.encodeBlock(e.pending); err != nil {
			return err
		}
		e.pending = nil
	}
	return e.enc.Close()
}

func (e *flacEncoder) Buffered() []byte { return e.buf.Bytes() }
func (e *flacEncoder) MimeType() string { return "audio/flac" }
