// Package export writes recordings as streaming RIFF/WAVE files and
// inspects or repairs them afterwards.
package export

import (
	"bytes"
	"encoding/binary"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
)

// HeaderSize is the size of the canonical 44-byte PCM WAV header.
const HeaderSize = 44

// riffOverhead is the part of the header counted by the RIFF chunk size
// (everything after the 8-byte RIFF preamble, excluding PCM data).
const riffOverhead = HeaderSize - 8

const wavFormatPCM = 1

// Header holds the fields of a canonical PCM WAV header.
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// NewHeader returns the recording header declaring dataSize bytes of PCM.
func NewHeader(dataSize uint32) Header {
	const (
		channels = audiocore.Channels
		rate     = audiocore.SampleRate
		bits     = audiocore.BitDepth
	)
	return Header{
		ChunkSize:     dataSize + riffOverhead,
		AudioFormat:   wavFormatPCM,
		Channels:      channels,
		SampleRate:    rate,
		ByteRate:      rate * channels * bits / 8,
		BlockAlign:    channels * bits / 8,
		BitsPerSample: bits,
		DataSize:      dataSize,
	}
}

// Encode serializes the header in little-endian byte order.
func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	le := binary.LittleEndian
	copy(b[0:4], "RIFF")
	le.PutUint32(b[4:8], h.ChunkSize)
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	le.PutUint32(b[16:20], 16)
	le.PutUint16(b[20:22], h.AudioFormat)
	le.PutUint16(b[22:24], h.Channels)
	le.PutUint32(b[24:28], h.SampleRate)
	le.PutUint32(b[28:32], h.ByteRate)
	le.PutUint16(b[32:34], h.BlockAlign)
	le.PutUint16(b[34:36], h.BitsPerSample)
	copy(b[36:40], "data")
	le.PutUint32(b[40:44], h.DataSize)
	return b
}

// EncodeHeader returns the recording header for dataSize bytes of PCM.
func EncodeHeader(dataSize uint32) [HeaderSize]byte {
	return NewHeader(dataSize).Encode()
}

// DecodeHeader parses a canonical 44-byte PCM WAV header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, headerError("short header", len(b))
	}
	if !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return Header{}, headerError("not a RIFF/WAVE file", len(b))
	}
	if !bytes.Equal(b[12:16], []byte("fmt ")) || !bytes.Equal(b[36:40], []byte("data")) {
		return Header{}, headerError("non-canonical WAV layout", len(b))
	}
	le := binary.LittleEndian
	return Header{
		ChunkSize:     le.Uint32(b[4:8]),
		AudioFormat:   le.Uint16(b[20:22]),
		Channels:      le.Uint16(b[22:24]),
		SampleRate:    le.Uint32(b[24:28]),
		ByteRate:      le.Uint32(b[28:32]),
		BlockAlign:    le.Uint16(b[32:34]),
		BitsPerSample: le.Uint16(b[34:36]),
		DataSize:      le.Uint32(b[40:44]),
	}, nil
}

func headerError(reason string, size int) error {
	return errors.Newf("invalid wav header: %s", reason).
		Component(componentExport).
		Category(errors.CategoryValidation).
		Context("header_bytes", size).
		Build()
}

// dataSizeFor derives the data size from a file length, clamped at zero.
func dataSizeFor(fileLen int64) uint32 {
	if fileLen <= HeaderSize {
		return 0
	}
	n := fileLen - HeaderSize
	if n > int64(^uint32(0)-riffOverhead) {
		n = int64(^uint32(0) - riffOverhead)
	}
	return uint32(n)
}
