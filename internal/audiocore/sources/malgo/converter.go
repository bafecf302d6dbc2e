package malgo

import (
	"encoding/binary"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/boxrec/boxrec/internal/errors"
)

// ConvertToS16 converts interleaved samples in sourceFormat to S16LE.
// outputBuffer is reused when large enough.
func ConvertToS16(samples []byte, sourceFormat malgo.FormatType, outputBuffer []byte) ([]byte, error) {
	if len(samples) == 0 {
		return []byte{}, nil
	}

	bytesPerSample, _ := GetFormatInfo(sourceFormat)
	switch {
	case bytesPerSample == 0:
		return nil, errors.Newf("unsupported source format: %v", sourceFormat).
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Build()
	case sourceFormat == malgo.FormatS16:
		if len(outputBuffer) >= len(samples) {
			return outputBuffer[:copy(outputBuffer, samples)], nil
		}
		output := make([]byte, len(samples))
		copy(output, samples)
		return output, nil
	}

	count := len(samples) / bytesPerSample
	if count == 0 {
		return []byte{}, nil
	}

	var output []byte
	if len(outputBuffer) >= count*2 {
		output = outputBuffer[:count*2]
	} else {
		output = make([]byte, count*2)
	}

	for i := range count {
		src := samples[i*bytesPerSample:]
		var v int16
		switch sourceFormat {
		case malgo.FormatU8:
			v = int16((int32(src[0]) - 128) * 256)
		case malgo.FormatS24:
			val := int32(src[0]) | int32(src[1])<<8 | int32(src[2])<<16
			if val&0x800000 != 0 {
				val |= int32(-0x1000000)
			}
			v = int16(val >> 8)
		case malgo.FormatS32:
			v = int16(int32(binary.LittleEndian.Uint32(src)) >> 16)
		case malgo.FormatF32:
			f := math.Float32frombits(binary.LittleEndian.Uint32(src)) * 32767
			f = max(-32768, min(32767, f))
			v = int16(f)
		}
		binary.LittleEndian.PutUint16(output[i*2:], uint16(v))
	}
	return output, nil
}

// GetFormatInfo returns the sample width and a display name for a malgo format.
func GetFormatInfo(format malgo.FormatType) (bytesPerSample int, name string) {
	switch format {
	case malgo.FormatU8:
		return 1, "U8"
	case malgo.FormatS16:
		return 2, "S16"
	case malgo.FormatS24:
		return 3, "S24"
	case malgo.FormatS32:
		return 4, "S32"
	case malgo.FormatF32:
		return 4, "F32"
	default:
		return 0, "Unknown"
	}
}
