package audiocore

import "encoding/binary"

// AppendS16LE encodes samples as little-endian 16-bit PCM, appending to dst.
func AppendS16LE(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// DecodeS16LE decodes little-endian 16-bit PCM, appending to dst. A trailing odd byte is ignored.
func DecodeS16LE(dst []int16, p []byte) []int16 {
	for i := 0; i+1 < len(p); i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(p[i:])))
	}
	return dst
}
