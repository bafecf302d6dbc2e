package export

import (
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/boxrec/boxrec/internal/errors"
)

// Info describes a recording on disk.
type Info struct {
	Path         string
	FileSize     int64
	Header       Header
	DeclaredData int64 // data size stored in the header
	ActualData   int64 // data size implied by the file length
	Valid        bool  // the decoder accepts the file as RIFF/WAVE
}

// NeedsRepair reports whether the header disagrees with the file length,
// typically a recording cut off before it was finalized.
func (i Info) NeedsRepair() bool {
	return i.DeclaredData != i.ActualData
}

// Duration returns the audio length in seconds implied by the file length.
func (i Info) Duration() float64 {
	if i.Header.ByteRate == 0 {
		return 0
	}
	return float64(i.ActualData) / float64(i.Header.ByteRate)
}

// Inspect reads the header of path and compares it with the file length.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, ioFailure(err, "wav_inspect", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Info{}, ioFailure(err, "wav_inspect", path)
	}

	var raw [HeaderSize]byte
	if _, err := io.ReadFull(f, raw[:]); err != nil {
		return Info{}, errors.New(err).
			Component(componentExport).
			Category(errors.CategoryValidation).
			Context("operation", "wav_inspect").
			FileContext(path, stat.Size()).
			Build()
	}
	h, err := DecodeHeader(raw[:])
	if err != nil {
		return Info{}, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Info{}, ioFailure(err, "wav_inspect", path)
	}
	dec := wav.NewDecoder(f)
	dec.ReadInfo()

	return Info{
		Path:         path,
		FileSize:     stat.Size(),
		Header:       h,
		DeclaredData: int64(h.DataSize),
		ActualData:   int64(dataSizeFor(stat.Size())),
		Valid:        dec.IsValidFile() && dec.NumChans == h.Channels && int(dec.BitDepth) == int(h.BitsPerSample),
	}, nil
}

// Repair rewrites the header of path from its file length. It returns the
// repaired data size. Files whose header already matches are left untouched.
func Repair(path string) (int64, error) {
	info, err := Inspect(path)
	if err != nil {
		return 0, err
	}
	if !info.NeedsRepair() {
		return info.ActualData, nil
	}
	if want := NewHeader(0); info.Header.Channels != want.Channels ||
		info.Header.SampleRate != want.SampleRate ||
		info.Header.BitsPerSample != want.BitsPerSample {
		return 0, errors.Newf("not a recording in the device format").
			Component(componentExport).
			Category(errors.CategoryValidation).
			Context("channels", info.Header.Channels).
			Context("sample_rate", info.Header.SampleRate).
			Context("bits_per_sample", info.Header.BitsPerSample).
			Build()
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return 0, ioFailure(err, "wav_repair", path)
	}
	header := EncodeHeader(uint32(info.ActualData))
	if _, err := f.WriteAt(header[:], 0); err != nil {
		_ = f.Close()
		return 0, ioFailure(err, "wav_repair", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, ioFailure(err, "wav_repair", path)
	}
	if err := f.Close(); err != nil {
		return 0, ioFailure(err, "wav_repair", path)
	}
	return info.ActualData, nil
}
