// Package file replays a WAV file as a recording source.
package file

import (
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

const componentAudio = "audio"

// Config configures a replay Source.
type Config struct {
	Path        string
	ChunkFrames int  // 0 selects audiocore.DefaultSourceChunkFrames
	Realtime    bool // pace reads at the recording sample rate
}

// Source reads 16 kHz WAV files chunk by chunk. Mono input is duplicated
// into both channels; channels beyond the second are ignored. 24 and 32 bit
// samples are scaled to 16 bits. The last partial chunk is padded
// with silence, after which Read returns io.EOF.
type Source struct {
	id          string
	path        string
	chunkFrames int
	realtime    bool
	log         logger.Logger

	f        *os.File
	dec      *wav.Decoder
	channels int
	shift    int // right shift down to 16 bits
	pcm      *audio.IntBuffer

	started  time.Time
	produced int64 // frames
	eof      bool
	sleep    func(time.Duration)
}

// Open validates path as a PCM WAV file at the recording sample rate.
func Open(id string, cfg Config, log logger.Logger) (*Source, error) {
	if log == nil {
		log = logger.Global().Module(componentAudio)
	}
	if cfg.ChunkFrames <= 0 {
		cfg.ChunkFrames = audiocore.DefaultSourceChunkFrames
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, errors.New(err).
			Component(componentAudio).
			Category(errors.CategoryFileIO).
			Context("operation", "open_replay_file").
			FileContext(cfg.Path, 0).
			Build()
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, invalidFile(cfg.Path, "not a valid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		_ = f.Close()
		return nil, invalidFile(cfg.Path, "only PCM WAV files can be replayed")
	}
	if dec.SampleRate != audiocore.SampleRate {
		_ = f.Close()
		return nil, errors.Newf("replay file is %d Hz, need %d Hz", dec.SampleRate, audiocore.SampleRate).
			Component(componentAudio).
			Category(errors.CategoryValidation).
			FileContext(cfg.Path, 0).
			Build()
	}
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		_ = f.Close()
		return nil, invalidFile(cfg.Path, "unsupported bit depth")
	}

	channels := int(dec.NumChans)
	s := &Source{
		id:          id,
		path:        cfg.Path,
		chunkFrames: cfg.ChunkFrames,
		realtime:    cfg.Realtime,
		log:         log.With(logger.String("source_id", id)),
		f:           f,
		dec:         dec,
		channels:    channels,
		shift:       bitDepth - 16,
		pcm: &audio.IntBuffer{
			Data:           make([]int, cfg.ChunkFrames*channels),
			Format:         &audio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
			SourceBitDepth: bitDepth,
		},
		sleep: time.Sleep,
	}
	s.log.Info("replay file opened",
		logger.String("path", cfg.Path),
		logger.Int("channels", channels),
		logger.Int("bit_depth", bitDepth))
	return s, nil
}

func invalidFile(path, reason string) error {
	return errors.Newf("%s", reason).
		Component(componentAudio).
		Category(errors.CategoryValidation).
		Context("operation", "open_replay_file").
		FileContext(path, 0).
		Build()
}

// ID returns the source identifier.
func (s *Source) ID() string { return s.id }

// ChunkFrames returns the frames delivered per Read.
func (s *Source) ChunkFrames() int { return s.chunkFrames }

// Format returns the recording format the file is converted to.
func (s *Source) Format() audiocore.AudioFormat { return audiocore.RecordingFormat }

// Read decodes the next chunk into buf.
func (s *Source) Read(buf []int16, frames int) (int, error) {
	if frames != s.chunkFrames || len(buf) < frames*audiocore.Channels {
		return 0, errors.New(audiocore.ErrInvalidChunkSize).
			Component(componentAudio).
			Context("frames", frames).
			Context("chunk_frames", s.chunkFrames).
			Build()
	}
	if s.eof || s.dec == nil {
		return 0, io.EOF
	}

	n, err := s.dec.PCMBuffer(s.pcm)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, errors.New(err).
			Component(componentAudio).
			Category(errors.CategoryAudioSource).
			Context("operation", "decode_replay_chunk").
			FileContext(s.path, 0).
			Build()
	}
	got := n / s.channels
	if got == 0 {
		s.eof = true
		return 0, io.EOF
	}
	if got < frames {
		s.eof = true
	}

	for i := range frames {
		var l, r int16
		if i < got {
			base := i * s.channels
			l = s.to16(s.pcm.Data[base])
			r = l
			if s.channels > 1 {
				r = s.to16(s.pcm.Data[base+1])
			}
		}
		buf[2*i] = l
		buf[2*i+1] = r
	}

	s.pace(frames)
	return frames, nil
}

func (s *Source) to16(v int) int16 {
	return int16(max(-32768, min(32767, v>>s.shift)))
}

// pace sleeps until the produced audio is due in real time.
func (s *Source) pace(frames int) {
	if !s.realtime {
		return
	}
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.produced += int64(frames)
	due := s.started.Add(audiocore.ChunkDuration(int(s.produced)))
	if d := time.Until(due); d > 0 {
		s.sleep(d)
	}
}

// Close releases the file.
func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.dec = nil
	return err
}
