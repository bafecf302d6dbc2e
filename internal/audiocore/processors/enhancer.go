package processors

import (
	"context"
	"time"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// SpeechEnhancer is the acoustic front-end: noise suppression followed by
// optional AGC, on a single channel, in fixed native chunks. Processed
// chunks are queued and held back by LagChunks before Fetch releases them.
type SpeechEnhancer struct {
	chunkFrames int
	lag         int
	chain       audiocore.ProcessorChain
	queue       [][]int16
	pendingErr  error
	closed      bool
	log         logger.Logger
}

// NewFrontEndFactory returns a factory creating a SpeechEnhancer per session.
func NewFrontEndFactory(log logger.Logger) audiocore.FrontEndFactory {
	return func(cfg audiocore.FrontEndConfig) (audiocore.FrontEnd, error) {
		return NewSpeechEnhancer(cfg, log)
	}
}

// NewSpeechEnhancer builds the processing chain for cfg. Any failure is
// reported as ErrFrontEndUnavailable.
func NewSpeechEnhancer(cfg audiocore.FrontEndConfig, log logger.Logger) (*SpeechEnhancer, error) {
	if log == nil {
		log = logger.Global().Module("audio")
	}
	log = log.Module("frontend")

	if cfg.ChunkFrames == 0 {
		cfg.ChunkFrames = audiocore.DefaultFrontEndChunkFrames
	}
	if cfg.ChunkFrames < 0 || cfg.LagChunks < 0 || cfg.AGCMode < AGCOff || cfg.AGCMode > AGCAggressive {
		return nil, unavailable(errors.NewStd("unsupported front-end configuration"), cfg)
	}

	chain := audiocore.NewProcessorChain(log)
	if err := chain.AddProcessor(NewNoiseSuppressor("ns")); err != nil {
		return nil, unavailable(err, cfg)
	}
	if cfg.AGCMode != AGCOff {
		agc, err := NewAutoGain("agc", cfg.AGCMode, log)
		if err != nil {
			return nil, unavailable(err, cfg)
		}
		if err := chain.AddProcessor(agc); err != nil {
			return nil, unavailable(err, cfg)
		}
	}

	log.Debug("speech enhancer ready",
		logger.Int("chunk_frames", cfg.ChunkFrames),
		logger.Int("agc_mode", cfg.AGCMode),
		logger.Int("lag_chunks", cfg.LagChunks))

	return &SpeechEnhancer{
		chunkFrames: cfg.ChunkFrames,
		lag:         cfg.LagChunks,
		chain:       chain,
		log:         log,
	}, nil
}

func unavailable(err error, cfg audiocore.FrontEndConfig) error {
	return errors.New(errors.Join(audiocore.ErrFrontEndUnavailable, err)).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryFrontEnd).
		Context("chunk_frames", cfg.ChunkFrames).
		Context("agc_mode", cfg.AGCMode).
		Build()
}

// ChunkFrames returns the native chunk size in mono samples.
func (se *SpeechEnhancer) ChunkFrames() int { return se.chunkFrames }

// Feed processes one native chunk. A processing failure is not returned
// here; it is reported by the next Fetch and the chunk is lost.
func (se *SpeechEnhancer) Feed(chunk []int16) error {
	if se.closed {
		return audiocore.ErrInvalidState
	}
	if len(chunk) != se.chunkFrames {
		return errors.New(audiocore.ErrInvalidChunkSize).
			Component(audiocore.ComponentAudioCore).
			Context("expected", se.chunkFrames).
			Context("got", len(chunk)).
			Build()
	}

	in := &audiocore.AudioData{
		Buffer: audiocore.AppendS16LE(make([]byte, 0, len(chunk)*2), chunk),
		Format: audiocore.AudioFormat{
			SampleRate: audiocore.SampleRate,
			Channels:   1,
			BitDepth:   audiocore.BitDepth,
			Encoding:   audiocore.EncodingS16LE,
		},
		Duration: audiocore.ChunkDuration(len(chunk)),
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, err := se.chain.Process(ctx, in)
	if err != nil {
		se.pendingErr = err
		return nil
	}
	se.queue = append(se.queue, audiocore.DecodeS16LE(make([]int16, 0, se.chunkFrames), out.Buffer))
	return nil
}

// Fetch returns the next processed chunk once more than LagChunks are
// queued. A processing error from the last Feed is returned once.
func (se *SpeechEnhancer) Fetch() ([]int16, bool, error) {
	if err := se.pendingErr; err != nil {
		se.pendingErr = nil
		return nil, false, err
	}
	if len(se.queue) <= se.lag {
		return nil, false, nil
	}
	out := se.queue[0]
	se.queue[0] = nil
	se.queue = se.queue[1:]
	return out, true, nil
}

// Flush releases held-back output so the next drain returns all of it.
func (se *SpeechEnhancer) Flush() {
	se.lag = 0
}

// Close drops queued output.
func (se *SpeechEnhancer) Close() error {
	se.closed = true
	se.queue = nil
	return nil
}
