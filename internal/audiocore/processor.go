package audiocore

import (
	"context"
	"slices"
	"sync"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// processorChainImpl implements the ProcessorChain interface
type processorChainImpl struct {
	processors []AudioProcessor
	mu         sync.RWMutex
	log        logger.Logger
}

// NewProcessorChain creates a new processor chain. A nil log uses the global logger.
func NewProcessorChain(log logger.Logger) ProcessorChain {
	if log == nil {
		log = logger.Global().Module("audio")
	}
	return &processorChainImpl{
		log: log.With(logger.String("component", "processor_chain")),
	}
}

// AddProcessor adds a processor to the end of the chain
func (pc *processorChainImpl) AddProcessor(processor AudioProcessor) error {
	if processor == nil {
		return errors.Newf("processor cannot be nil").
			Component(ComponentAudioCore).
			Category(errors.CategoryValidation).
			Build()
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	for _, p := range pc.processors {
		if p.ID() == processor.ID() {
			return errors.Newf("processor already exists in chain").
				Component(ComponentAudioCore).
				Category(errors.CategoryConflict).
				Context("processor_id", processor.ID()).
				Build()
		}
	}

	pc.processors = append(pc.processors, processor)
	pc.log.Debug("processor added to chain",
		logger.String("processor_id", processor.ID()),
		logger.Int("chain_length", len(pc.processors)))
	return nil
}

// RemoveProcessor removes a processor from the chain
func (pc *processorChainImpl) RemoveProcessor(id string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for i, p := range pc.processors {
		if p.ID() == id {
			pc.processors = slices.Delete(pc.processors, i, i+1)
			return nil
		}
	}
	return ErrProcessorNotFound
}

// Process runs audio through the entire chain in order
func (pc *processorChainImpl) Process(ctx context.Context, input *AudioData) (*AudioData, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	current := input
	for _, processor := range pc.processors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		processed, err := processor.Process(ctx, current)
		if err != nil {
			return nil, errors.New(err).
				Component(ComponentAudioCore).
				Category(errors.CategoryProcessing).
				Context("processor_id", processor.ID()).
				Context("operation", "process_audio").
				Build()
		}
		current = processed
	}
	return current, nil
}

// GetProcessors returns a copy of the processors in order
func (pc *processorChainImpl) GetProcessors() []AudioProcessor {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return slices.Clone(pc.processors)
}

// ErrProcessorNotFound is returned when a processor is not found in the chain
var ErrProcessorNotFound = errors.Newf("processor not found").
	Component(ComponentAudioCore).
	Category(errors.CategoryNotFound).
	Context("resource", "processor").
	Build()
