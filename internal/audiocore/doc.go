// Package audiocore holds the building blocks of the capture pipeline:
//
//	SampleSource -> Mix -> [FrameBuffer -> FrontEnd] -> ContainerWriter
//
// Sources, the front-end implementation and the WAV writer live in
// sub-packages (sources, processors, export). This package defines the
// contracts between them, the fixed recording format, the channel mixer and
// the frame buffer that bridges source and front-end chunk sizes.
//
// # Concurrency
//
// Everything on the pipeline path (Mix, FrameBuffer, FrontEnd, ContainerWriter)
// is driven sequentially by a single capture goroutine and is not safe for
// concurrent use. DeviceGuard and ProcessorChain are safe for concurrent use.
//
// # Error Handling
//
// Errors use the enhanced error system. The sentinels in errors.go map the
// recorder's failure taxonomy onto error categories so callers can match
// with errors.Is:
//
//	if errors.Is(err, audiocore.ErrHardwareTransient) {
//	    // skip this cycle
//	}
package audiocore
