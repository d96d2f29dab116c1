package ragModel

import "errors"

// Error taxonomy. All of these are terminal for the current request or
// document; none is retried on the hot path.
var (
	// ErrConversion marks a bad or corrupt input document; it surfaces on
	// the document's status record, never as a process-level failure.
	ErrConversion = errors.New("document conversion failed")

	// ErrUnsupportedFormat is a ConversionError subtype for unknown extensions.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmbedding marks an empty or invalid vector from the embedding backend.
	ErrEmbedding = errors.New("embedding failed")

	// ErrRetrieval marks an unreachable vector backend or malformed query.
	ErrRetrieval = errors.New("vector search failed")

	// ErrGenerationTimeout marks a generation backend too slow to respond.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrGeneration marks a transport or protocol failure mid-stream.
	ErrGeneration = errors.New("generation failed")
)
