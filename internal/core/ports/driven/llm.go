package driven

import "context"

// LLMService annotates item metadata using a local language model.
// This is an optional service, disabled by default. It is used only by
// the enrichment pipeline: never on the search path, and its output is
// never surfaced as item content.
type LLMService interface {
	// AnnotateText produces a short title, keywords, and summary for a
	// text item. The fields are appended to the searchable text before
	// the embedding refresh.
	AnnotateText(ctx context.Context, content string) (*TextAnnotation, error)

	// AnnotateImage produces a caption and keywords for an image, given
	// the OCR output of its blob.
	AnnotateImage(ctx context.Context, ocrText string) (*ImageAnnotation, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the endpoint is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// TextAnnotation is the structured response for a text item.
type TextAnnotation struct {
	Title    string `json:"title"`
	Keywords string `json:"keywords"`
	Summary  string `json:"summary"`
}

// ImageAnnotation is the structured response for an image item.
type ImageAnnotation struct {
	Caption  string `json:"caption"`
	Keywords string `json:"keywords"`
}
