package iface

import "context"

// Detector is implemented by detection providers.
type Detector interface {
	Detect(ctx context.Context, media UploadedMedia, params DetectParams) (DetectionSet, error)
}

// Generator answers a prompt, optionally grounded on an image.
type Generator interface {
	Generate(ctx context.Context, prompt string, image *UploadedMedia) (string, error)
}

// Transcriber turns an audio file on disk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
