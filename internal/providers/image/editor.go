package image

import "context"

// EditResult carries the edited image bytes returned by the collaborator.
type EditResult struct {
	Data     []byte
	MIMEType string
}

// Editor applies a text instruction to an image through a multimodal model.
// The call is synchronous.
type Editor interface {
	Edit(ctx context.Context, data []byte, mimeType, finalPrompt string) (*EditResult, error)
}
