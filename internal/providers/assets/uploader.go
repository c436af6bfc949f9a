package assets

import "context"

// Storage namespaces for uploaded images.
const (
	FolderOriginals = "propenhance/originals"
	FolderResults   = "propenhance/results"
)

// Uploader persists raw image bytes under a namespace and returns a durable
// URL for the stored asset.
type Uploader interface {
	Upload(ctx context.Context, data []byte, mimeType, folder string) (string, error)
}
