package ingest

import "context"

// Asset describes a stored upload as the editor sees it.
type Asset struct {
	// URL is the public path the document should reference, always under
	// the store's public prefix.
	URL string
	// Name is the file name component of URL.
	Name string
	// MIME is the type the asset was stored as. It may differ from the
	// declared type when re-encoding took place.
	MIME string
	// Size is the stored byte count.
	Size int64
	// Reused is true when an identical payload was already in the store
	// and the existing asset was returned instead of writing a new one.
	Reused bool
}

// Gateway accepts editor payloads and turns them into locally served assets.
// Implementations are safe for concurrent use.
type Gateway interface {
	// UploadImage stores an image payload, originalName is advisory and
	// may be empty.
	UploadImage(ctx context.Context, payload *DataURI, originalName string) (*Asset, error)
	// UploadMedia stores an image or video payload under the relaxed
	// media allow-list and ceiling.
	UploadMedia(ctx context.Context, payload *DataURI, originalName string) (*Asset, error)
	// ImportRemoteURL fetches an absolute http(s) image URL and stores it
	// locally.
	ImportRemoteURL(ctx context.Context, remote string) (*Asset, error)
}
