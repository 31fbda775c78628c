package ingest

import "errors"

// Sentinel errors returned by the asset gateway. Callers branch on these with
// errors.Is to decide what to tell the user, so wrapping must preserve them.
var (
	// ErrUnsupportedType means the payload's detected or declared MIME type
	// is not on the allow-list for the requested asset class.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrPayloadTooLarge means the decoded payload exceeds the size ceiling
	// for its asset class.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrEmptyPayload means the request carried no decodable bytes.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrFetchFailed means a remote import could not retrieve the resource.
	ErrFetchFailed = errors.New("remote fetch failed")
	// ErrNotAnImage means a remote import retrieved something that is not
	// an image.
	ErrNotAnImage = errors.New("resource is not an image")
	// ErrNoClipboardMedia means a clipboard payload contained no usable
	// image item.
	ErrNoClipboardMedia = errors.New("no media in clipboard payload")
	// ErrReadFailure means a local file or stream could not be read.
	ErrReadFailure = errors.New("read failure")
)
