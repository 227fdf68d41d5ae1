package core

import "fmt"

// AssetLoadError reports a model or audio fetch/decode failure.
// It is recovered locally (placeholder or silent cue) and never aborts a mount.
type AssetLoadError struct {
	Asset string
	URL   string
	Err   error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load %s %q: %v", e.Asset, e.URL, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// AudioContextError reports that the platform refused to start audio output.
type AudioContextError struct {
	Err error
}

func (e *AudioContextError) Error() string {
	return fmt.Sprintf("audio context: %v", e.Err)
}

func (e *AudioContextError) Unwrap() error { return e.Err }

// UnsupportedEnvironmentError is the only fatal error: there is no surface to
// render into, so the scene never attaches.
type UnsupportedEnvironmentError struct {
	Reason string
	Err    error
}

func (e *UnsupportedEnvironmentError) Error() string {
	if e.Err == nil {
		return "unsupported environment: " + e.Reason
	}
	return fmt.Sprintf("unsupported environment: %s: %v", e.Reason, e.Err)
}

func (e *UnsupportedEnvironmentError) Unwrap() error { return e.Err }
