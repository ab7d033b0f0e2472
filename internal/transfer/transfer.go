// Package transfer moves job artifacts in and out of the workspace: it fetches
// the source video and avatar over HTTP and publishes the final video to
// object storage.
package transfer

import (
	"errors"
	"fmt"
)

// Op identifies the direction of a failed transfer.
type Op string

// Transfer directions.
const (
	OpDownload Op = "download"
	OpUpload   Op = "upload"
)

var (
	// ErrUnexpectedStatus is wrapped by Error when the remote answers non-2xx.
	ErrUnexpectedStatus = errors.New("transfer: unexpected status code")
	// ErrStalled is wrapped by Error when the remote sends nothing for longer
	// than the fetch timeout, before or during the body.
	ErrStalled = errors.New("transfer: no data received within timeout")
)

// Error is returned by Fetch and Publish. StatusCode is zero unless the
// remote responded.
type Error struct {
	Op         Op
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
