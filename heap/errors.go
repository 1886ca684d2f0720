package heap

import "errors"

// ErrNoSpace indicates the active backend had no memory for the request.
// It is the only failure the entry points return; reacting to it is the
// caller's responsibility.
var ErrNoSpace = errors.New("heap: no memory available")
