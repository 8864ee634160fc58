package core

import "errors"

// ErrInvalidTransition is returned when an overlay operation is invoked
// outside its legal source state, e.g. a capture requested while the
// window is Collapsed.
var ErrInvalidTransition = errors.New("invalid overlay state transition")
