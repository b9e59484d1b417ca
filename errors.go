package reactor

import "errors"

// ErrClosed is returned by Flush once the Core has been closed.
//
// Fire, FireCommand and the subscription calls never return errors; work
// submitted after Close is dropped and logged.
var ErrClosed = errors.New("reactor: core closed")
