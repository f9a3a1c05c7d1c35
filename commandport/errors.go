package commandport

import "errors"

var ErrAddrEmpty = errors.New("command port address is empty")
var ErrClosed = errors.New("command port client is closed")

// ErrCommandFailed is returned when the reply body carries host error text
// instead of a result. The error lines themselves are delivered to message
// callbacks before this is returned.
var ErrCommandFailed = errors.New("host reported command failure")

// ErrPingFailed is returned when the round-trip health check comes back
// with anything but the expected result.
var ErrPingFailed = errors.New("command port ping failed")
