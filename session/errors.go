package session

import "errors"

var ErrHostNil = errors.New("host is nil")
var ErrEmptyCommand = errors.New("command is empty")
var ErrEmptyName = errors.New("name is empty")

// ErrUnsupported marks operations the boundary refuses to carry.
var ErrUnsupported = errors.New("unsupported over the MEL boundary")

// ErrUnknownGlobalType is returned when a global variable's MEL type cannot
// be determined from the cache or a whatIs probe.
var ErrUnknownGlobalType = errors.New("cannot determine type for this variable, declare it first")

// ErrBadUpAxis is returned for up-axis values other than y or z.
var ErrBadUpAxis = errors.New("up axis must be y or z")
