package jsl

import "errors"

// ErrInvalidDefinition is wrapped by every validation error of a job definition.
var ErrInvalidDefinition = errors.New("invalid job definition")

// ErrUnknownComponent is wrapped when a definition references a component that is not registered.
var ErrUnknownComponent = errors.New("unknown component reference")
