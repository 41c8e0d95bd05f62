// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrUnknownTool indicates the oracle requested a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrDuplicateTool indicates a tool name was registered twice. This is a
// startup configuration error, never a runtime fault.
var ErrDuplicateTool = errors.New("duplicate tool registration")

// ErrInvalidArguments indicates tool call arguments failed schema validation.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// ErrToolTimeout indicates a tool handler exceeded its configured timeout.
var ErrToolTimeout = errors.New("tool execution timed out")

// ErrOracleFailure indicates the decision oracle was unreachable or returned
// output that could not be parsed after its retry budget. Fatal to a run.
var ErrOracleFailure = errors.New("decision oracle failure")

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")
