// Package tools provides the tool registry and execution framework.
//
// This file defines sentinel error types for tool execution.
package tools

import (
	"fmt"
	"strings"
)

// UnknownToolError is returned when a tool call targets a name that is
// not present in the registry — typically a hallucinated tool. It is a
// data-level failure: Execute converts it to an error payload so the
// loop continues normally.
type UnknownToolError struct {
	Name  string
	Known []string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}
