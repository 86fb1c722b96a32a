// Package codegen implements the default code-generation collaborator
// (SPEC_FULL §C): the external agent invoked once per task to turn a
// task description (and, on a retry, a Ralph-Loop correction) into a
// source change.
package codegen

import "context"

// Request is the input to one collaborator invocation.
type Request struct {
	// WorkDir is where the subprocess should run (repo root).
	WorkDir string

	// TaskID and Instructions identify and describe the work.
	TaskID       string
	Instructions string

	// Correction, if non-empty, is the Ralph-Loop's guidance from a
	// previous failed attempt, appended to Instructions.
	Correction string

	// ExtraArgs are passed through to the underlying command verbatim.
	ExtraArgs []string
}

// Response is the result of one collaborator invocation.
type Response struct {
	// FinalText is the collaborator's authoritative final output.
	FinalText string

	// ChangedFiles lists files the collaborator appears to have touched
	// (populated by the orchestrator from vcs.Manager.ChangedFiles after
	// the call returns, not by the collaborator itself).
	ChangedFiles []string

	// RawLogPath is where the full interaction transcript was saved.
	RawLogPath string
}

// Collaborator is the pluggable interface for turning a task into a code
// change. The default implementation shells out to a configured command;
// a project may swap in a different one (§4.4 "external collaborator").
type Collaborator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
