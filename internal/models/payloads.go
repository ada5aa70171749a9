package models

import "time"

// These structs define the JSON payloads accepted and returned by the
// operation function, and the in-process request built by the CLI.

// OperationRequest describes one page operation. Inputs, OverlaySource and
// Output are local paths or gs://bucket/object URIs.
type OperationRequest struct {
	RequestID string   `json:"requestId,omitempty"`
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Output    string   `json:"output"`
	Pages     string   `json:"pages,omitempty"`

	// Angle is required by rotate; nil means not given.
	Angle         *int   `json:"angle,omitempty"`
	UserPassword  string `json:"userPassword,omitempty"`
	OwnerPassword string `json:"ownerPassword,omitempty"`
	Password      string `json:"password,omitempty"`
	OverlaySource string `json:"overlaySource,omitempty"`
	// OverlayPage defaults to 1.
	OverlayPage *int `json:"overlayPage,omitempty"`
	// DuplicateCount defaults to 1.
	DuplicateCount *int `json:"duplicateCount,omitempty"`
}

// OverlayPageNumber returns the 1-indexed overlay page, defaulting to 1.
func (r *OperationRequest) OverlayPageNumber() int {
	if r.OverlayPage == nil {
		return 1
	}
	return *r.OverlayPage
}

// DuplicateCopies returns the number of extra copies, defaulting to 1.
func (r *OperationRequest) DuplicateCopies() int {
	if r.DuplicateCount == nil {
		return 1
	}
	return *r.DuplicateCount
}

// OperationResult is the outcome of a successful operation.
type OperationResult struct {
	RequestID string        `json:"requestId"`
	Operation string        `json:"operation"`
	Output    string        `json:"output"`
	Duration  time.Duration `json:"-"`
	// WorkflowExecution is the name of the workflow execution started for the
	// result, if any.
	WorkflowExecution string `json:"workflowExecution,omitempty"`
}

// OperationResponse is the JSON body returned by the HTTP function.
type OperationResponse struct {
	Status            string `json:"status"`
	RequestID         string `json:"requestId,omitempty"`
	Output            string `json:"output,omitempty"`
	ErrorKind         string `json:"errorKind,omitempty"`
	Message           string `json:"message,omitempty"`
	ExitCode          int    `json:"exitCode"`
	WorkflowExecution string `json:"workflowExecution,omitempty"`
}
