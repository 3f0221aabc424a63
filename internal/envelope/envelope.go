// Package envelope implements the uniform JSON response shape returned by
// every endpoint:
//
//	{success: true, data: ..., pagination?: {hasMore, nextCursor}}
//	{success: false, error: "...", details?: "..."}
package envelope

import (
	"net/http"

	"github.com/jkaninda/soko/internal/apierr"
)

// Envelope is the response body of every endpoint.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Details    string      `json:"details,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes a cursor page.
type Pagination struct {
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Result is what an operation hands back to the pipeline on success.
type Result struct {
	Status     int // 0 = 200
	Data       any
	Pagination *Pagination
}

// OK wraps data in a 200 result.
func OK(data any) Result {
	return Result{Status: http.StatusOK, Data: data}
}

// Created wraps data in a 201 result.
func Created(data any) Result {
	return Result{Status: http.StatusCreated, Data: data}
}

// Page wraps a page of data with its pagination block.
func Page(data any, p Pagination) Result {
	return Result{Status: http.StatusOK, Data: data, Pagination: &p}
}

// Success renders a successful result.
func Success(r Result) (int, Envelope) {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	return status, Envelope{Success: true, Data: r.Data, Pagination: r.Pagination}
}

// Failure renders an error. Causes are dropped; only the classified
// message and field details are exposed.
func Failure(err error) (int, Envelope) {
	e := apierr.As(err)
	return apierr.Status(e.Kind), Envelope{
		Success: false,
		Error:   e.Message,
		Details: e.Details(),
	}
}

// Empty is the body of a successful response without data (pre-flight).
func Empty() Envelope {
	return Envelope{Success: true}
}
