// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package apperr implements the error taxonomy of §7: a small set of
// Kinds, each carrying an HTTP-like status, wrapping github.com/pkg/errors
// for stack traces and cause-chain walking.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind names one of §7's seven error categories.
type Kind string

const (
	InvalidQuery    Kind = "invalid-query"
	InvalidAuth     Kind = "invalid-auth"
	Unavailable     Kind = "unavailable"
	StorageError    Kind = "storage-error"
	Timeout         Kind = "timeout"
	ConnectionError Kind = "connection-error"
	UnexpectedError Kind = "unexpected-error"
)

// httpStatus is the default status per kind, per §7's table.
var httpStatus = map[Kind]int{
	InvalidQuery:    400,
	InvalidAuth:     401,
	Unavailable:     404,
	StorageError:    500,
	Timeout:         408,
	ConnectionError: 500,
	UnexpectedError: 500,
}

// Error is the coded, HTTP-status-carrying error every package surfaces
// failures as. Cause is preserved for Unwrap/errors.Is/errors.As chains.
type Error struct {
	Kind       Kind
	Code       string
	HTTPStatus int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind, letting callers write errors.Is(err, apperr.New(apperr.Timeout, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds a *Error of kind with message, stack-annotated via pkg/errors
// so diagnostic payloads (§7 unexpected-error: "include diagnostic
// payload") carry a trace.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:       kind,
		Code:       string(kind),
		HTTPStatus: httpStatus[kind],
		Message:    message,
		Cause:      errors.New(message),
	}
}

// Wrap attaches kind/message to an existing error without discarding it,
// the policy of §7: "errors from Store are surfaced unchanged to the read
// they fail" — Wrap preserves cause for the caller that needs it while
// still classifying the failure for the caller that needs a Kind.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{
		Kind:       kind,
		Code:       string(kind),
		HTTPStatus: httpStatus[kind],
		Message:    message,
		Cause:      errors.Wrap(cause, message),
	}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to UnexpectedError — the §7 "invariant violation"
// catch-all for anything the rest of the module didn't classify.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnexpectedError
}
