// Copyright 2026 The Soliloquy Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package status defines the numeric status codes returned by kernel object
// operations. Codes are stable across releases; diagnostics use String.
package status

import "fmt"

// Code is a kernel status code. OK is zero; errors are negative.
type Code int32

// Status codes used by the nucleus.
const (
	OK Code = 0

	ErrNoMemory       Code = -4
	ErrInvalidArgs    Code = -10
	ErrBadHandle      Code = -11
	ErrBufferTooSmall Code = -15
	ErrShouldWait     Code = -22
	ErrNotFound       Code = -25
	ErrWrongType      Code = -54
)

// String implements fmt.Stringer.String.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case ErrNoMemory:
		return "NO_MEMORY"
	case ErrInvalidArgs:
		return "INVALID_ARGS"
	case ErrBadHandle:
		return "BAD_HANDLE"
	case ErrBufferTooSmall:
		return "BUFFER_TOO_SMALL"
	case ErrShouldWait:
		return "SHOULD_WAIT"
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrWrongType:
		return "WRONG_TYPE"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}
