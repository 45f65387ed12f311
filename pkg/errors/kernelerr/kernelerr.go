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

// Package kernelerr contains the canonical error values returned by kernel
// object operations, exported as error interface pointers. Callers compare
// against these by identity, so return and comparison operations are cheap.
package kernelerr

import (
	"soliloquy.dev/nucleus/pkg/abi/status"
	"soliloquy.dev/nucleus/pkg/errors"
)

// The canonical errors of the nucleus. A given status code always maps to
// the same *errors.Error value.
var (
	NoMemory       = errors.New(status.ErrNoMemory, "out of memory")
	InvalidArgs    = errors.New(status.ErrInvalidArgs, "invalid arguments")
	BadHandle      = errors.New(status.ErrBadHandle, "bad handle")
	BufferTooSmall = errors.New(status.ErrBufferTooSmall, "buffer too small")
	ShouldWait     = errors.New(status.ErrShouldWait, "should wait")
	NotFound       = errors.New(status.ErrNotFound, "not found")
	WrongType      = errors.New(status.ErrWrongType, "wrong object type")
)

var codeMap = map[status.Code]*errors.Error{
	status.ErrNoMemory:       NoMemory,
	status.ErrInvalidArgs:    InvalidArgs,
	status.ErrBadHandle:      BadHandle,
	status.ErrBufferTooSmall: BufferTooSmall,
	status.ErrShouldWait:     ShouldWait,
	status.ErrNotFound:       NotFound,
	status.ErrWrongType:      WrongType,
}

// FromCode returns the canonical error for code, or nil for status.OK.
func FromCode(code status.Code) *errors.Error {
	if code == status.OK {
		return nil
	}
	if e, ok := codeMap[code]; ok {
		return e
	}
	return errors.New(code, code.String())
}

// CodeOf returns the status code carried by err, or status.OK for nil.
// Errors that did not originate in the nucleus report ErrInvalidArgs.
func CodeOf(err error) status.Code {
	if err == nil {
		return status.OK
	}
	if e, ok := err.(*errors.Error); ok {
		return e.Code()
	}
	return status.ErrInvalidArgs
}
