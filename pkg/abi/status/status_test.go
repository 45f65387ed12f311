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

package status

import "testing"

func TestString(t *testing.T) {
	for _, tc := range []struct {
		code Code
		want string
	}{
		{OK, "OK"},
		{ErrNoMemory, "NO_MEMORY"},
		{ErrInvalidArgs, "INVALID_ARGS"},
		{ErrBadHandle, "BAD_HANDLE"},
		{ErrBufferTooSmall, "BUFFER_TOO_SMALL"},
		{ErrShouldWait, "SHOULD_WAIT"},
		{ErrNotFound, "NOT_FOUND"},
		{ErrWrongType, "WRONG_TYPE"},
		{Code(-99), "code(-99)"},
	} {
		if got := tc.code.String(); got != tc.want {
			t.Errorf("(%d).String(): got %q, wanted %q", int32(tc.code), got, tc.want)
		}
	}
}
