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

// Package kobject defines the interface shared by all kernel objects that
// can be named by handles.
//
// Handle-table entries are tagged with the kind of the object they reference
// so that lookups can verify the expected type instead of trusting a
// type-erased pointer.
package kobject

import "fmt"

// Kind identifies the concrete type of a kernel object.
type Kind int32

// Kernel object kinds.
const (
	KindChannelEndpoint Kind = iota
	KindVMO
)

// String implements fmt.Stringer.String.
func (k Kind) String() string {
	switch k {
	case KindChannelEndpoint:
		return "channel-endpoint"
	case KindVMO:
		return "vmo"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// Object is a kernel object that can be installed in a handle table.
type Object interface {
	// Kind returns the concrete kind of the object.
	Kind() Kind
}
