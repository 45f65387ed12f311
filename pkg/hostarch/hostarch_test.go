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

package hostarch

import "testing"

func TestPageGeometry(t *testing.T) {
	if PageSize != 4096 || PageShift != 12 {
		t.Fatalf("page geometry: size %d shift %d", PageSize, PageShift)
	}

	for _, tc := range []struct {
		size, pages uint64
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{10 * PageSize, 10},
	} {
		if got := PagesFor(tc.size); got != tc.pages {
			t.Errorf("PagesFor(%d): got %d, wanted %d", tc.size, got, tc.pages)
		}
	}

	if PageRoundUp(1) != PageSize || PageRoundDown(PageSize+1) != PageSize {
		t.Errorf("rounding broken: up(1)=%d down(%d)=%d", PageRoundUp(1), PageSize+1, PageRoundDown(PageSize+1))
	}
	if !Paddr(PageSize).PageAligned() || Paddr(PageSize+1).PageAligned() {
		t.Errorf("PageAligned broken")
	}
	if got := Vaddr(3*PageSize + 5).PageIndex(); got != 3 {
		t.Errorf("PageIndex: got %d, wanted 3", got)
	}
}
