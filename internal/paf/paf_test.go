// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package paf

import (
	"bytes"
	"testing"

	"github.com/googlegenomics/overlapper/overlap"
)

func TestWriteAll(t *testing.T) {
	overlaps := []overlap.Overlap{
		{
			QueryReadID:         1,
			TargetReadID:        2,
			QueryStartPosition:  100,
			QueryEndPosition:    900,
			TargetStartPosition: 40,
			TargetEndPosition:   850,
			NumResidues:         12,
			QueryReadName:       "m1/100/ccs",
			TargetReadName:      "m1/200/ccs",
			QueryReadLength:     1500,
			TargetReadLength:    1200,
		},
		{
			QueryReadID:         7,
			TargetReadID:        3,
			QueryStartPosition:  0,
			QueryEndPosition:    300,
			TargetStartPosition: 200,
			TargetEndPosition:   500,
			NumResidues:         3,
			RelativeStrand:      overlap.Reverse,
		},
	}

	var buffer bytes.Buffer
	if err := NewWriter(&buffer).WriteAll(overlaps); err != nil {
		t.Fatalf("WriteAll() returned error: %v", err)
	}

	want := "m1/100/ccs\t1500\t100\t900\t+\tm1/200/ccs\t1200\t40\t850\t12\t12\t255\n" +
		"7\t0\t0\t300\t-\t3\t0\t200\t500\t3\t3\t255\n"
	if got := buffer.String(); got != want {
		t.Errorf("Wrong output:\ngot  %q\nwant %q", got, want)
	}
}

func TestWriteAll_Empty(t *testing.T) {
	var buffer bytes.Buffer
	if err := NewWriter(&buffer).WriteAll(nil); err != nil {
		t.Fatalf("WriteAll() returned error: %v", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Expected no output, got %q", buffer.String())
	}
}
