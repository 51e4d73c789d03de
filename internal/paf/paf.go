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

// Package paf writes overlaps in the Pairwise mApping Format used by
// minimap2 and miniasm.
package paf

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/googlegenomics/overlapper/overlap"
)

// MappingQuality is reported for every overlap; chaining does not estimate
// one.
const MappingQuality = 255

// Writer emits one PAF line per overlap.
type Writer struct {
	w       *bufio.Writer
	scratch []byte
}

// NewWriter returns a Writer that writes to w.  Callers must call Flush.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits o.  Reads without a name are written as their numeric ID.
func (w *Writer) Write(o *overlap.Overlap) error {
	b := w.scratch[:0]
	b = appendName(b, o.QueryReadName, o.QueryReadID)
	b = appendField(b, o.QueryReadLength)
	b = appendField(b, o.QueryStartPosition)
	b = appendField(b, o.QueryEndPosition)
	b = append(b, '\t')
	b = append(b, o.RelativeStrand.String()...)
	b = append(b, '\t')
	b = appendName(b, o.TargetReadName, o.TargetReadID)
	b = appendField(b, o.TargetReadLength)
	b = appendField(b, o.TargetStartPosition)
	b = appendField(b, o.TargetEndPosition)
	b = append(b, '\t')
	b = strconv.AppendInt(b, int64(o.NumResidues), 10)
	b = append(b, '\t')
	b = strconv.AppendInt(b, int64(o.NumResidues), 10)
	b = append(b, '\t')
	b = strconv.AppendInt(b, MappingQuality, 10)
	b = append(b, '\n')
	w.scratch = b

	if _, err := w.w.Write(b); err != nil {
		return errors.Wrap(err, "writing PAF record")
	}
	return nil
}

// WriteAll emits every overlap and flushes the output.
func (w *Writer) WriteAll(overlaps []overlap.Overlap) error {
	for i := range overlaps {
		if err := w.Write(&overlaps[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush writes any buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return errors.Wrap(w.w.Flush(), "flushing PAF output")
}

func appendName(b []byte, name string, id uint32) []byte {
	if name == "" {
		return strconv.AppendUint(b, uint64(id), 10)
	}
	return append(b, name...)
}

func appendField(b []byte, value uint32) []byte {
	b = append(b, '\t')
	return strconv.AppendUint(b, uint64(value), 10)
}
