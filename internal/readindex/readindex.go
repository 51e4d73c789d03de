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

// Package readindex maps read IDs to read names and lengths.
package readindex

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Read describes one read of a collection.
type Read struct {
	Name   string `json:"name"`
	Length uint32 `json:"length"`
}

// Index resolves read IDs, which are positions in the list of reads it was
// built from.  Unknown IDs resolve to an empty name and zero length.
type Index struct {
	reads []Read
}

// New returns an Index over reads.
func New(reads []Read) *Index {
	return &Index{reads: reads}
}

// Load parses a tab separated file of read names and lengths, one read per
// line.  Additional columns, as found in FASTA .fai files, are ignored and
// blank lines are skipped.
func Load(r io.Reader) (*Index, error) {
	var reads []Read
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 || fields[0] == "" {
			return nil, errors.Errorf("line %d: want name and length, got %q", line, text)
		}
		length, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: parsing length", line)
		}
		reads = append(reads, Read{Name: fields[0], Length: uint32(length)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading index")
	}
	return New(reads), nil
}

// Len returns the number of reads in the index.
func (x *Index) Len() int {
	return len(x.reads)
}

// Contains reports whether id names a read in the index.
func (x *Index) Contains(id uint32) bool {
	return uint64(id) < uint64(len(x.reads))
}

// ReadName returns the name of read id.
func (x *Index) ReadName(id uint32) string {
	if !x.Contains(id) {
		return ""
	}
	return x.reads[id].Name
}

// ReadLength returns the length of read id.
func (x *Index) ReadLength(id uint32) uint32 {
	if !x.Contains(id) {
		return 0
	}
	return x.reads[id].Length
}

// Write emits the index in the format accepted by Load.
func (x *Index) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, read := range x.reads {
		if _, err := bw.WriteString(read.Name + "\t" + strconv.FormatUint(uint64(read.Length), 10) + "\n"); err != nil {
			return errors.Wrap(err, "writing index")
		}
	}
	return errors.Wrap(bw.Flush(), "flushing index")
}
