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

// Package anchorfile reads and writes binary anchor dumps.
//
// A dump starts with the magic "ANC\x01" and a little endian uint64 anchor
// count, followed by one 16-byte record per anchor holding the query read
// ID, target read ID, query position and target position as little endian
// uint32 values.  The whole stream may be BGZF or zstd compressed; readers
// detect the compression from the leading bytes.
package anchorfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/googlegenomics/overlapper/internal/bgzf"
	lebinary "github.com/googlegenomics/overlapper/internal/binary"
	"github.com/googlegenomics/overlapper/overlap"
)

// Magic identifies an uncompressed anchor dump.
var Magic = []byte("ANC\x01")

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

const (
	headerSize = 12
	recordSize = 16

	// This is just to prevent arbitrarily long allocations due to malformed
	// headers.
	maximumCount = math.MaxInt32

	// Records decoded per read from a stream.
	batchSize = 4096
)

// Compression selects how a dump is compressed.
type Compression int

const (
	None Compression = iota
	BGZF
	Zstd
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case BGZF:
		return "bgzf"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression parses the names returned by Compression.String.
func ParseCompression(name string) (Compression, error) {
	for _, c := range []Compression{None, BGZF, Zstd} {
		if c.String() == name {
			return c, nil
		}
	}
	return None, errors.Errorf("unknown compression %q", name)
}

// Detect returns the compression implied by the first bytes of a dump.
func Detect(prefix []byte) Compression {
	switch {
	case bytes.HasPrefix(prefix, bgzf.Magic):
		return BGZF
	case bytes.HasPrefix(prefix, zstdMagic):
		return Zstd
	}
	return None
}

// Write encodes anchors to w using compression c.
func Write(w io.Writer, anchors []overlap.Anchor, c Compression) error {
	switch c {
	case None:
		return encode(w, anchors)
	case BGZF:
		bw := bgzf.NewWriter(w)
		if err := encode(bw, anchors); err != nil {
			return err
		}
		return errors.Wrap(bw.Close(), "closing BGZF stream")
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return errors.Wrap(err, "creating zstd writer")
		}
		if err := encode(zw, anchors); err != nil {
			zw.Close()
			return err
		}
		return errors.Wrap(zw.Close(), "closing zstd stream")
	}
	return errors.Errorf("unsupported compression %v", c)
}

func encode(w io.Writer, anchors []overlap.Anchor) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(Magic); err != nil {
		return errors.Wrap(err, "writing magic")
	}
	if err := lebinary.Write(bw, uint64(len(anchors))); err != nil {
		return errors.Wrap(err, "writing anchor count")
	}
	var (
		record [recordSize]byte
		fields [4]uint32
	)
	for _, a := range anchors {
		fields = [4]uint32{a.QueryReadID, a.TargetReadID, a.QueryPositionInRead, a.TargetPositionInRead}
		lebinary.PutUint32s(record[:], fields[:])
		if _, err := bw.Write(record[:]); err != nil {
			return errors.Wrap(err, "writing anchor")
		}
	}
	return errors.Wrap(bw.Flush(), "flushing anchors")
}

// Read decodes a dump from r, which may be compressed.
func Read(r io.Reader) ([]overlap.Anchor, error) {
	br := bufio.NewReader(r)
	prefix, err := br.Peek(len(Magic))
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	switch Detect(prefix) {
	case BGZF:
		return decode(bgzf.NewReader(br))
	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd reader")
		}
		defer zr.Close()
		return decode(zr)
	}
	return decode(br)
}

// ReadFile decodes the dump stored at path.  Uncompressed files are memory
// mapped rather than read.
func ReadFile(path string) ([]overlap.Anchor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening anchors")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "reading file info")
	}
	prefix := make([]byte, len(Magic))
	if _, err := io.ReadFull(f, prefix); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if Detect(prefix) != None || info.Size() < headerSize {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "rewinding anchors")
		}
		return Read(f)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "mapping anchors")
	}
	defer data.Unmap()
	return decodeBytes(data)
}

func readCount(r io.Reader) (int, error) {
	if err := lebinary.ExpectBytes(r, Magic); err != nil {
		return 0, errors.Wrap(err, "reading magic")
	}
	var count uint64
	if err := lebinary.Read(r, &count); err != nil {
		return 0, errors.Wrap(err, "reading anchor count")
	}
	if count > maximumCount {
		return 0, errors.Errorf("anchor count %d exceeds %d", count, maximumCount)
	}
	return int(count), nil
}

func decode(r io.Reader) ([]overlap.Anchor, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	// Capacity follows the records actually read, not the header.
	anchors := make([]overlap.Anchor, 0, min(count, batchSize))
	buffer := make([]byte, batchSize*recordSize)
	for remaining := count; remaining > 0; {
		n := min(remaining, batchSize)
		if _, err := io.ReadFull(r, buffer[:n*recordSize]); err != nil {
			return nil, errors.Wrapf(err, "reading anchor %d of %d", count-remaining, count)
		}
		anchors = appendRecords(anchors, buffer[:n*recordSize])
		remaining -= n
	}
	return anchors, nil
}

func decodeBytes(data []byte) ([]overlap.Anchor, error) {
	count, err := readCount(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	body := data[headerSize:]
	if want := count * recordSize; len(body) != want {
		return nil, errors.Errorf("wrong body size: got %d bytes for %d anchors, want %d", len(body), count, want)
	}
	return appendRecords(make([]overlap.Anchor, 0, count), body), nil
}

func appendRecords(anchors []overlap.Anchor, records []byte) []overlap.Anchor {
	var fields [4]uint32
	for i := 0; i+recordSize <= len(records); i += recordSize {
		lebinary.Uint32s(fields[:], records[i:])
		anchors = append(anchors, overlap.Anchor{
			QueryReadID:          fields[0],
			TargetReadID:         fields[1],
			QueryPositionInRead:  fields[2],
			TargetPositionInRead: fields[3],
		})
	}
	return anchors
}
