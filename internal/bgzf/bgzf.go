// Copyright 2017 Google Inc.
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

// Package bgzf provides support for reading and writing BGZF streams.
//
// BGZF is a series of independent gzip members, each carrying its own
// compressed size in a "BC" extra field, terminated by an empty EOF marker
// block.  Anchor dumps use it so that large files can be produced and
// consumed block by block.
package bgzf

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

// MaximumBlockSize is the maximum BGZF block size.
const MaximumBlockSize = 65536

// maximumPayload keeps the compressed form of incompressible data inside a
// single block.
const maximumPayload = 0xff00

// Magic is the prefix shared by every BGZF block.
var Magic = []byte{0x1f, 0x8b, 0x08, 0x04}

// DecodeBlock decodes a single BGZF block from r and returns the uncompressed
// data and the original block size (or an error).  Note that DecodeBlock may
// read bytes past the end of the block if r does not implement io.ByteReader.
func DecodeBlock(r io.Reader) ([]byte, uint16, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer gzr.Close()

	extra := gzr.Header.Extra
	if len(extra) < 6 {
		return nil, 0, fmt.Errorf("short extra field: %d bytes", len(extra))
	}
	if extra[0] != 0x42 || extra[1] != 0x43 {
		return nil, 0, fmt.Errorf("unexpected extra ID: %x", extra[0:2])
	}
	if extra[2] != 2 || extra[3] != 0 {
		return nil, 0, fmt.Errorf("unexpected extra length: %x", extra[2:4])
	}

	gzr.Multistream(false)
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, gzr); err != nil {
		return nil, 0, fmt.Errorf("decompressing data: %v", err)
	}
	return buffer.Bytes(), (uint16(extra[4]) | uint16(extra[5])<<8) + 1, nil
}

// EncodeBlock returns a single BGZF block that encodes the bytes in data.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaximumBlockSize {
		return nil, errors.New("data exceeds maximum block size")
	}

	var buffer bytes.Buffer
	gzw := gzip.NewWriter(&buffer)

	gzw.Header.Extra = []byte{
		0x42, 0x43, // Extra ID.
		0x02, 0x00, // Length of extra data (2 bytes).
		0x88, 0x88, // BSIZE (filled in after writing the archive).
	}
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %v", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %v", err)
	}
	bsize := buffer.Len() - 1
	if bsize >= MaximumBlockSize {
		return nil, fmt.Errorf("compressed block too large: %d bytes", bsize+1)
	}
	encoded := buffer.Bytes()
	encoded[16] = byte(bsize)
	encoded[17] = byte(bsize >> 8)
	return encoded, nil
}

// Reader decompresses a BGZF stream.
type Reader struct {
	r       *bufio.Reader
	pending []byte
	eof     bool
}

// NewReader returns a Reader that decodes blocks from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read implements io.Reader.  Empty blocks, including the EOF marker, are
// skipped.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if _, err := r.r.Peek(1); err == io.EOF {
			r.eof = true
			continue
		}
		data, _, err := DecodeBlock(r.r)
		if err != nil {
			return 0, fmt.Errorf("decoding block: %v", err)
		}
		r.pending = data
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Writer compresses data into BGZF blocks.  Close must be called to flush
// the final block and write the EOF marker.
type Writer struct {
	w      io.Writer
	buffer []byte
}

// NewWriter returns a Writer that writes blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buffer: make([]byte, 0, maximumPayload)}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := copy(w.buffer[len(w.buffer):cap(w.buffer)], p)
		w.buffer = w.buffer[:len(w.buffer)+n]
		p = p[n:]
		written += n
		if len(w.buffer) == cap(w.buffer) {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (w *Writer) flush() error {
	if len(w.buffer) == 0 {
		return nil
	}
	block, err := EncodeBlock(w.buffer)
	if err != nil {
		return fmt.Errorf("encoding block: %v", err)
	}
	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("writing block: %v", err)
	}
	w.buffer = w.buffer[:0]
	return nil
}

// Close flushes buffered data and writes the EOF marker.  It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	marker, err := EncodeBlock(nil)
	if err != nil {
		return fmt.Errorf("encoding EOF marker: %v", err)
	}
	if _, err := w.w.Write(marker); err != nil {
		return fmt.Errorf("writing EOF marker: %v", err)
	}
	return nil
}
