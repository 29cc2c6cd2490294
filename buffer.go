// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package axidma

import (
	"fmt"
	"io"
)

// Buffer provides io interfaces over the device's uncached DMA
// region, so transfer payloads can be staged and retrieved with
// standard io plumbing. Offsets within the Buffer are offsets within
// the DMA region, usable directly with Channel.Submit and
// Channel.Transfer.
type Buffer struct {
	data    []byte
	current int
	max     int
	addr    uint64
}

// Buffer returns an accessor for the device's DMA region.
func (d *Device) Buffer() *Buffer {
	return &Buffer{data: d.buf, max: len(d.buf), addr: d.bufAddr}
}

// Size returns the size of the DMA region in bytes.
func (b *Buffer) Size() int {
	return b.max
}

// Bytes returns the mapped DMA region itself.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// PhysAddr returns the bus address of the DMA region, the address the
// engines use to reach it.
func (b *Buffer) PhysAddr() uint64 {
	return b.addr
}

// Write copies the byte slice into the DMA region.
func (b *Buffer) Write(p []byte) (int, error) {
	n := copy(b.data[b.current:], p)
	b.current += n
	if n != len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt copies the byte slice into the DMA region at the offset specified.
func (b *Buffer) WriteAt(p []byte, offs int64) (int, error) {
	if int(offs) >= b.max || offs < 0 {
		return 0, io.EOF
	}
	b.current = int(offs)
	return b.Write(p)
}

func (b *Buffer) WriteByte(c byte) error {
	if b.current >= b.max {
		return io.EOF
	}
	b.data[b.current] = c
	b.current++
	return nil
}

// Read copies from the DMA region into the byte slice.
func (b *Buffer) Read(p []byte) (int, error) {
	n := copy(p, b.data[b.current:])
	b.current += n
	if n != len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadAt copies from the DMA region at the offset specified.
func (b *Buffer) ReadAt(p []byte, offs int64) (int, error) {
	if int(offs) >= b.max || offs < 0 {
		return 0, io.EOF
	}
	b.current = int(offs)
	return b.Read(p)
}

func (b *Buffer) ReadByte() (byte, error) {
	if b.current >= b.max {
		return 0, io.EOF
	}
	c := b.data[b.current]
	b.current++
	return c, nil
}

// Seek moves the offset. Offsets outside the DMA region are rejected.
func (b *Buffer) Seek(offs int64, whence int) (int64, error) {
	n := int(offs)
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		n += b.current
	case io.SeekEnd:
		n += b.max
	default:
		return 0, fmt.Errorf("unknown whence")
	}
	if n < 0 || n > b.max {
		return 0, fmt.Errorf("offset %d outside the %d byte DMA region", n, b.max)
	}
	b.current = n
	return int64(b.current), nil
}
