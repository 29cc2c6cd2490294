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
	"os"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/u-root/u-root/pkg/dt"
	"golang.org/x/sys/unix"
)

// Device paths.
const (
	drvFDT     = "/sys/firmware/fdt"
	drvUIO     = "/dev/uio0"
	drvMapBase = "/sys/class/uio/%s/maps/map%d/%s"
)

// Attachment errors.
var (
	ErrNotRoot       = fmt.Errorf("must be root to open the device")
	ErrBusy          = fmt.Errorf("device is already open")
	ErrNoSuchChannel = fmt.Errorf("no such channel")
)

// UIO maps exported for the device: map 0 is the engine register
// window, map 1 the reserved DMA memory region.
const (
	mapRegisters = 0
	mapBuffer    = 1
)

// Device represents an attached set of AXI DMA/VDMA engines. It is
// built once during Open and is read-only afterwards, so it may be
// shared freely between goroutines.
type Device struct {
	cfg      *Config
	file     *os.File
	regs     []byte // Engine register window
	buf      []byte // Reserved DMA memory region
	bufAddr  uint64 // Bus address of the DMA region
	channels []Channel
	names    []string
	counts   Counts
	gen      Generation

	readerDone chan struct{} // Closed when irqReader exits
}

// Open attaches to the DMA engines described by the system device
// tree. The channel topology is discovered first; any discovery
// error aborts the attach and no Device is returned. Opening
// requires root, and only one process may hold the device at a time.
// A nil config uses DefaultConfig.
func Open(cfg *Config) (*Device, error) {
	if cfg == nil {
		cfg = DefaultConfig
	}
	if unix.Geteuid() != 0 {
		return nil, fmt.Errorf("%s: %w", cfg.devPath, ErrNotRoot)
	}
	d := &Device{cfg: cfg, gen: cfg.generation}

	f, err := os.Open(cfg.fdtPath)
	if err != nil {
		return nil, err
	}
	fdt, err := dt.ReadFDT(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", cfg.fdtPath, err)
	}
	root := fdt.RootNode
	node, err := findDriverNode(root, cfg.compatible)
	if err != nil {
		return nil, err
	}
	nchans, err := countChannels(root, node)
	if err != nil {
		return nil, err
	}
	cs, err := parseChannels(root, node)
	if err != nil {
		return nil, err
	}
	if len(cs.channels) != nchans {
		return nil, fmt.Errorf("%s: channel count changed during discovery", node.Name)
	}
	names := make([]string, nchans)
	for i := range names {
		if names[i], err = channelName(node, i); err != nil {
			return nil, err
		}
	}

	if err := d.attach(); err != nil {
		return nil, err
	}

	// Everything validated; publish the channel set.
	d.channels = cs.channels
	d.counts = cs.counts
	d.names = names
	for i := range d.channels {
		c := &d.channels[i]
		c.dev = d
		c.ctl = uintptr(c.engine) * cfg.stride
		c.geom = c.ctl + vdmaTxGeom
		if c.Direction == Read {
			c.ctl += rxRegOffset
			c.geom = uintptr(c.engine)*cfg.stride + vdmaRxGeom
		}
		c.ev = newEvent()
	}
	d.readerDone = make(chan struct{})
	go d.irqReader()
	d.armIRQ()
	return d, nil
}

// attach opens the device file with exclusive ownership and maps the
// register window and the DMA memory region.
func (d *Device) attach() error {
	f, err := os.OpenFile(d.cfg.devPath, os.O_RDWR|os.O_SYNC, 0660)
	if err != nil {
		return err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", d.cfg.devPath, ErrBusy)
	}
	uio := path.Base(d.cfg.devPath)
	regSize, err := uioMapValue(uio, mapRegisters, "size")
	if err != nil {
		f.Close()
		return err
	}
	bufAddr, err := uioMapValue(uio, mapBuffer, "addr")
	if err != nil {
		f.Close()
		return err
	}
	bufSize, err := uioMapValue(uio, mapBuffer, "size")
	if err != nil {
		f.Close()
		return err
	}
	// Each UIO map is selected by passing its index in pages as the
	// mmap offset.
	page := int64(os.Getpagesize())
	regs, err := unix.Mmap(int(f.Fd()), mapRegisters*page, int(regSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("%s: map%d: %v", d.cfg.devPath, mapRegisters, err)
	}
	buf, err := unix.Mmap(int(f.Fd()), mapBuffer*page, int(bufSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(regs)
		f.Close()
		return fmt.Errorf("%s: map%d: %v", d.cfg.devPath, mapBuffer, err)
	}
	d.file = f
	d.regs = regs
	d.buf = buf
	d.bufAddr = bufAddr
	return nil
}

// Close detaches from the engines, releasing all resources. Any
// in-flight transfers are halted. The interrupt reader is stopped
// first so it cannot touch the channels or registers mid-teardown.
func (d *Device) Close() {
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
	if d.readerDone != nil {
		<-d.readerDone
		d.readerDone = nil
	}
	for i := range d.channels {
		c := &d.channels[i]
		c.Halt()
		c.ev.ClearHandler()
		close(c.ev.evChan)
	}
	if d.buf != nil {
		unix.Munmap(d.buf)
		d.buf = nil
	}
	if d.regs != nil {
		unix.Munmap(d.regs)
		d.regs = nil
	}
}

// NumChannels returns the number of discovered channels.
func (d *Device) NumChannels() int {
	return len(d.channels)
}

// Counts returns the number of channels in each type/direction
// category. The categories always sum to NumChannels.
func (d *Device) Counts() Counts {
	return d.counts
}

// Channels returns the discovered channels in channel ID order.
func (d *Device) Channels() []Channel {
	chans := make([]Channel, len(d.channels))
	copy(chans, d.channels)
	return chans
}

// Channel returns the channel with the given ID.
func (d *Device) Channel(id int) (*Channel, error) {
	if id < 0 || id >= len(d.channels) {
		return nil, fmt.Errorf("channel %d: %w", id, ErrNoSuchChannel)
	}
	return &d.channels[id], nil
}

// ChannelFor returns the channel with the given ID, verifying that it
// has the wanted type and direction.
func (d *Device) ChannelFor(id int, t Type, dir Direction) (*Channel, error) {
	c, err := d.Channel(id)
	if err != nil {
		return nil, err
	}
	if c.Type != t || c.Direction != dir {
		return nil, fmt.Errorf("channel %d is %s %s, not %s %s: %w", id,
			c.Type, c.Direction, t, dir, ErrNoSuchChannel)
	}
	return c, nil
}

// ChannelName returns the symbolic name of the channel, as listed in
// the 'dma-names' property.
func (d *Device) ChannelName(id int) (string, error) {
	if id < 0 || id >= len(d.names) {
		return "", fmt.Errorf("channel %d: %w", id, ErrNoSuchChannel)
	}
	return d.names[id], nil
}

// Description returns a human readable string describing the device.
func (d *Device) Description() string {
	var s strings.Builder
	fmt.Fprintf(&s, "AXI DMA (%d channels:", len(d.channels))
	for i := range d.channels {
		c := &d.channels[i]
		name := ""
		if i < len(d.names) {
			name = " " + d.names[i]
		}
		fmt.Fprintf(&s, "%s %s %s", name, c.Type, c.Direction)
	}
	fmt.Fprintf(&s, "), %d byte DMA region", len(d.buf))
	return s.String()
}

// rd reads one 32 bit register from the engine window.
func (d *Device) rd(offs uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&d.regs[offs])))
}

// wr writes one 32 bit register in the engine window.
func (d *Device) wr(offs uintptr, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&d.regs[offs])), v)
}

// uioMapValue reads one attribute of a UIO map from sysfs. The
// values are hex strings such as "0x43000000".
func uioMapValue(uio string, m int, field string) (uint64, error) {
	file := fmt.Sprintf(drvMapBase, uio, m, field)
	b, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", file, err)
	}
	return val, nil
}
