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
	"time"
)

const (
	// Register offsets within an engine's register window. The
	// transmit (mm2s) block is at the base of the window, the receive
	// (s2mm) block rxRegOffset above it. See PG021 and PG020.
	regControl = 0x00 // DMACR
	regStatus  = 0x04 // DMASR
	regAddress = 0x18 // DMA buffer address (low word)
	regLength  = 0x28 // DMA transfer length; writing arms the channel

	rxRegOffset = 0x30

	// VDMA frame geometry blocks: VSIZE, HSIZE, FRMDLY_STRIDE and the
	// frame start address, in that order. Writing VSIZE arms the
	// channel.
	vdmaTxGeom = 0x50
	vdmaRxGeom = 0xA0

	regVSize        = 0x0 // Geometry block offsets
	regHSize        = 0x4
	regFrmDlyStride = 0x8
	regStartAddr    = 0xC

	vdmaParkPtr = 0x28

	// Control register bits.
	crRunStop    = 1 << 0
	crReset      = 1 << 2
	crGenlockEn  = 1 << 3 // VDMA
	crFrameCntEn = 1 << 4 // VDMA
	crGenlockSrc = 1 << 7 // VDMA
	crIOCIrqEn   = 1 << 12
	crDlyIrqEn   = 1 << 13
	crErrIrqEn   = 1 << 14

	crThresholdShift = 16 // Interrupt coalescing threshold
	crDelayShift     = 24 // Delay counter

	frmDelayShift = 24 // Frame delay field of FRMDLY_STRIDE

	// Status register bits.
	srHalted = 1 << 0
	srIdle   = 1 << 1
	srIOCIrq = 1 << 12
	srDlyIrq = 1 << 13
	srErrIrq = 1 << 14
)

// How long to wait for the hardware to complete a transfer before
// giving up on it.
const transferTimeout = 10 * time.Second

// resetTimeout bounds the wait for a channel reset to self-clear.
const resetTimeout = 500 * time.Millisecond

// Channel represents one unidirectional DMA path through an engine.
// Type, Direction and ID are fixed at discovery and never change; the
// ID equals the channel's position in the device tree 'dmas' list.
type Channel struct {
	Type      Type
	Direction Direction
	ID        int

	dev    *Device
	engine int     // Discovery-order index of the owning engine node
	ctl    uintptr // Offset of the control/status block
	geom   uintptr // Offset of the VDMA geometry block
	ev     *Event
}

// Event returns the completion event for this channel.
func (c *Channel) Event() *Event {
	return c.ev
}

// Halted returns true if the engine reports the channel halted.
func (c *Channel) Halted() bool {
	return c.dev.rd(c.ctl+regStatus)&srHalted != 0
}

// Idle returns true if the channel has no transfer in flight.
func (c *Channel) Idle() bool {
	return c.dev.rd(c.ctl+regStatus)&srIdle != 0
}

// Halt stops the channel by clearing the run bit.
func (c *Channel) Halt() {
	c.dev.wr(c.ctl+regControl, c.dev.rd(c.ctl+regControl)&^uint32(crRunStop))
}

// Reset resets the channel and waits for the engine to complete it.
// Resetting either channel of an engine resets the whole engine.
func (c *Channel) Reset() error {
	c.dev.wr(c.ctl+regControl, crReset)
	deadline := time.Now().Add(resetTimeout)
	for c.dev.rd(c.ctl+regControl)&crReset != 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("%s %s channel %d: reset did not complete",
				c.Type, c.Direction, c.ID)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Submit applies the engine configuration and arms one transfer of n
// bytes at the given offset within the device's DMA region. The
// transfer completes asynchronously; completion is delivered on the
// channel's Event.
func (c *Channel) Submit(cfg EngineConfig, offset, n int) error {
	d := c.dev
	if offset < 0 || n <= 0 || offset+n > len(d.buf) {
		return fmt.Errorf("channel %d: transfer [%d:%d] outside the %d byte DMA region",
			c.ID, offset, offset+n, len(d.buf))
	}
	if cfg.Reset {
		if err := c.Reset(); err != nil {
			return err
		}
	}
	addr := uint32(d.bufAddr) + uint32(offset)
	switch c.Type {
	case DMA:
		cr := uint32(crRunStop | crIOCIrqEn | crErrIrqEn)
		if cfg.Coalesce > 0 {
			cr |= uint32(cfg.Coalesce) << crThresholdShift
		}
		if cfg.Delay > 0 {
			cr |= uint32(cfg.Delay)<<crDelayShift | crDlyIrqEn
		}
		d.wr(c.ctl+regControl, cr)
		d.wr(c.ctl+regAddress, addr)
		d.wr(c.ctl+regLength, uint32(n))
	case VDMA:
		cr := uint32(crRunStop | crIOCIrqEn | crErrIrqEn)
		if cfg.GenLock {
			cr |= crGenlockEn
		}
		if !cfg.Master {
			cr |= crGenlockSrc
		}
		if cfg.FrameCountEn {
			cr |= crFrameCntEn
		}
		if cfg.Coalesce > 0 {
			cr |= uint32(cfg.Coalesce) << crThresholdShift
		}
		if cfg.Delay > 0 {
			cr |= uint32(cfg.Delay)<<crDelayShift | crDlyIrqEn
		}
		d.wr(c.ctl+regControl, cr)
		park := uint32(0)
		if cfg.Park {
			park = uint32(cfg.ParkFrame)
		}
		d.wr(c.geomWindow()+vdmaParkPtr, park)
		d.wr(c.geom+regStartAddr, addr)
		vsize := uint32(cfg.VSize)
		if vsize != 0 {
			d.wr(c.geom+regHSize, uint32(cfg.HSize))
			d.wr(c.geom+regFrmDlyStride,
				uint32(cfg.Stride)|uint32(cfg.FrameDelay)<<frmDelayShift)
		} else {
			// The engine owns the geometry; rearm with the vertical
			// size it already holds.
			vsize = d.rd(c.geom + regVSize)
		}
		d.wr(c.geom+regVSize, vsize)
	}
	return nil
}

// geomWindow is the base of the engine window holding this channel's
// geometry block. The park pointer register is shared by both
// channels of a VDMA engine.
func (c *Channel) geomWindow() uintptr {
	return uintptr(c.engine) * c.dev.cfg.stride
}

// Transfer runs one synchronous transfer of n bytes at the given
// offset of the DMA region on a scatter-gather DMA channel.
func (c *Channel) Transfer(offset, n int) error {
	if c.Type != DMA {
		return fmt.Errorf("channel %d is %s, not DMA", c.ID, c.Type)
	}
	cfg := c.dev.gen.ConfigureDMA(c.Direction)
	if err := c.Submit(cfg, offset, n); err != nil {
		return err
	}
	return c.wait()
}

// TransferFrame runs one synchronous frame transfer on a VDMA
// channel. The frame is width x height pixels of depth bytes each,
// held at the given offset of the DMA region.
func (c *Channel) TransferFrame(offset, width, height, depth int) error {
	if c.Type != VDMA {
		return fmt.Errorf("channel %d is %s, not VDMA", c.ID, c.Type)
	}
	cfg := c.dev.gen.ConfigureVDMA(width, height, depth)
	n := width * height * depth
	if cfg.VSize != 0 {
		n = cfg.VSize * cfg.Stride
	}
	if err := c.Submit(cfg, offset, n); err != nil {
		return err
	}
	return c.wait()
}

// wait blocks until the armed transfer completes or times out.
func (c *Channel) wait() error {
	ok, err := c.ev.WaitTimeout(transferTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s channel %d: transfer timed out",
			c.Type, c.Direction, c.ID)
	}
	if sr := c.dev.rd(c.ctl + regStatus); sr&srErrIrq != 0 {
		c.dev.wr(c.ctl+regStatus, srErrIrq)
		return fmt.Errorf("%s %s channel %d: engine error (status %#x)",
			c.Type, c.Direction, c.ID, sr)
	}
	return nil
}
