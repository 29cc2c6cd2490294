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

// Type identifies the engine family a channel belongs to.
type Type int

const (
	// DMA is the scatter-gather AXI DMA engine.
	DMA Type = iota
	// VDMA is the frame-buffer AXI VDMA engine.
	VDMA
)

func (t Type) String() string {
	switch t {
	case DMA:
		return "DMA"
	case VDMA:
		return "VDMA"
	}
	return "unknown"
}

// Direction is the transfer direction of a channel, relative to
// host memory.
type Direction int

const (
	// Read transfers from the device into memory (s2mm).
	Read Direction = iota
	// Write transfers from memory to the device (mm2s).
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "receive"
	case Write:
		return "transmit"
	}
	return "unknown"
}

// EngineConfig holds the channel setup applied to an engine before a
// transfer is armed. DMA channels use the direction and interrupt
// fields; VDMA channels additionally use the frame geometry and
// synchronisation fields.
type EngineConfig struct {
	Direction Direction
	Coalesce  int  // Transfer completions per interrupt
	Delay     int  // Delay counter interrupt, 0 disables
	Reset     bool // Reset the channel before the transfer

	// Frame geometry, VDMA only.
	VSize  int // Height of the image in lines
	HSize  int // Width of a line in bytes
	Stride int // Bytes to advance between lines

	FrameDelay   int  // Number of frames to delay
	GenLock      bool // Synchronise to a genlock master
	Master       bool // Act as the genlock master
	FrameCountEn bool // Interrupt on a frame count
	Park         bool // Park on a single frame
	ParkFrame    int  // Frame to park at
	ExtFrameSync bool // External frame sync, off when the VDMA self-synchronises
}

// Generation selects the configuration layout expected by the engine
// support in use. Two layouts exist; the rest of the driver calls
// through this interface and stays unaware of which one is active.
type Generation interface {
	// ConfigureDMA returns the setup for one transfer on a DMA channel.
	ConfigureDMA(dir Direction) EngineConfig
	// ConfigureVDMA returns the setup for a frame transfer on a VDMA
	// channel. The frame is width x height pixels of depth bytes each.
	ConfigureVDMA(width, height, depth int) EngineConfig
}

var (
	// Legacy is the configuration layout of the older engine support,
	// where the channel carries the full frame geometry.
	Legacy Generation = legacyGen{}
	// Modern is the configuration layout of the newer engine support.
	// The DMA setup structure no longer exists there, and the VDMA
	// frame geometry is owned by the engine itself.
	Modern Generation = modernGen{}
)

type legacyGen struct{}

func (legacyGen) ConfigureDMA(dir Direction) EngineConfig {
	return EngineConfig{
		Direction: dir,
		Coalesce:  1, // Interrupt for each completed transfer
		Delay:     0, // Delay counter interrupt disabled
		Reset:     false,
	}
}

func (legacyGen) ConfigureVDMA(width, height, depth int) EngineConfig {
	// A tightly packed frame: the stride equals the line width, so
	// there is no padding between lines.
	return EngineConfig{
		VSize:  height,
		HSize:  width * depth,
		Stride: width * depth,
	}
}

type modernGen struct{}

// ConfigureDMA is a placeholder; the newer engine support dropped the
// per-transfer DMA setup structure.
func (modernGen) ConfigureDMA(dir Direction) EngineConfig {
	return EngineConfig{}
}

func (modernGen) ConfigureVDMA(width, height, depth int) EngineConfig {
	// The engine owns the frame geometry; only the delay, genlock,
	// park, coalescing, reset and external sync settings are cleared.
	return EngineConfig{}
}
