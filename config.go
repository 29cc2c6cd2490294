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

// The 'compatible' string of the device tree node declaring the DMA
// channels for this driver.
const driverCompatible = "xlnx,axidma-chrdev"

// Each engine occupies a 4K window in the AXI address map by default.
const defaultEngineStride = 0x1000

// Config holds the device attachment configuration. A configuration
// is built through methods on this structure e.g.
//
//	c := axidma.NewConfig()
//	c.Device("/dev/uio1").Generation(axidma.Modern)
//	dev, err := axidma.Open(c)
type Config struct {
	fdtPath    string
	devPath    string
	compatible string
	generation Generation
	stride     uintptr
}

// DefaultConfig attaches through /dev/uio0 using the system device
// tree and the legacy engine configuration layout.
// It may be modified before the device is opened e.g.
//
//	axidma.DefaultConfig.Generation(axidma.Modern)
var DefaultConfig *Config

func init() {
	DefaultConfig = NewConfig()
}

// NewConfig creates a Config with the default settings.
func NewConfig() *Config {
	c := new(Config)
	c.Clear()
	return c
}

// Clear resets the configuration to the defaults.
func (c *Config) Clear() *Config {
	c.fdtPath = drvFDT
	c.devPath = drvUIO
	c.compatible = driverCompatible
	c.generation = Legacy
	c.stride = defaultEngineStride
	return c
}

// DeviceTree sets the file the flattened device tree is read from.
func (c *Config) DeviceTree(path string) *Config {
	c.fdtPath = path
	return c
}

// Device sets the UIO device file exporting the engine registers and
// the reserved DMA region.
func (c *Config) Device(path string) *Config {
	c.devPath = path
	return c
}

// Compatible sets the 'compatible' string used to locate the driver
// node in the device tree.
func (c *Config) Compatible(s string) *Config {
	c.compatible = s
	return c
}

// Generation selects the engine configuration layout.
func (c *Config) Generation(g Generation) *Config {
	c.generation = g
	return c
}

// EngineStride sets the size of each engine's register window within
// the mapped register space.
func (c *Config) EngineStride(stride uintptr) *Config {
	c.stride = stride
	return c
}
