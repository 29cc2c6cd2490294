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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	d := fakeDevice()
	assert.Equal(t, 4, d.NumChannels())
	assert.Equal(t, d.NumChannels(), d.Counts().Total())

	chans := d.Channels()
	require.Len(t, chans, 4)
	for i, c := range chans {
		assert.Equal(t, i, c.ID)
	}

	c, err := d.Channel(1)
	require.NoError(t, err)
	assert.Equal(t, DMA, c.Type)
	assert.Equal(t, Read, c.Direction)

	_, err = d.Channel(4)
	require.ErrorIs(t, err, ErrNoSuchChannel)
	_, err = d.Channel(-1)
	require.ErrorIs(t, err, ErrNoSuchChannel)
}

func TestChannelFor(t *testing.T) {
	d := fakeDevice()
	c, err := d.ChannelFor(3, VDMA, Read)
	require.NoError(t, err)
	assert.Equal(t, 3, c.ID)

	// Right ID, wrong category.
	_, err = d.ChannelFor(3, DMA, Read)
	require.ErrorIs(t, err, ErrNoSuchChannel)
	_, err = d.ChannelFor(3, VDMA, Write)
	require.ErrorIs(t, err, ErrNoSuchChannel)
}

func TestChannelNames(t *testing.T) {
	d := fakeDevice()
	name, err := d.ChannelName(0)
	require.NoError(t, err)
	assert.Equal(t, "tx_channel", name)
	_, err = d.ChannelName(9)
	require.ErrorIs(t, err, ErrNoSuchChannel)
}

func TestDescription(t *testing.T) {
	d := fakeDevice()
	s := d.Description()
	assert.Contains(t, s, "4 channels")
	assert.Contains(t, s, "tx_video VDMA transmit")
	assert.Contains(t, s, "8192 byte DMA region")
}

func TestConfig(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, drvFDT, c.fdtPath)
	assert.Equal(t, drvUIO, c.devPath)
	assert.Equal(t, driverCompatible, c.compatible)
	assert.Equal(t, Legacy, c.generation)
	assert.EqualValues(t, defaultEngineStride, c.stride)

	c.DeviceTree("/tmp/test.dtb").Device("/dev/uio3").
		Compatible("xlnx,axidma-test").Generation(Modern).EngineStride(0x10000)
	assert.Equal(t, "/tmp/test.dtb", c.fdtPath)
	assert.Equal(t, "/dev/uio3", c.devPath)
	assert.Equal(t, "xlnx,axidma-test", c.compatible)
	assert.Equal(t, Modern, c.generation)
	assert.EqualValues(t, 0x10000, c.stride)

	c.Clear()
	assert.Equal(t, drvUIO, c.devPath)
	assert.Equal(t, Legacy, c.generation)
}
