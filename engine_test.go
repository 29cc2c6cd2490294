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
)

func TestLegacyDMAConfig(t *testing.T) {
	cfg := Legacy.ConfigureDMA(Write)
	assert.Equal(t, EngineConfig{Direction: Write, Coalesce: 1}, cfg)
	cfg = Legacy.ConfigureDMA(Read)
	assert.Equal(t, EngineConfig{Direction: Read, Coalesce: 1}, cfg)
}

func TestLegacyVDMAConfig(t *testing.T) {
	cfg := Legacy.ConfigureVDMA(4, 2, 3)
	assert.Equal(t, EngineConfig{VSize: 2, HSize: 12, Stride: 12}, cfg)
	assert.Zero(t, cfg.Delay)
	assert.Zero(t, cfg.FrameDelay)
	assert.False(t, cfg.Reset)
	assert.False(t, cfg.GenLock)
	assert.False(t, cfg.Park)
	assert.False(t, cfg.ExtFrameSync)
}

func TestModernConfig(t *testing.T) {
	assert.Equal(t, EngineConfig{}, Modern.ConfigureDMA(Write))
	assert.Equal(t, EngineConfig{}, Modern.ConfigureDMA(Read))
	assert.Equal(t, EngineConfig{}, Modern.ConfigureVDMA(4, 2, 3))
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "DMA", DMA.String())
	assert.Equal(t, "VDMA", VDMA.String())
	assert.Equal(t, "transmit", Write.String())
	assert.Equal(t, "receive", Read.String())
}
