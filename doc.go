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

/*
Package axidma manages access and control of the Xilinx AXI DMA and AXI VDMA
engines found in the programmable logic of Zynq and similar FPGA parts
(https://www.xilinx.com/products/intellectual-property/axi_dma.html).

The channel topology is discovered from the system's flattened device tree:
the driver node lists its channels through the standard 'dmas' and
'dma-names' properties, and every referenced engine node carries one child
node per channel describing whether the channel is a scatter-gather DMA or a
frame-buffer VDMA channel, and whether it transmits (mm2s) or receives
(s2mm). The engine registers and the reserved DMA memory region are mapped
into the process through a UIO device exported by the platform, so a root
process can drive transfers without a dedicated kernel module.

Register layouts and programming sequences are described in the Xilinx
product guides PG021 (AXI DMA) and PG020 (AXI VDMA).

Complete documentation is available via https://github.com/aamcrae/axidma,
and through godoc at https://godoc.org/github.com/aamcrae/axidma
*/
package axidma
