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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/u-root/u-root/pkg/dt"
)

// Discovery errors. Errors returned by the device tree parsing
// functions wrap one of these, so callers can match them with
// errors.Is; the wrapping adds the offending node for context.
var (
	ErrMissingProperty        = errors.New("required property is missing")
	ErrEmptyProperty          = errors.New("property is empty")
	ErrPropertyRead           = errors.New("unable to read property")
	ErrLengthMismatch         = errors.New("'dma-names' and 'dmas' lengths differ")
	ErrMissingChannelArgument = errors.New("phandle is missing the channel argument")
	ErrInvalidChannelSelector = errors.New("invalid channel selector")
	ErrNoChannelNodes         = errors.New("engine has no channel nodes")
	ErrTooManyChannelNodes    = errors.New("engine has more than two channel nodes")
	ErrMissingCompatible      = errors.New("channel node is missing the 'compatible' property")
	ErrCompatibleRead         = errors.New("unable to read the 'compatible' property")
	ErrUnrecognizedCompatible = errors.New("unrecognized 'compatible' string")
	ErrNameRead               = errors.New("unable to read the channel name")
)

// Device tree property names.
const (
	propNames      = "dma-names"
	propRefs       = "dmas"
	propCompatible = "compatible"
	propPHandle    = "phandle"
	propDMACells   = "#dma-cells"
)

// The 'compatible' strings marking the channel sub-nodes of the
// engine nodes.
const (
	compatDMATx  = "xlnx,axi-dma-mm2s-channel"
	compatDMARx  = "xlnx,axi-dma-s2mm-channel"
	compatVDMATx = "xlnx,axi-vdma-mm2s-channel"
	compatVDMARx = "xlnx,axi-vdma-s2mm-channel"
)

// Counts holds the number of discovered channels in each engine
// type/direction category.
type Counts struct {
	DMATx  int
	DMARx  int
	VDMATx int
	VDMARx int
}

// Total is the number of channels across all categories.
func (c Counts) Total() int {
	return c.DMATx + c.DMARx + c.VDMATx + c.VDMARx
}

// channelSet is the scratch aggregate discovery parses into. It is
// only published to a Device once every channel has validated, so a
// failed discovery never leaves partial state behind.
type channelSet struct {
	channels []Channel
	counts   Counts
}

// phandleRef is one resolved entry of the 'dmas' property: the engine
// node it references and the argument cells that follow the phandle.
type phandleRef struct {
	engine *dt.Node
	args   []uint32
}

// countChannels returns the number of DMA channels declared by the
// driver node. The 'dma-names' and 'dmas' properties must both be
// present, non-empty, readable and of equal length.
func countChannels(root, node *dt.Node) (int, error) {
	namesProp, ok := node.LookProperty(propNames)
	if !ok {
		return 0, fmt.Errorf("%s: %s: %w", node.Name, propNames, ErrMissingProperty)
	}
	if _, ok := node.LookProperty(propRefs); !ok {
		return 0, fmt.Errorf("%s: %s: %w", node.Name, propRefs, ErrMissingProperty)
	}
	names, err := stringList(namesProp)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w: %v", node.Name, propNames, ErrPropertyRead, err)
	}
	if len(names) == 0 {
		return 0, fmt.Errorf("%s: %s: %w", node.Name, propNames, ErrEmptyProperty)
	}
	refs, err := phandleList(root, node)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w: %v", node.Name, propRefs, ErrPropertyRead, err)
	}
	if len(refs) == 0 {
		return 0, fmt.Errorf("%s: %s: %w", node.Name, propRefs, ErrEmptyProperty)
	}
	if len(names) != len(refs) {
		return 0, fmt.Errorf("%s: %d names, %d phandles: %w", node.Name,
			len(names), len(refs), ErrLengthMismatch)
	}
	return len(names), nil
}

// parseChannels resolves every entry of the driver node's 'dmas'
// property into a channel. Channel IDs are assigned in discovery
// order. The first failing entry abandons the whole set.
func parseChannels(root, node *dt.Node) (*channelSet, error) {
	refs, err := phandleList(root, node)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w: %v", node.Name, propRefs, ErrPropertyRead, err)
	}
	cs := &channelSet{channels: make([]Channel, 0, len(refs))}
	engines := make(map[*dt.Node]int)
	for i, ref := range refs {
		if len(ref.args) < 1 {
			return nil, fmt.Errorf("%s: %s entry %d: %w", node.Name, propRefs, i,
				ErrMissingChannelArgument)
		}
		selector := ref.args[0]
		if selector != 0 && selector != 1 {
			return nil, fmt.Errorf("%s: %s entry %d: selector %d: %w", node.Name,
				propRefs, i, selector, ErrInvalidChannelSelector)
		}
		ch, err := parseChannel(ref.engine, int(selector))
		if err != nil {
			return nil, err
		}
		ch.ID = i
		// Engines are numbered in the order they are first referenced;
		// the register window of an engine is located by this number.
		eng, ok := engines[ref.engine]
		if !ok {
			eng = len(engines)
			engines[ref.engine] = eng
		}
		ch.engine = eng
		cs.add(ch)
	}
	return cs, nil
}

// parseChannel reads the type and direction of one engine channel.
// An engine node carries one child node per channel and has two at
// most (one transmit, one receive); selector picks the child.
func parseChannel(engine *dt.Node, selector int) (Channel, error) {
	var ch Channel
	switch n := len(engine.Children); {
	case n == 0:
		return ch, fmt.Errorf("%s: %w", engine.Name, ErrNoChannelNodes)
	case n > 2:
		return ch, fmt.Errorf("%s: %d channel nodes: %w", engine.Name, n,
			ErrTooManyChannelNodes)
	case selector >= n:
		return ch, fmt.Errorf("%s: no channel node for selector %d: %w",
			engine.Name, selector, ErrNoChannelNodes)
	}
	child := engine.Children[selector]
	p, ok := child.LookProperty(propCompatible)
	if !ok {
		return ch, fmt.Errorf("%s: %w", child.Name, ErrMissingCompatible)
	}
	compat, err := firstString(p)
	if err != nil {
		return ch, fmt.Errorf("%s: %w: %v", child.Name, ErrCompatibleRead, err)
	}
	switch compat {
	case compatDMATx:
		ch.Type, ch.Direction = DMA, Write
	case compatDMARx:
		ch.Type, ch.Direction = DMA, Read
	case compatVDMATx:
		ch.Type, ch.Direction = VDMA, Write
	case compatVDMARx:
		ch.Type, ch.Direction = VDMA, Read
	default:
		return ch, fmt.Errorf("%s: %q: %w", child.Name, compat, ErrUnrecognizedCompatible)
	}
	return ch, nil
}

// add appends the channel and attributes it to its category counter.
func (cs *channelSet) add(ch Channel) {
	cs.channels = append(cs.channels, ch)
	switch {
	case ch.Type == DMA && ch.Direction == Write:
		cs.counts.DMATx++
	case ch.Type == DMA && ch.Direction == Read:
		cs.counts.DMARx++
	case ch.Type == VDMA && ch.Direction == Write:
		cs.counts.VDMATx++
	case ch.Type == VDMA && ch.Direction == Read:
		cs.counts.VDMARx++
	}
}

// channelName returns the index-th entry of the driver node's
// 'dma-names' property, the symbolic name of channel ID index.
func channelName(node *dt.Node, index int) (string, error) {
	p, ok := node.LookProperty(propNames)
	if !ok {
		return "", fmt.Errorf("%s: %s: %w", node.Name, propNames, ErrNameRead)
	}
	names, err := stringList(p)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w: %v", node.Name, propNames, ErrNameRead, err)
	}
	if index < 0 || index >= len(names) {
		return "", fmt.Errorf("%s: name %d of %d: %w", node.Name, index, len(names),
			ErrNameRead)
	}
	return names[index], nil
}

// findDriverNode locates the node whose 'compatible' list contains
// the given string.
func findDriverNode(root *dt.Node, compatible string) (*dt.Node, error) {
	matches, ok := root.FindAll(func(n *dt.Node) bool {
		p, ok := n.LookProperty(propCompatible)
		if !ok {
			return false
		}
		compats, err := stringList(p)
		if err != nil {
			return false
		}
		for _, c := range compats {
			if c == compatible {
				return true
			}
		}
		return false
	})
	if !ok || len(matches) == 0 {
		return nil, fmt.Errorf("no node compatible with %q in the device tree", compatible)
	}
	return matches[0], nil
}

// phandleList resolves the 'dmas' property into its entries. Each
// entry is one phandle cell followed by the number of argument cells
// the referenced engine declares in its '#dma-cells' property, per
// the generic DMA client binding.
func phandleList(root, node *dt.Node) ([]phandleRef, error) {
	p, ok := node.LookProperty(propRefs)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", node.Name, propRefs, ErrMissingProperty)
	}
	blk, err := p.AsPropEncodedArray()
	if err != nil {
		return nil, err
	}
	var refs []phandleRef
	for off := 0; off < len(blk); {
		if len(blk)-off < 4 {
			return nil, fmt.Errorf("%d trailing bytes in '%s'", len(blk)-off, propRefs)
		}
		ph := dt.PHandle(binary.BigEndian.Uint32(blk[off:]))
		off += 4
		engine, err := nodeByPHandle(root, ph)
		if err != nil {
			return nil, err
		}
		cellsProp, ok := engine.LookProperty(propDMACells)
		if !ok {
			return nil, fmt.Errorf("%s: missing '%s'", engine.Name, propDMACells)
		}
		cells, err := cellsProp.AsU32()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %v", engine.Name, propDMACells, err)
		}
		if len(blk)-off < int(cells)*4 {
			return nil, fmt.Errorf("%s: '%s' entry truncated (%d of %d argument cells)",
				engine.Name, propRefs, (len(blk)-off)/4, cells)
		}
		args := make([]uint32, cells)
		for i := range args {
			args[i] = binary.BigEndian.Uint32(blk[off:])
			off += 4
		}
		refs = append(refs, phandleRef{engine: engine, args: args})
	}
	return refs, nil
}

// nodeByPHandle finds the node carrying the given phandle.
func nodeByPHandle(root *dt.Node, ph dt.PHandle) (*dt.Node, error) {
	matches, ok := root.FindAll(func(n *dt.Node) bool {
		p, ok := n.LookProperty(propPHandle)
		if !ok {
			return false
		}
		v, err := p.AsPHandle()
		return err == nil && v == ph
	})
	if !ok || len(matches) == 0 {
		return nil, fmt.Errorf("no node with phandle %d", ph)
	}
	return matches[0], nil
}

// stringList decodes a device tree string list property. An empty
// value is an empty list, not a malformed one.
func stringList(p *dt.Property) ([]string, error) {
	if len(p.Value) == 0 {
		return nil, nil
	}
	return p.AsStringList()
}

// firstString returns the first entry of a string list property.
func firstString(p *dt.Property) (string, error) {
	s, err := stringList(p)
	if err != nil {
		return "", err
	}
	if len(s) == 0 {
		return "", fmt.Errorf("property '%s' is empty", p.Name)
	}
	return s[0], nil
}
