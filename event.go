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
	"fmt"
	"time"
)

// Event handles waiting on or receiving transfer completions for one
// channel.
type Event struct {
	handlerRegistered bool
	evChan            chan bool
	stopChan          chan chan bool
}

// newEvent creates and initialises an Event structure.
func newEvent() *Event {
	ev := new(Event)
	ev.evChan = make(chan bool, 50)
	return ev
}

// SetHandler installs an asynch handler that is invoked whenever the
// channel signals a completed transfer.
func (e *Event) SetHandler(f func()) {
	if e.handlerRegistered {
		e.ClearHandler()
	}
	e.handlerRegistered = true
	e.stopChan = make(chan chan bool)
	go e.dispatcher(f)
}

// ClearHandler removes any currently installed handler for this event.
func (e *Event) ClearHandler() {
	if e.handlerRegistered {
		// Create a channel to be used to signal when the handler has exited.
		c := make(chan bool)
		e.stopChan <- c
		// Once the handler receives the stop channel, a value is signalled back
		// to indicate that the handler has exited.
		<-c
		close(e.stopChan)
		e.handlerRegistered = false
	}
}

// Wait blocks until a completion is available.
// This cannot be used if a handler has been installed on this event.
func (e *Event) Wait() error {
	if e.handlerRegistered {
		return fmt.Errorf("Handler registered, cannot use Wait")
	}
	<-e.evChan
	return nil
}

// WaitTimeout blocks until a completion arrives, returning false if
// the timeout expires first.
// This cannot be used if a handler has been installed on this event e.g
//
//	ok, err := e.WaitTimeout(time.Second)
//	if ok {
//	    // Transfer complete
//	} else {
//	    // Timed out
//	}
func (e *Event) WaitTimeout(tout time.Duration) (bool, error) {
	if e.handlerRegistered {
		return false, fmt.Errorf("Handler registered, cannot use WaitTimeout")
	}
	ticker := time.NewTicker(tout)
	defer ticker.Stop()
	select {
	case <-e.evChan:
		return true, nil
	case <-ticker.C:
		return false, nil
	}
}

// dispatcher is a shim between the channel and the
// external handler that will be invoked when an event is received.
// A stop channel is used to indicate when the handler should terminate.
func (e *Event) dispatcher(f func()) {
	for {
		select {
		case c := <-e.stopChan:
			// Send a value back to signal that the handler has terminated.
			c <- true
			return
		case v := <-e.evChan:
			// Reading a closed channel will return false
			if v {
				f()
			} else {
				return
			}
		}
	}
}

// irqReader polls the interrupt device and signals completion events
// on the channels that raised an interrupt. The engines share one
// interrupt line through the UIO device, so each channel's status
// register decides whether it completed.
func (d *Device) irqReader() {
	defer close(d.readerDone)
	b := make([]byte, 4)
	for {
		n, err := d.file.Read(b)
		if err != nil {
			// Assume device has been closed.
			return
		}
		if n != 4 {
			continue
		}
		for i := range d.channels {
			c := &d.channels[i]
			sr := d.rd(c.ctl + regStatus)
			if sr&srIOCIrq == 0 {
				continue
			}
			// Interrupts are acknowledged by writing the bit back.
			d.wr(c.ctl+regStatus, srIOCIrq)
			select {
			case c.ev.evChan <- true:
				// Completion delivered.
			default:
				// Unable to send, maybe the channel is closed.
			}
		}
		d.armIRQ()
	}
}

// armIRQ re-enables the interrupt at the UIO device. A UIO interrupt
// is masked after delivery until a 1 is written back.
func (d *Device) armIRQ() {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], 1)
	d.file.Write(b[:])
}
