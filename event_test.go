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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWaitTimeout(t *testing.T) {
	ev := newEvent()
	ok, err := ev.WaitTimeout(10 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	ev.evChan <- true
	ok, err = ev.WaitTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEventWait(t *testing.T) {
	ev := newEvent()
	ev.evChan <- true
	require.NoError(t, ev.Wait())
}

func TestEventHandler(t *testing.T) {
	ev := newEvent()
	done := make(chan bool, 1)
	ev.SetHandler(func() {
		done <- true
	})
	defer ev.ClearHandler()
	ev.evChan <- true
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
	// Wait cannot be used while a handler is installed.
	_, err := ev.WaitTimeout(time.Millisecond)
	assert.Error(t, err)
	assert.Error(t, ev.Wait())
}

// TestIRQDispatch feeds interrupts through a pipe standing in for the
// UIO device, with channel completion flagged in a fake status
// register.
func TestIRQDispatch(t *testing.T) {
	d := fakeDevice()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	d.file = r
	defer r.Close()
	go d.irqReader()

	tx := &d.channels[0]
	rx := &d.channels[1]
	d.wr(tx.ctl+regStatus, srIOCIrq)
	_, err = w.Write([]byte{1, 0, 0, 0})
	require.NoError(t, err)

	ok, err := tx.ev.WaitTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	// The receive channel raised no interrupt.
	ok, err = rx.ev.WaitTimeout(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Teardown must stop the interrupt reader before the event channels
// are closed, so a late interrupt cannot be sent on a closed channel.
func TestIRQReaderStopsBeforeTeardown(t *testing.T) {
	d := fakeDevice()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	d.file = r
	go d.irqReader()

	tx := &d.channels[0]
	d.wr(tx.ctl+regStatus, srIOCIrq)
	_, err = w.Write([]byte{1, 0, 0, 0})
	require.NoError(t, err)
	ok, err := tx.ev.WaitTimeout(time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Closing the device file stops the reader.
	r.Close()
	select {
	case <-d.readerDone:
	case <-time.After(time.Second):
		t.Fatal("interrupt reader did not exit")
	}
	// The channels can now be torn down without racing the reader.
	for i := range d.channels {
		close(d.channels[i].ev.evChan)
	}
}

func TestIRQDispatchShortRead(t *testing.T) {
	d := fakeDevice()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	d.file = r
	defer r.Close()
	go d.irqReader()

	tx := &d.channels[0]
	d.wr(tx.ctl+regStatus, srIOCIrq)
	// A short read is ignored; the following full read dispatches.
	_, err = w.Write([]byte{1})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = w.Write([]byte{0, 0, 0, 1, 0, 0, 0})
	require.NoError(t, err)
	ok, err := tx.ev.WaitTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
