package discord

import (
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/radiodj/pkg/audio"
)

type speakingRecorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *speakingRecorder) set(b bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, b)
	return nil
}

func (r *speakingRecorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}

func newTestConnection(t *testing.T) (*Connection, chan []byte, *speakingRecorder) {
	t.Helper()
	send := make(chan []byte, 16)
	rec := &speakingRecorder{}
	c := &Connection{
		opusSend:     send,
		channelID:    "c1",
		output:       make(chan audio.Frame),
		done:         make(chan struct{}),
		speaking:     rec.set,
		disconnectVC: func() error { return nil },
	}
	go c.sendLoop()
	t.Cleanup(func() { _ = c.Disconnect() })
	return c, send, rec
}

func TestConnection_SendEncodes(t *testing.T) {
	t.Parallel()

	c, send, rec := newTestConnection(t)
	c.OutputStream() <- audio.Silence()

	select {
	case packet := <-send:
		if len(packet) == 0 {
			t.Error("empty opus packet")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for opus packet")
	}
	if s := rec.get(); len(s) == 0 || !s[0] {
		t.Errorf("speaking states = %v, want leading true", s)
	}
}

func TestConnection_BuffersPartialFrames(t *testing.T) {
	t.Parallel()

	c, send, _ := newTestConnection(t)
	half := audio.FrameBytes / 2
	c.OutputStream() <- audio.Frame{Data: make([]byte, half)}

	select {
	case <-send:
		t.Fatal("half frame was encoded")
	case <-time.After(50 * time.Millisecond):
	}

	c.OutputStream() <- audio.Frame{Data: make([]byte, half)}
	select {
	case <-send:
	case <-time.After(time.Second):
		t.Fatal("completed frame was not encoded")
	}
}

func TestConnection_SpeakingClearedWhenIdle(t *testing.T) {
	t.Parallel()

	c, send, rec := newTestConnection(t)
	c.OutputStream() <- audio.Silence()
	<-send

	deadline := time.Now().Add(2 * time.Second)
	for {
		s := rec.get()
		if len(s) >= 2 {
			if s[len(s)-1] {
				t.Errorf("speaking states = %v, want trailing false", s)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("speaking never cleared: %v", s)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConnection_DisconnectIdempotent(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestConnection(t)
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() { _ = c.Disconnect() })
	}
	wg.Wait()

	select {
	case <-c.Done():
	default:
		t.Error("Done not closed after Disconnect")
	}
	if c.ChannelID() != "c1" {
		t.Errorf("ChannelID() = %q", c.ChannelID())
	}
}
