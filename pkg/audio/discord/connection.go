package discord

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/radiodj/pkg/audio"
)

var _ audio.Connection = (*Connection)(nil)

// speakingIdle is how long the output may stay silent before the speaking
// flag is cleared.
const speakingIdle = 250 * time.Millisecond

// Connection adapts a discordgo.VoiceConnection to [audio.Connection].
type Connection struct {
	opusSend  chan<- []byte
	channelID string

	output chan audio.Frame

	done      chan struct{}
	closeOnce sync.Once

	// speaking and disconnectVC default to the voice connection's methods
	// and are replaced in tests.
	speaking     func(bool) error
	disconnectVC func() error
}

func newConnection(vc *discordgo.VoiceConnection, channelID string) *Connection {
	c := &Connection{
		opusSend:     vc.OpusSend,
		channelID:    channelID,
		output:       make(chan audio.Frame),
		done:         make(chan struct{}),
		speaking:     vc.Speaking,
		disconnectVC: vc.Disconnect,
	}
	go c.sendLoop()
	return c
}

// OutputStream implements [audio.Connection]. The channel is unbuffered so
// writers stay within one frame of what is on air.
func (c *Connection) OutputStream() chan<- audio.Frame { return c.output }

// ChannelID implements [audio.Connection].
func (c *Connection) ChannelID() string { return c.channelID }

// Done implements [audio.Connection].
func (c *Connection) Done() <-chan struct{} { return c.done }

// Disconnect implements [audio.Connection].
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// sendLoop encodes frames from the output channel and forwards them to
// Discord. Partial frames are buffered until a full 20 ms frame is available.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "err", err)
		return
	}

	idle := time.NewTimer(speakingIdle)
	idle.Stop()
	defer idle.Stop()

	speaking := false
	var buf []byte
	for {
		select {
		case <-c.done:
			if speaking {
				c.setSpeaking(false)
			}
			return
		case <-idle.C:
			if speaking {
				c.setSpeaking(false)
				speaking = false
			}
		case frame := <-c.output:
			if !speaking {
				c.setSpeaking(true)
				speaking = true
			}
			idle.Reset(speakingIdle)

			buf = append(buf, frame.Data...)
			for len(buf) >= audio.FrameBytes {
				packet, err := enc.encode(buf[:audio.FrameBytes])
				buf = buf[audio.FrameBytes:]
				if err != nil {
					slog.Warn("discord: opus encode error", "err", err)
					continue
				}
				select {
				case c.opusSend <- packet:
				case <-c.done:
					return
				}
			}
		}
	}
}

func (c *Connection) setSpeaking(b bool) {
	if c.speaking == nil {
		return
	}
	if err := c.speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "err", err)
	}
}
