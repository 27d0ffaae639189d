package render

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"

	"marble-royale/internal/assets"
	"marble-royale/internal/game"
)

// MaxVoices caps simultaneously playing cues.
const MaxVoices = 8

// CueFor maps a battle event to a sound cue.
func CueFor(ev game.Event) (assets.Cue, bool) {
	switch ev.Type {
	case game.EventTypeDamage:
		return assets.CueHit, true
	case game.EventTypeCrit:
		return assets.CueCrit, true
	case game.EventTypeKill:
		return assets.CueKill, true
	case game.EventTypeUltimate:
		return assets.CueUltimate, true
	case game.EventTypeCutIn:
		return assets.CueCutIn, true
	case game.EventTypeFinish:
		return assets.CueFinish, true
	default:
		return "", false
	}
}

// CueMixer turns battle events into mixed PCM. It implements
// game.EventSink so it can be attached to a world; audio is pulled by
// callers (Read, PCM16, WriteWAV) rather than played on a device.
type CueMixer struct {
	mu      sync.Mutex
	bank    *assets.SoundBank
	mixer   *beep.Mixer
	output  beep.Streamer
	playing []*voice // Oldest first
	queued  int
	voices  int
}

// voice is one playing cue. An evicted voice goes silent and the mixer
// drops it on its next pass.
type voice struct {
	beep.Streamer
	cue  assets.Cue
	done bool
}

func (v *voice) Stream(samples [][2]float64) (int, bool) {
	if v.done {
		return 0, false
	}
	n, ok := v.Streamer.Stream(samples)
	if !ok {
		v.done = true
	}
	return n, ok
}

// NewCueMixer creates a mixer over bank at a linear volume (0..1).
func NewCueMixer(bank *assets.SoundBank, volume float64) *CueMixer {
	mixer := &beep.Mixer{}
	vol := &effects.Volume{
		Streamer: mixer,
		Base:     2,
		Volume:   math.Log2(math.Max(volume, 1e-6)),
		Silent:   volume <= 0,
	}
	return &CueMixer{
		bank:   bank,
		mixer:  mixer,
		output: vol,
		voices: MaxVoices,
	}
}

// Emit queues the cue for ev. It returns false when the event has no cue.
func (c *CueMixer) Emit(ev game.Event) bool {
	cue, ok := CueFor(ev)
	if !ok {
		return false
	}
	return c.Play(cue)
}

// Play queues a cue directly. When every voice is busy the oldest one is
// cut so the latest cues are always heard.
func (c *CueMixer) Play(cue assets.Cue) bool {
	if c.bank == nil {
		return false
	}
	s := c.bank.Streamer(cue)
	if s == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	if len(c.playing) >= c.voices {
		c.playing[0].done = true
		c.playing = append(c.playing[:0], c.playing[1:]...)
	}
	v := &voice{Streamer: s, cue: cue}
	c.mixer.Add(v)
	c.playing = append(c.playing, v)
	c.queued++
	return true
}

// prune forgets drained voices. Caller must hold the lock.
func (c *CueMixer) prune() {
	live := c.playing[:0]
	for _, v := range c.playing {
		if !v.done {
			live = append(live, v)
		}
	}
	c.playing = live
}

// Active returns how many cues are still playing.
func (c *CueMixer) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	return len(c.playing)
}

// Queued returns how many cues were accepted in total.
func (c *CueMixer) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queued
}

// Stream implements beep.Streamer. Silence is produced when nothing plays.
func (c *CueMixer) Stream(samples [][2]float64) (n int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.Stream(samples)
}

// Err implements beep.Streamer.
func (c *CueMixer) Err() error {
	return nil
}

// Format returns the PCM format of the mixed output.
func (c *CueMixer) Format() beep.Format {
	if c.bank == nil {
		return beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	}
	return c.bank.Format()
}

// PCM16 mixes n stereo frames and returns them as interleaved little
// endian int16, soft limited above ±30000 to avoid harsh clipping.
func (c *CueMixer) PCM16(n int) []byte {
	samples := make([][2]float64, n)
	c.Stream(samples)

	out := make([]byte, n*4)
	for i, s := range samples {
		for ch := 0; ch < 2; ch++ {
			v := s[ch] * 32767
			if v > 30000 {
				v = 30000 + (v-30000)/4
			} else if v < -30000 {
				v = -30000 + (v+30000)/4
			}
			v = math.Max(-32768, math.Min(32767, v))
			binary.LittleEndian.PutUint16(out[i*4+ch*2:], uint16(int16(v)))
		}
	}
	return out
}

// WriteWAV encodes d of mixed output as a WAV file.
func (c *CueMixer) WriteWAV(w io.WriteSeeker, d time.Duration) error {
	if d <= 0 {
		return errors.New("duration must be positive")
	}
	format := c.Format()
	return wav.Encode(w, beep.Take(format.SampleRate.N(d), c), format)
}

// memFile is an in-memory io.WriteSeeker for wav.Encode, which seeks back
// to patch the header.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = len(m.buf)
	default:
		return 0, errors.New("invalid whence")
	}
	next := base + int(offset)
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = next
	return int64(next), nil
}

// WAVBytes encodes d of mixed output as WAV bytes.
func (c *CueMixer) WAVBytes(d time.Duration) ([]byte, error) {
	var f memFile
	if err := c.WriteWAV(&f, d); err != nil {
		return nil, err
	}
	return f.buf, nil
}
