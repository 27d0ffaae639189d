package assets

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// Cue names one sound effect.
type Cue string

const (
	CueHit      Cue = "hit"
	CueCrit     Cue = "crit"
	CueKill     Cue = "kill"
	CueUltimate Cue = "ultimate"
	CueCutIn    Cue = "cutin"
	CueFinish   Cue = "finish"
)

// Cues lists every cue the bank tries to load.
var Cues = []Cue{CueHit, CueCrit, CueKill, CueUltimate, CueCutIn, CueFinish}

// synthTones are used for cues with no file on disk: frequency in Hz and
// length.
var synthTones = map[Cue]struct {
	freq float64
	dur  time.Duration
}{
	CueHit:      {220, 60 * time.Millisecond},
	CueCrit:     {440, 90 * time.Millisecond},
	CueKill:     {165, 250 * time.Millisecond},
	CueUltimate: {330, 400 * time.Millisecond},
	CueCutIn:    {523, 300 * time.Millisecond},
	CueFinish:   {262, 800 * time.Millisecond},
}

// SoundBank holds decoded cue buffers at one sample rate.
type SoundBank struct {
	format  beep.Format
	buffers map[Cue]*beep.Buffer
	loaded  map[Cue]bool // true when decoded from disk rather than synthesized
}

// LoadSoundBank decodes <dir>/<cue>.wav or <dir>/<cue>.ogg for every cue,
// resampling to sampleRate. Missing or broken files fall back to a short
// synthesized tone.
func LoadSoundBank(dir string, sampleRate int) *SoundBank {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	sb := &SoundBank{
		format:  beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2},
		buffers: make(map[Cue]*beep.Buffer, len(Cues)),
		loaded:  make(map[Cue]bool, len(Cues)),
	}

	for _, cue := range Cues {
		buf, err := sb.loadFile(dir, cue)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("⚠️ Sound cue %s: %v", cue, err)
			}
			buf = sb.synth(cue)
		} else {
			sb.loaded[cue] = true
		}
		sb.buffers[cue] = buf
	}

	log.Printf("🔊 Sound bank ready: %d/%d cues from %s", len(sb.loaded), len(Cues), dir)
	return sb
}

func (sb *SoundBank) loadFile(dir string, cue Cue) (*beep.Buffer, error) {
	if dir == "" {
		return nil, os.ErrNotExist
	}
	for _, ext := range []string{".wav", ".ogg"} {
		path := filepath.Join(dir, string(cue)+ext)
		f, err := os.Open(path)
		if err != nil {
			continue
		}

		var (
			s      beep.StreamSeekCloser
			format beep.Format
		)
		if ext == ".wav" {
			s, format, err = wav.Decode(f)
		} else {
			s, format, err = vorbis.Decode(f)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}

		buf := beep.NewBuffer(sb.format)
		var src beep.Streamer = s
		if format.SampleRate != sb.format.SampleRate {
			src = beep.Resample(4, format.SampleRate, sb.format.SampleRate, s)
		}
		buf.Append(src)
		s.Close()
		return buf, nil
	}
	return nil, os.ErrNotExist
}

// synth renders a decaying sine tone for cue.
func (sb *SoundBank) synth(cue Cue) *beep.Buffer {
	tone := synthTones[cue]
	rate := float64(sb.format.SampleRate)
	total := sb.format.SampleRate.N(tone.dur)

	pos := 0
	gen := beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		for i := range samples {
			if pos >= total {
				return i, i > 0
			}
			t := float64(pos) / rate
			decay := 1 - float64(pos)/float64(total)
			v := math.Sin(2*math.Pi*tone.freq*t) * 0.4 * decay
			samples[i] = [2]float64{v, v}
			pos++
		}
		return len(samples), true
	})

	buf := beep.NewBuffer(sb.format)
	buf.Append(gen)
	return buf
}

// Format returns the bank's sample format.
func (sb *SoundBank) Format() beep.Format {
	return sb.format
}

// Streamer returns a fresh streamer over a cue, or nil for unknown cues.
func (sb *SoundBank) Streamer(cue Cue) beep.StreamSeeker {
	buf, ok := sb.buffers[cue]
	if !ok || buf.Len() == 0 {
		return nil
	}
	return buf.Streamer(0, buf.Len())
}

// Len returns a cue's length in samples.
func (sb *SoundBank) Len(cue Cue) int {
	if buf, ok := sb.buffers[cue]; ok {
		return buf.Len()
	}
	return 0
}

// FromFile reports whether a cue was decoded from disk.
func (sb *SoundBank) FromFile(cue Cue) bool {
	return sb.loaded[cue]
}
