package apu

import (
	"os"

	"github.com/go-audio/wav"
)

// recorder writes the mixed output stream to a 32-bit float mono WAV
// file; enabled only under --debug, per spec.md §6. WriteFrame/format
// 3 (IEEE float) follows the pack's own channel-recording convention.
type recorder struct {
	enc *wav.Encoder
	f   *os.File
}

func newRecorder(path string, sampleRate int) (*recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &recorder{
		enc: wav.NewEncoder(f, sampleRate, 32, 1, 3),
		f:   f,
	}, nil
}

func (r *recorder) write(sample float32) {
	r.enc.WriteFrame(sample)
}

func (r *recorder) close() error {
	if err := r.enc.Close(); err != nil {
		return err
	}
	return r.f.Close()
}

// EnableRecording starts writing mixed samples to path as a 32-bit
// float mono WAV file. Callers (cmd/nescore's --debug path) are
// responsible for calling DisableRecording before the file needs to
// be readable.
func (a *APU) EnableRecording(path string) error {
	rec, err := newRecorder(path, int(cpuClockHz/a.sampleRatio))
	if err != nil {
		return err
	}
	a.rec = rec
	return nil
}

// DisableRecording closes the WAV file started by EnableRecording, if
// any.
func (a *APU) DisableRecording() error {
	if a.rec == nil {
		return nil
	}
	err := a.rec.close()
	a.rec = nil
	return err
}
