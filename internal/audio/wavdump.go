package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	apperrors "github.com/voicerig/voicerig/internal/errors"
)

// CycleWriter dumps each transcription cycle's audio to a WAV file for
// debugging. Files are named by capture time.
type CycleWriter struct {
	dir        string
	sampleRate int
}

// NewCycleWriter creates the dump directory if needed.
func NewCycleWriter(dir string, sampleRate int) (*CycleWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfig, "creating audio dump dir")
	}
	return &CycleWriter{dir: dir, sampleRate: sampleRate}, nil
}

// Write persists one cycle's samples as 16-bit mono PCM.
func (w *CycleWriter) Write(samples []float32) (string, error) {
	name := fmt.Sprintf("cycle_%s.wav", time.Now().Format("20060102_150405.000"))
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransient, "creating dump file")
	}
	defer f.Close()

	enc := wav.NewEncoder(f, w.sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := enc.Write(buf); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransient, "writing wav data")
	}
	if err := enc.Close(); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransient, "finalizing wav file")
	}
	return path, nil
}
