// Package tape records the raw inbound message stream to compressed
// JSONL files for offline diagnosis. The snapshot is never restored
// from a tape; this is a flight recorder, not persistence.
package tape

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

type Entry struct {
	ReceivedAt string          `json:"received_at"`
	Raw        json.RawMessage `json:"raw"`
}

type Recorder struct {
	baseDir string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewRecorder(baseDir string) *Recorder {
	return &Recorder{baseDir: baseDir}
}

func (r *Recorder) Record(raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	hour := now.Format("2006-01-02-15")
	if hour != r.curHour {
		if err := r.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(Entry{
		ReceivedAt: now.Format(time.RFC3339Nano),
		Raw:        json.RawMessage(raw),
	})
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Recorder) rotateLocked(hour string) error {
	if err := r.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(r.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.enc = enc
	r.w = bufio.NewWriterSize(enc, 128*1024)
	r.curHour = hour
	return nil
}

func (r *Recorder) closeLocked() error {
	var err1 error
	if r.w != nil {
		_ = r.w.Flush()
	}
	if r.enc != nil {
		err1 = r.enc.Close()
		r.enc = nil
	}
	if r.f != nil {
		_ = r.f.Close()
		r.f = nil
	}
	r.w = nil
	return err1
}

func (r *Recorder) pathForHour(hour string) string {
	return filepath.Join(r.baseDir, fmt.Sprintf("updates-%s.jsonl.zst", hour))
}
