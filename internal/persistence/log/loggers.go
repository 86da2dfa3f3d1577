package log

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// HourlyLog appends JSON records to <dir>/<name>-YYYY-MM-DD-HH.jsonl.zst.
// Each UTC hour gets its own file; reopening an hour that already has a
// file appends a new zstd frame to it.
type HourlyLog struct {
	dir  string
	name string
	now  func() time.Time

	mu  sync.Mutex
	cur *hourFile
}

// hourFile is the open segment for one hour.
type hourFile struct {
	hour time.Time
	f    *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

func NewHourlyLog(dir, name string) *HourlyLog {
	return &HourlyLog{dir: dir, name: name, now: time.Now}
}

func (l *HourlyLog) path(hour time.Time) string {
	return filepath.Join(l.dir, l.name+"-"+hour.Format(hourLayout)+".jsonl.zst")
}

// Append writes v as one line and flushes it to disk.
func (l *HourlyLog) Append(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.now().UTC().Truncate(time.Hour)
	if l.cur == nil || !l.cur.hour.Equal(hour) {
		if err := l.switchTo(hour); err != nil {
			return err
		}
	}
	if err := l.cur.enc.Encode(v); err != nil {
		return err
	}
	return l.cur.zw.Flush()
}

func (l *HourlyLog) switchTo(hour time.Time) error {
	if err := l.closeCurrent(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		_ = f.Close()
		return err
	}
	l.cur = &hourFile{hour: hour, f: f, zw: zw, enc: json.NewEncoder(zw)}
	return nil
}

func (l *HourlyLog) closeCurrent() error {
	if l.cur == nil {
		return nil
	}
	err := errors.Join(l.cur.zw.Close(), l.cur.f.Close())
	l.cur = nil
	return err
}

func (l *HourlyLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCurrent()
}

// BirthEntry is one audit line per genome that entered the nursery.
type BirthEntry struct {
	At       time.Time `json:"at"`
	ID       string    `json:"id"`
	Kind     string    `json:"kind"` // "spawn", "breed" or "import"
	MotherID string    `json:"mother_id,omitempty"`
	FatherID string    `json:"father_id,omitempty"`
	Code     string    `json:"code"`
}

// BirthLogger is the birth audit log under <dataDir>/births.
type BirthLogger struct{ w *HourlyLog }

func NewBirthLogger(dataDir string) *BirthLogger {
	return &BirthLogger{w: NewHourlyLog(filepath.Join(dataDir, "births"), "births")}
}

func (l *BirthLogger) WriteBirth(e BirthEntry) error { return l.w.Append(e) }
func (l *BirthLogger) Close() error                  { return l.w.Close() }
