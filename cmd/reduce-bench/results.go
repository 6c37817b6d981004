package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	statusPass     = "pass"
	statusFail     = "fail"     // Reduce returned an error
	statusMismatch = "mismatch" // value differs from the sequential reference
)

// row captures the result of one sweep configuration.
type row struct {
	DType          string        `json:"dtype"`
	N              int           `json:"n"`
	BlockSize      int           `json:"block_size"`
	ItemsPerThread int           `json:"items_per_thread"`
	Status         string        `json:"status"`
	Passes         int           `json:"passes,omitempty"`
	Best           time.Duration `json:"best_ns,omitempty"`
	Median         time.Duration `json:"median_ns,omitempty"`
	Bytes          int64         `json:"bytes"`
	Value          string        `json:"value,omitempty"`
	Expected       string        `json:"expected,omitempty"`
	Error          string        `json:"error,omitempty"`
	Session        string        `json:"session"`
	Timestamp      time.Time     `json:"timestamp"`
}

// bytesPerSecond is the input bandwidth of the best run.
func (r row) bytesPerSecond() float64 {
	if r.Best <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Best.Seconds()
}

func (r row) throughput() string {
	bps := r.bytesPerSecond()
	if bps == 0 {
		return "-"
	}
	return humanize.Bytes(uint64(bps)) + "/s"
}

// sessionLogger keeps the rows of one run in a JSON file, rewritten after
// every row so a crash loses nothing already measured.
type sessionLogger struct {
	mu   sync.Mutex
	rows []row
	path string
	id   string // stamped on every row, distinguishes runs merged later
}

// newSessionLogger creates dir if needed and starts a session file named
// after session and the current time.
func newSessionLogger(dir, session string) (*sessionLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create results directory")
	}
	timestamp := time.Now().Format("20060102_150405")
	l := &sessionLogger{
		path: filepath.Join(dir, session+"_"+timestamp+".json"),
		id:   uuid.NewString(),
	}
	return l, l.flush()
}

// Log appends r to the session.
func (l *sessionLogger) Log(r row) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.Timestamp = time.Now()
	r.Session = l.id
	l.rows = append(l.rows, r)
	if err := l.flush(); err != nil {
		klog.Warningf("Saving results: %v", err)
	}
}

// Close writes the final state of the session.
func (l *sessionLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

func (l *sessionLogger) flush() error {
	data, err := json.MarshalIndent(l.rows, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	return errors.Wrapf(os.WriteFile(l.path, data, 0644), "writing %s", l.path)
}

// readSession loads the rows of a session file.
func readSession(path string) ([]row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return rows, nil
}
