package timesync

import (
	"sync"
	"time"
)

// Status levels mirror the usual diagnostic vocabulary.
const (
	LevelOK   = "OK"
	LevelWarn = "WARN"
)

// Status is one diagnostics snapshot: per-stream OK/NG plus a summary.
type Status struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Streams map[string]string `json:"streams"`
	StampNS int64             `json:"stamp_ns"`
}

// Diagnostics remembers which streams were missing from the latest
// round close and renders that as a snapshot on demand. It keeps no
// other state between rounds.
type Diagnostics struct {
	mu      sync.Mutex
	streams []string
	missing map[string]bool
}

func NewDiagnostics(streams []string) *Diagnostics {
	return &Diagnostics{streams: streams}
}

// Update replaces the missing set with the latest round's outcome.
func (d *Diagnostics) Update(missing []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.missing = make(map[string]bool, len(missing))
	for _, s := range missing {
		d.missing[s] = true
	}
}

// Snapshot renders the latest round as a status report.
func (d *Diagnostics) Snapshot() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := Status{
		Level:   LevelOK,
		Message: "synchronized all streams",
		Streams: make(map[string]string, len(d.streams)),
		StampNS: time.Now().UnixNano(),
	}
	for _, s := range d.streams {
		if d.missing[s] {
			st.Streams[s] = "NG"
		} else {
			st.Streams[s] = "OK"
		}
	}
	if len(d.missing) > 0 {
		st.Level = LevelWarn
		st.Message = "some streams were not synchronized"
	}
	return st
}
