package snapshot

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/platform"
)

// Tracker is the explicitly-reset cache at the composition point: it holds
// the configuration in effect, an optional baseline, and every snapshot
// recorded since the last reset. Snapshots themselves stay immutable; the
// tracker only accumulates them.
type Tracker struct {
	mu        sync.Mutex
	cfg       *config.Config
	baseline  *model.Snapshot
	snapshots []model.Snapshot
	now       func() time.Time
}

// NewTracker creates a tracker bound to a resolved configuration.
func NewTracker(cfg *config.Config) *Tracker {
	return &Tracker{cfg: cfg, now: time.Now}
}

// SetBaseline records the reference snapshot future diffs compare against.
func (t *Tracker) SetBaseline(snap model.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = &snap
}

// Baseline returns the recorded baseline, if any.
func (t *Tracker) Baseline() (model.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.baseline == nil {
		return model.Snapshot{}, false
	}
	return *t.baseline, true
}

// Record appends a snapshot to the history.
func (t *Tracker) Record(snap model.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots = append(t.snapshots, snap)
}

// Snapshots returns a copy of the recorded history.
func (t *Tracker) Snapshots() []model.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Snapshot(nil), t.snapshots...)
}

// Reset drops the baseline and history but keeps the configuration.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = nil
	t.snapshots = nil
}

// ExportDocument is the one-shot diagnostic export written by Export.
type ExportDocument struct {
	Config     *config.Config   `json:"config"`
	Baseline   *model.Snapshot  `json:"baseline"`
	Snapshots  []model.Snapshot `json:"snapshots"`
	ExportedAt time.Time        `json:"exportedAt"`
	Platform   string           `json:"platform"`
}

// Export writes the tracker state as a JSON document. Callers treat a
// failure as best-effort diagnostics loss, not a fatal condition.
func (t *Tracker) Export(path string) error {
	t.mu.Lock()
	doc := ExportDocument{
		Config:     t.cfg,
		Baseline:   t.baseline,
		Snapshots:  append([]model.Snapshot(nil), t.snapshots...),
		ExportedAt: t.now().UTC(),
		Platform:   platform.Name(),
	}
	t.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
