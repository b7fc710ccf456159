package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/pthm-cable/splash/grid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the field state needed to resume a session.
type Snapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id,omitempty"` // Session that wrote the snapshot
	RNGSeed int64  `json:"rng_seed"`
	Tick    int64  `json:"tick"`

	SurfaceWidth  int `json:"surface_width"`
	SurfaceHeight int `json:"surface_height"`

	Velocity GridState `json:"velocity"`
	Dye      GridState `json:"dye"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// GridState is the serialized content of one grid.
type GridState struct {
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Channels int       `json:"channels"`
	Data     []float32 `json:"data"`
}

// CaptureGrid copies b into a GridState.
func CaptureGrid(b *grid.Buffer) GridState {
	return GridState{
		Width:    b.Width,
		Height:   b.Height,
		Channels: b.Format.Channels(),
		Data:     append([]float32(nil), b.Data...),
	}
}

// RestoreInto writes the state into b, which must have the same width and
// height. Channels missing on either side are skipped.
func (g GridState) RestoreInto(b *grid.Buffer) error {
	if g.Width != b.Width || g.Height != b.Height {
		return fmt.Errorf("grid state is %dx%d, buffer is %dx%d", g.Width, g.Height, b.Width, b.Height)
	}
	if len(g.Data) != g.Width*g.Height*g.Channels {
		return fmt.Errorf("grid state has %d samples, want %d", len(g.Data), g.Width*g.Height*g.Channels)
	}
	n := min(g.Channels, b.Format.Channels())
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			src := (y*g.Width + x) * g.Channels
			dst := b.Index(x, y)
			copy(b.Data[dst:dst+n], g.Data[src:src+n])
		}
	}
	return nil
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
