package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/splash/grid"
)

func testBuffer(t *testing.T, w, h int, format grid.Format) (*grid.Manager, *grid.Buffer) {
	t.Helper()
	mgr, err := grid.NewManager(grid.DefaultCapabilities(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := mgr.Create(w, h, format, grid.FilterNearest)
	if err != nil {
		t.Fatal(err)
	}
	return mgr, b
}

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	_, vel := testBuffer(t, 4, 3, grid.FormatRG)
	_, dye := testBuffer(t, 8, 6, grid.FormatRGBA)
	for i := range vel.Data {
		vel.Data[i] = float32(i) * 0.5
	}
	for i := range dye.Data {
		dye.Data[i] = float32(i) / 100
	}

	snapshot := &Snapshot{
		Version:       SnapshotVersion,
		RNGSeed:       42,
		Tick:          1000,
		SurfaceWidth:  640,
		SurfaceHeight: 480,
		Velocity:      CaptureGrid(vel),
		Dye:           CaptureGrid(dye),
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if filepath.Base(path) != "snapshot_1000.json" {
		t.Errorf("unexpected snapshot name %q", filepath.Base(path))
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Tick != 1000 || loaded.RNGSeed != 42 {
		t.Errorf("header mismatch: tick %d seed %d", loaded.Tick, loaded.RNGSeed)
	}
	if loaded.SurfaceWidth != 640 || loaded.SurfaceHeight != 480 {
		t.Errorf("surface mismatch: %dx%d", loaded.SurfaceWidth, loaded.SurfaceHeight)
	}

	_, restored := testBuffer(t, 8, 6, grid.FormatRGBA)
	if err := loaded.Dye.RestoreInto(restored); err != nil {
		t.Fatal(err)
	}
	for i := range dye.Data {
		if restored.Data[i] != dye.Data[i] {
			t.Fatalf("dye sample %d = %v, want %v", i, restored.Data[i], dye.Data[i])
		}
	}
}

func TestSnapshotBookmarkName(t *testing.T) {
	tmpDir := t.TempDir()
	_, b := testBuffer(t, 2, 2, grid.FormatR)

	snapshot := &Snapshot{
		Version:  SnapshotVersion,
		Tick:     77,
		Velocity: CaptureGrid(b),
		Dye:      CaptureGrid(b),
		Bookmark: &Bookmark{Type: BookmarkSettled, Tick: 77},
	}
	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "snapshot_77_settled.json") {
		t.Errorf("unexpected path %q", path)
	}
}

func TestLoadSnapshotRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected version mismatch error")
	}
}

func TestRestoreIntoChannelMismatch(t *testing.T) {
	_, rgba := testBuffer(t, 2, 1, grid.FormatRGBA)
	copy(rgba.Data, []float32{1, 2, 3, 4, 5, 6, 7, 8})

	_, rg := testBuffer(t, 2, 1, grid.FormatRG)
	if err := CaptureGrid(rgba).RestoreInto(rg); err != nil {
		t.Fatal(err)
	}
	want := []float32{1, 2, 5, 6}
	for i, v := range want {
		if rg.Data[i] != v {
			t.Errorf("sample %d = %v, want %v", i, rg.Data[i], v)
		}
	}

	_, wrong := testBuffer(t, 3, 1, grid.FormatRG)
	if err := CaptureGrid(rgba).RestoreInto(wrong); err == nil {
		t.Error("expected size mismatch error")
	}
}
