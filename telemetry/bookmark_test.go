package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Burst(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int64(i * 300), VelocityEnergyMean: 10})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 1500, VelocityEnergyMean: 50})
	if !hasBookmark(bookmarks, BookmarkBurst) {
		t.Error("expected burst bookmark")
	}
}

func TestBookmarkDetector_NoBurstWhenSteady(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 8; i++ {
		bookmarks := bd.Check(WindowStats{WindowEndTick: int64(i * 300), VelocityEnergyMean: 10 + float64(i)})
		if hasBookmark(bookmarks, BookmarkBurst) {
			t.Fatalf("unexpected burst at window %d", i)
		}
	}
}

func TestBookmarkDetector_SettledOnce(t *testing.T) {
	bd := NewBookmarkDetector(5)

	// Stirred window
	if got := bd.Check(WindowStats{Splats: 12, DyeEnergyMean: 400, DyeEnergyEnd: 300}); hasBookmark(got, BookmarkSettled) {
		t.Fatal("settled fired while splatting")
	}
	// Fading but not yet below 1% of peak
	if got := bd.Check(WindowStats{DyeEnergyMean: 100, DyeEnergyEnd: 50}); hasBookmark(got, BookmarkSettled) {
		t.Fatal("settled fired too early")
	}
	// Faded
	if got := bd.Check(WindowStats{DyeEnergyMean: 10, DyeEnergyEnd: 2}); !hasBookmark(got, BookmarkSettled) {
		t.Fatal("expected settled bookmark")
	}
	// Stays quiet until stirred again
	if got := bd.Check(WindowStats{DyeEnergyMean: 1, DyeEnergyEnd: 0.5}); hasBookmark(got, BookmarkSettled) {
		t.Fatal("settled fired twice without new splats")
	}

	bd.Check(WindowStats{Splats: 3, DyeEnergyMean: 200, DyeEnergyEnd: 150})
	if got := bd.Check(WindowStats{DyeEnergyMean: 5, DyeEnergyEnd: 1}); !hasBookmark(got, BookmarkSettled) {
		t.Error("expected settled bookmark after second stir")
	}
}

func TestBookmarkDetector_NothingBeforeInput(t *testing.T) {
	bd := NewBookmarkDetector(5)
	for i := 0; i < 5; i++ {
		if got := bd.Check(WindowStats{WindowEndTick: int64(i)}); len(got) != 0 {
			t.Fatalf("idle window %d produced bookmarks: %v", i, got)
		}
	}
}

func TestBookmarkDetector_InputStall(t *testing.T) {
	bd := NewBookmarkDetector(5)
	bookmarks := bd.Check(WindowStats{WindowEndTick: 60, DroppedEvents: 7})
	if !hasBookmark(bookmarks, BookmarkInputStall) {
		t.Error("expected input_stall bookmark")
	}
}
