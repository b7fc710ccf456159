package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkBurst      BookmarkType = "burst"       // Velocity energy jumped well above the rolling average
	BookmarkSettled    BookmarkType = "settled"     // Dye faded to a trace of its recent peak
	BookmarkInputStall BookmarkType = "input_stall" // Events were dropped during the window
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int64        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark to logger.
func (b Bookmark) LogBookmark(logger *slog.Logger) {
	logger.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// Detection thresholds.
const (
	burstFactor     = 3.0  // Window velocity energy over rolling average
	settledFraction = 0.01 // Dye energy over recent peak
)

// BookmarkDetector detects notable moments from consecutive windows.
type BookmarkDetector struct {
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	dyePeak float64 // Peak dye energy since the fluid was last stirred
	settled bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
		settled:     true,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkBurst(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkSettled(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if stats.DroppedEvents > 0 {
		bookmarks = append(bookmarks, Bookmark{
			Type:        BookmarkInputStall,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d input events dropped", stats.DroppedEvents),
		})
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkBurst(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 2 {
		return nil
	}

	var sum float64
	for _, h := range history {
		sum += h.VelocityEnergyMean
	}
	avg := sum / float64(len(history))
	if avg <= 0 || stats.VelocityEnergyMean < burstFactor*avg {
		return nil
	}

	return &Bookmark{
		Type: BookmarkBurst,
		Tick: stats.WindowEndTick,
		Description: fmt.Sprintf("velocity energy %.1f is %.1fx the rolling average",
			stats.VelocityEnergyMean, stats.VelocityEnergyMean/avg),
	}
}

// checkSettled fires once when the dye fades after a window with splats.
func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	if stats.Splats > 0 {
		bd.settled = false
	}
	if bd.settled {
		return nil
	}
	bd.dyePeak = max(bd.dyePeak, stats.DyeEnergyMean, stats.DyeEnergyEnd)
	if bd.dyePeak == 0 || stats.Splats > 0 || stats.DyeEnergyEnd > settledFraction*bd.dyePeak {
		return nil
	}

	bd.settled = true
	peak := bd.dyePeak
	bd.dyePeak = 0
	return &Bookmark{
		Type:        BookmarkSettled,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("dye energy %.3g settled from peak %.3g", stats.DyeEnergyEnd, peak),
	}
}
