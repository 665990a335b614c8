package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"murmur/internal/diaglog"
	"murmur/internal/logging"
	"murmur/internal/notes"
	"murmur/internal/notifications"
	"murmur/internal/store"
)

// Action is the governor's recommendation for the caller.
type Action string

const (
	// ActionNone means usage is comfortably under budget.
	ActionNone Action = "none"
	// ActionWarn means usage crossed the warning threshold.
	ActionWarn Action = "warn"
	// ActionCleanup means usage crossed the critical threshold and the
	// caller should run Cleanup before the next large write.
	ActionCleanup Action = "cleanup"
)

const (
	warnThreshold    = 0.80
	cleanupThreshold = 0.95
)

// Status is one point-in-time usage reading.
type Status struct {
	UsedBytes         int64
	AvailableBytes    int64
	BudgetBytes       int64
	UsedPercent       float64
	IsNearLimit       bool
	IsAtLimit         bool
	RecommendedAction Action
}

// Report summarizes one cleanup cascade.
type Report struct {
	FreedBytes   int64
	ItemsRemoved int
	Errors       []string
}

// Governor enforces the storage budget.
type Governor struct {
	kv         store.KV
	notes      *notes.Store
	diag       *diaglog.Sink
	notifier   notifications.Service
	logger     *slog.Logger
	budget     int64
	keepRecent int
}

// New constructs a governor keeping the given number of most recent notes
// through cleanup.
func New(
	kv store.KV,
	noteStore *notes.Store,
	diag *diaglog.Sink,
	notifier notifications.Service,
	logger *slog.Logger,
	budgetBytes int64,
	keepRecent int,
) *Governor {
	return &Governor{
		kv:         kv,
		notes:      noteStore,
		diag:       diag,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "quota"),
		budget:     budgetBytes,
		keepRecent: keepRecent,
	}
}

// Status reads current usage. A monitoring failure never blocks the caller:
// on error the zero status with ActionNone is returned.
func (g *Governor) Status(ctx context.Context) Status {
	usage, err := g.kv.EstimateUsage(ctx)
	if err != nil {
		g.logger.Warn("usage estimation failed", logging.Error(err))
		return Status{RecommendedAction: ActionNone}
	}

	status := Status{
		UsedBytes:         usage.UsedBytes,
		AvailableBytes:    usage.AvailableBytes,
		BudgetBytes:       g.budget,
		RecommendedAction: ActionNone,
	}
	if g.budget > 0 {
		status.UsedPercent = float64(usage.UsedBytes) / float64(g.budget)
	}
	status.IsNearLimit = status.UsedPercent >= warnThreshold
	status.IsAtLimit = status.UsedPercent >= cleanupThreshold
	switch {
	case status.IsAtLimit:
		status.RecommendedAction = ActionCleanup
	case status.IsNearLimit:
		status.RecommendedAction = ActionWarn
	}
	return status
}

// Cleanup runs the eviction cascade: diagnostics first, then old notes beyond
// the retention count, then orphaned audio blobs. A failure in one stage is
// collected into the report and never stops the later stages.
func (g *Governor) Cleanup(ctx context.Context) Report {
	var report Report

	g.cleanDiagnostics(ctx, &report)
	g.cleanOldNotes(ctx, &report)
	g.cleanOrphanedAudio(ctx, &report)

	g.logger.Info("cleanup finished",
		logging.Int64("freed_bytes", report.FreedBytes),
		logging.Int("items_removed", report.ItemsRemoved),
		logging.Int("errors", len(report.Errors)))

	if report.ItemsRemoved > 0 {
		if err := g.notifier.NotifyStorageCleanup(ctx, report.FreedBytes, report.ItemsRemoved); err != nil {
			g.logger.Debug("cleanup notification failed", logging.Error(err))
		}
	}
	return report
}

func (g *Governor) cleanDiagnostics(ctx context.Context, report *Report) {
	raw, err := g.kv.Get(ctx, diaglog.RecordKey)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("read diagnostics: %v", err))
		return
	}
	if len(raw) == 0 {
		return
	}
	if err := g.diag.Clear(ctx); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("clear diagnostics: %v", err))
		return
	}
	report.FreedBytes += int64(len(raw))
	report.ItemsRemoved++
}

func (g *Governor) cleanOldNotes(ctx context.Context, report *Report) {
	all, err := g.notes.List(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list notes: %v", err))
		return
	}
	if len(all) <= g.keepRecent {
		return
	}

	// List is newest first; everything past the retention count goes.
	for _, note := range all[g.keepRecent:] {
		size := note.EstimatedSize()
		if err := g.notes.Delete(ctx, note.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("delete note %s: %v", note.ID, err))
			continue
		}
		report.FreedBytes += size
		report.ItemsRemoved++
	}
}

func (g *Governor) cleanOrphanedAudio(ctx context.Context, report *Report) {
	keys, err := g.kv.Keys(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list keys: %v", err))
		return
	}

	noteIDs := make(map[string]bool)
	for _, key := range keys {
		if strings.HasPrefix(key, notes.NotePrefix) {
			noteIDs[strings.TrimPrefix(key, notes.NotePrefix)] = true
		}
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, notes.AudioPrefix) {
			continue
		}
		id := strings.TrimPrefix(key, notes.AudioPrefix)
		if noteIDs[id] {
			continue
		}
		blob, err := g.kv.Get(ctx, key)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("read orphan blob %s: %v", key, err))
			continue
		}
		if err := g.kv.Remove(ctx, key); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("delete orphan blob %s: %v", key, err))
			continue
		}
		report.FreedBytes += int64(len(blob))
		report.ItemsRemoved++
	}
}
