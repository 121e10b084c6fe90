package service

import (
	"context"
	"log/slog"

	"github.com/mmcdole/harvester/internal/domain"
)

// Writer persists extracted records through a RecordSink.
type Writer struct {
	sink   domain.RecordSink
	logger *slog.Logger
}

// NewWriter creates a sink writer
func NewWriter(sink domain.RecordSink, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{sink: sink, logger: logger}
}

// Write stores each record and returns how many were persisted.
// Records with an identity are upserted; the rest are inserted as-is.
// A failed record is logged and skipped.
func (w *Writer) Write(ctx context.Context, req domain.PageRequest, records []domain.Record) int {
	written := 0
	for i, rec := range records {
		var err error
		if _, ok := rec.Identity(); ok {
			err = w.sink.UpsertByIdentity(ctx, rec)
		} else {
			err = w.sink.InsertPlain(ctx, rec)
		}

		if err != nil {
			w.logger.Error("record write failed",
				"item", req.ItemID,
				"page", req.Page,
				"index", i,
				"identity", rec.IdentityKey(),
				"kind", domain.ErrorKind(err),
				"error", err)
			continue
		}
		written++
	}
	return written
}
