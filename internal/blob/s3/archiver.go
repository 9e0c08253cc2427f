package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// Archiver uploads settlement artifacts to object storage: the terminal
// record set of a resolved event and the reports produced by reconcile runs.
// Uploads are write-once; the primary store stays authoritative and nothing
// is deleted here.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver on top of a BlobWriter.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// EventArchive is the uploaded snapshot of one settled event.
type EventArchive struct {
	Event      domain.Event         `json:"event"`
	Bets       []domain.Bet         `json:"bets"`
	Wagers     []domain.ParlayWager `json:"parlay_wagers,omitempty"`
	ArchivedAt time.Time            `json:"archived_at"`
}

// ArchiveEvent uploads the settled event and its terminal bets as one JSON
// object under settlements/<event-id>.json. Overwriting an existing archive
// with the same content is harmless; the key is derived from the event ID.
func (a *Archiver) ArchiveEvent(ctx context.Context, archive EventArchive) (string, error) {
	if archive.ArchivedAt.IsZero() {
		archive.ArchivedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal event archive: %w", err)
	}

	path := fmt.Sprintf("settlements/%s.json", archive.Event.ID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return path, nil
}

// ArchiveReport uploads an arbitrary report document under
// reports/<name>/<timestamp>.json. Used by reconcile runs so drift findings
// survive the process.
func (a *Archiver) ArchiveReport(ctx context.Context, name string, report any) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal report %s: %w", name, err)
	}

	path := fmt.Sprintf("reports/%s/%s.json", name, time.Now().UTC().Format("20060102T150405Z"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return path, nil
}
