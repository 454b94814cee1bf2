package service

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/models"
)

// wipeBatchSize caps the deletes committed in one batch.
const wipeBatchSize = 400

// Wipe progress phases.
const (
	WipePhaseDocuments = "documents"
	WipePhasePhotos    = "photos"
	WipePhaseLocal     = "local"
	WipePhaseDone      = "done"
)

func (s *dataService) ClearRemoteUserData(ctx context.Context, userID string, progress func(models.WipeProgress)) error {
	session := s.status.Session()
	if !session.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if session.UserID != userID {
		return ErrUserMismatch
	}
	if !s.status.IsOnline() {
		return ErrOffline
	}
	ctx = logger.WithUser(ctx, userID)
	log := logger.FromContext(ctx)

	report := func(phase string, current, total int, format string, args ...any) {
		if progress != nil {
			progress(models.WipeProgress{Phase: phase, Current: current, Total: total, Message: fmt.Sprintf(format, args...)})
		}
	}

	deletedDocs := 0
	for _, collection := range models.MigratedCollections {
		docs, err := s.remote.Query(ctx, adapter.Query{Collection: collection, UserID: userID})
		if err != nil {
			return fmt.Errorf("list %s: %w", collection, err)
		}
		report(WipePhaseDocuments, 0, len(docs), "Deleting %s", collection)

		for start := 0; start < len(docs); start += wipeBatchSize {
			end := min(start+wipeBatchSize, len(docs))
			ops := make([]adapter.BatchOp, 0, end-start)
			for _, doc := range docs[start:end] {
				ops = append(ops, adapter.BatchOp{Kind: adapter.BatchDelete, Collection: collection, ID: doc.ID})
			}
			if err = s.remote.CommitBatch(ctx, ops); err != nil {
				return fmt.Errorf("delete %s: %w", collection, err)
			}
			report(WipePhaseDocuments, end, len(docs), "Deleted %d of %d %s", end, len(docs), collection)
		}
		deletedDocs += len(docs)
	}

	var keys []string
	for _, folder := range []string{plainPhotoFolder, sealedPhotoFolder} {
		found, err := s.blobs.List(ctx, userBlobPrefix(userID)+folder+"/")
		if err != nil {
			return fmt.Errorf("list photos: %w", err)
		}
		keys = append(keys, found...)
	}
	report(WipePhasePhotos, 0, len(keys), "Deleting %d photos", len(keys))
	for i, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete photo %s: %w", key, err)
		}
		report(WipePhasePhotos, i+1, len(keys), "Deleted photo %d of %d", i+1, len(keys))
	}

	report(WipePhaseLocal, 0, 2, "Clearing id mappings")
	mappings, err := s.mapper.DeleteAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("clear id mappings: %w", err)
	}
	report(WipePhaseLocal, 1, 2, "Clearing sync queue")
	if err = s.queue.Clear(ctx); err != nil {
		return fmt.Errorf("clear sync queue: %w", err)
	}
	report(WipePhaseLocal, 2, 2, "Local sync state cleared")

	report(WipePhaseDone, deletedDocs+len(keys), deletedDocs+len(keys), "Remote data cleared")

	log.Info().
		Str("func", "dataService.ClearRemoteUserData").
		Int("documents", deletedDocs).
		Int("photos", len(keys)).
		Int64("mappings", mappings).
		Msg("remote user data cleared")
	return nil
}
