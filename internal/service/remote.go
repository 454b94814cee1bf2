package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/crypto"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/models"
)

// remoteWriter resolves local ids to Remote Store documents and applies
// writes against them. The data service and the sync queue share it so a
// write behaves the same whether it is attempted at once or drained later.
type remoteWriter struct {
	remote adapter.RemoteStore
	mapper IDMapper
}

// idValue returns the local id in the JSON type the remote documents carry:
// trips use numeric ids, weather logs and catches use strings.
func idValue(collection models.Collection, localID string) any {
	if collection == models.CollectionTrips {
		if id, err := strconv.ParseInt(localID, 10, 64); err == nil {
			return id
		}
	}
	return localID
}

// locate returns the user's remote document for localID. The mapping is
// tried first; a mapping whose document is gone is deleted and the lookup
// falls through to a query by (userId, id).
func (w *remoteWriter) locate(ctx context.Context, userID string, collection models.Collection, localID string) (models.RemoteDocument, bool, error) {
	log := logger.FromContext(ctx)

	remoteID, mapped, err := w.mapper.Get(ctx, userID, collection, localID)
	if err != nil {
		return models.RemoteDocument{}, false, err
	}
	if mapped {
		doc, err := w.remote.Get(ctx, collection, remoteID)
		switch {
		case err == nil:
			return doc, true, nil
		case errors.Is(err, adapter.ErrNotFound):
			log.Debug().
				Str("func", "remoteWriter.locate").
				Str("collection", collection.String()).
				Str("local_id", localID).
				Str("remote_id", remoteID).
				Msg("stale id mapping dropped")
			if err = w.mapper.Delete(ctx, userID, collection, localID); err != nil {
				return models.RemoteDocument{}, false, err
			}
		default:
			return models.RemoteDocument{}, false, err
		}
	}

	q := adapter.Query{Collection: collection, UserID: userID, Limit: 1}.
		Where(models.FieldID, idValue(collection, localID))
	docs, err := w.remote.Query(ctx, q)
	if err != nil {
		return models.RemoteDocument{}, false, err
	}
	if len(docs) == 0 {
		return models.RemoteDocument{}, false, nil
	}

	if err = w.mapper.Set(ctx, userID, collection, localID, docs[0].ID); err != nil {
		return models.RemoteDocument{}, false, err
	}
	return docs[0], true, nil
}

// put stores payload as the remote document of localID, replacing the
// located document or adding a new one. created reports the latter.
func (w *remoteWriter) put(ctx context.Context, userID string, collection models.Collection, localID string, payload models.Document) (remoteID string, created bool, err error) {
	doc, found, err := w.locate(ctx, userID, collection, localID)
	if err != nil {
		return "", false, err
	}
	if found {
		if err = w.remote.Set(ctx, collection, doc.ID, payload); err != nil {
			return "", false, err
		}
		return doc.ID, false, nil
	}
	return w.add(ctx, userID, collection, localID, payload)
}

func (w *remoteWriter) add(ctx context.Context, userID string, collection models.Collection, localID string, payload models.Document) (string, bool, error) {
	remoteID, err := w.remote.Add(ctx, collection, payload)
	if err != nil {
		return "", false, err
	}
	if err = w.mapper.Set(ctx, userID, collection, localID, remoteID); err != nil {
		return remoteID, true, err
	}
	return remoteID, true, nil
}

// remove deletes the remote document of localID. A document that never
// reached the Remote Store counts as deleted. Deleting a trip also deletes
// its weather logs and catches in the same batch.
func (w *remoteWriter) remove(ctx context.Context, userID string, collection models.Collection, localID string) error {
	doc, found, err := w.locate(ctx, userID, collection, localID)
	if err != nil {
		return err
	}

	var ops []adapter.BatchOp
	var unmapped []mappedDoc
	if found {
		ops = append(ops, adapter.BatchOp{Kind: adapter.BatchDelete, Collection: collection, ID: doc.ID})
		unmapped = append(unmapped, mappedDoc{collection: collection, localID: localID})
	}

	if collection == models.CollectionTrips {
		tripID, err := strconv.ParseInt(localID, 10, 64)
		if err != nil {
			return fmt.Errorf("trip id %q: %w", localID, err)
		}
		children, err := w.children(ctx, userID, tripID)
		if err != nil {
			return err
		}
		for _, child := range children {
			ops = append(ops, adapter.BatchOp{Kind: adapter.BatchDelete, Collection: child.Collection, ID: child.ID})
			unmapped = append(unmapped, mappedDoc{collection: child.Collection, localID: models.LocalIDString(child.Data[models.FieldID])})
		}
	}

	if len(ops) == 0 {
		return nil
	}
	if err = w.remote.CommitBatch(ctx, ops); err != nil {
		return err
	}
	for _, m := range unmapped {
		if err = w.mapper.Delete(ctx, userID, m.collection, m.localID); err != nil {
			return err
		}
	}
	return nil
}

type mappedDoc struct {
	collection models.Collection
	localID    string
}

// children returns the remote weather logs and catches of a trip.
func (w *remoteWriter) children(ctx context.Context, userID string, tripID int64) ([]models.RemoteDocument, error) {
	var out []models.RemoteDocument
	for _, collection := range []models.Collection{models.CollectionWeatherLogs, models.CollectionFishCaught} {
		q := adapter.Query{Collection: collection, UserID: userID}.Where(models.FieldTripID, tripID)
		docs, err := w.remote.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// ── document codec ───────────────────────────────────────────────────────────

// payloadOf turns an entity into the plaintext document written remotely:
// the local back-reference is dropped and the owner id added.
func payloadOf(entity any, userID string) (models.Document, error) {
	doc, err := models.ToDocument(entity)
	if err != nil {
		return nil, err
	}
	delete(doc, "remoteDocId")
	doc[models.FieldUserID] = userID
	return doc, nil
}

// decodeRemote decrypts a remote document into dst. Sensitive fields come
// back as strings even when an older writer stored them as numbers.
func decodeRemote(ctx context.Context, engine crypto.Engine, doc models.RemoteDocument, dst any) error {
	plain := engine.DecryptObject(ctx, doc.Collection, doc.Data).Clone()
	scalars, _ := crypto.EncryptedFields(doc.Collection)
	for _, field := range scalars {
		switch v := plain[field].(type) {
		case nil, string:
		case float64, bool, int64, int:
			plain[field] = models.LocalIDString(v)
		}
	}
	if err := models.FromDocument(plain, dst); err != nil {
		return fmt.Errorf("decode %s document %s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}
