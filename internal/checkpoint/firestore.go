package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

const checkpointsCollection = "checkpoints"

// FirestoreStore writes checkpoints under {collection}/{runID}/checkpoints/{step}.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore stores checkpoints below the run documents of collection.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (f *FirestoreStore) checkpoints(runID string) *firestore.CollectionRef {
	return f.client.Collection(f.collection).Doc(runID).Collection(checkpointsCollection)
}

func (f *FirestoreStore) Save(ctx context.Context, cp Checkpoint) error {
	docID := fmt.Sprintf("%03d", cp.Step)
	if _, err := f.checkpoints(cp.RunID).Doc(docID).Set(ctx, cp); err != nil {
		return fmt.Errorf("failed to write checkpoint to firestore: %w", err)
	}
	return nil
}

func (f *FirestoreStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	iter := f.checkpoints(runID).OrderBy("step", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to query latest checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := doc.DataTo(&cp); err != nil {
		return Checkpoint{}, fmt.Errorf("failed to decode checkpoint %s: %w", doc.Ref.ID, err)
	}
	return cp, nil
}

func (f *FirestoreStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	iter := f.checkpoints(runID).OrderBy("step", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []Checkpoint
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list checkpoints: %w", err)
		}
		var cp Checkpoint
		if err := doc.DataTo(&cp); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", doc.Ref.ID, err)
		}
		out = append(out, cp)
	}
	return out, nil
}

// Clear deletes the run's checkpoint documents. The run document itself stays.
func (f *FirestoreStore) Clear(ctx context.Context, runID string) error {
	refs, err := f.checkpoints(runID).DocumentRefs(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints for deletion: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}
	batch := f.client.Batch()
	for _, ref := range refs {
		batch.Delete(ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	return nil
}
