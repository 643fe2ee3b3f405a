// Package firestore implements the document store contract on Google
// Cloud Firestore. Atomic batches and read-then-write sequences map to
// Firestore transactions, which retry on contention and commit all
// staged writes together.
package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kabantay/kabantay-api/internal/domain/repository"
)

type DocStore struct {
	client *firestore.Client
}

func NewDocStore(client *firestore.Client) *DocStore {
	return &DocStore{client: client}
}

type document struct {
	snap *firestore.DocumentSnapshot
}

func (d document) ID() string            { return d.snap.Ref.ID }
func (d document) DataTo(dest any) error { return d.snap.DataTo(dest) }

func (s *DocStore) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrDocNotFound
		}
		return nil, err
	}
	return document{snap: snap}, nil
}

func (s *DocStore) Query(ctx context.Context, collection string, filters ...repository.Filter) ([]repository.Document, error) {
	snaps, err := s.buildQuery(collection, filters).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return wrapSnaps(snaps), nil
}

func (s *DocStore) Set(ctx context.Context, collection, id string, data any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data)
	return err
}

func (s *DocStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	ref := s.client.Collection(collection).Doc(id)
	// Merge requires the document to exist; surface a not-found the
	// same way Get does.
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return repository.ErrDocNotFound
		}
		return err
	}
	_, err := ref.Set(ctx, fields, firestore.MergeAll)
	return err
}

func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

func (s *DocStore) ApplyBatch(ctx context.Context, writes []repository.Write) error {
	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for _, w := range writes {
			ref := s.client.Collection(w.Collection).Doc(w.ID)
			if w.Delete {
				if err := tx.Delete(ref); err != nil {
					return err
				}
				continue
			}
			if err := tx.Set(ref, w.Data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DocStore) RunAtomic(ctx context.Context, fn func(tx repository.Txn) error) error {
	return s.client.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(&txn{store: s, ctx: txCtx, tx: tx})
	})
}

type txn struct {
	store *DocStore
	ctx   context.Context
	tx    *firestore.Transaction
}

func (t *txn) Get(collection, id string) (repository.Document, error) {
	snap, err := t.tx.Get(t.store.client.Collection(collection).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrDocNotFound
		}
		return nil, err
	}
	return document{snap: snap}, nil
}

func (t *txn) Query(collection string, filters ...repository.Filter) ([]repository.Document, error) {
	snaps, err := t.tx.Documents(t.store.buildQuery(collection, filters)).GetAll()
	if err != nil {
		return nil, err
	}
	return wrapSnaps(snaps), nil
}

func (t *txn) Set(collection, id string, data any) {
	_ = t.tx.Set(t.store.client.Collection(collection).Doc(id), data)
}

func (t *txn) Delete(collection, id string) {
	_ = t.tx.Delete(t.store.client.Collection(collection).Doc(id))
}

func (s *DocStore) buildQuery(collection string, filters []repository.Filter) firestore.Query {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}
	return q
}

func wrapSnaps(snaps []*firestore.DocumentSnapshot) []repository.Document {
	docs := make([]repository.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, document{snap: snap})
	}
	return docs
}

var _ repository.DocumentStore = (*DocStore)(nil)
