package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabantay/kabantay-api/internal/domain/repository"
)

type record struct {
	Email     string `json:"email"`
	IsDeleted bool   `json:"isDeleted"`
	Town      string `json:"town,omitempty"`
}

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", record{Email: "a@b.c"}))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.ID())

	var got record
	require.NoError(t, doc.DataTo(&got))
	assert.Equal(t, "a@b.c", got.Email)
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "users", "nope")
	assert.True(t, errors.Is(err, repository.ErrDocNotFound))
}

func TestUpdateMergesFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", record{Email: "a@b.c", Town: "Taal"}))
	require.NoError(t, s.Update(ctx, "users", "u1", map[string]any{"email": "new@b.c"}))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	var got record
	require.NoError(t, doc.DataTo(&got))
	assert.Equal(t, "new@b.c", got.Email)
	assert.Equal(t, "Taal", got.Town, "untouched fields survive the merge")

	err = s.Update(ctx, "users", "missing", map[string]any{"email": "x"})
	assert.True(t, errors.Is(err, repository.ErrDocNotFound))
}

func TestQueryFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", record{Email: "a@b.c", IsDeleted: false}))
	require.NoError(t, s.Set(ctx, "users", "u2", record{Email: "a@b.c", IsDeleted: true}))
	require.NoError(t, s.Set(ctx, "users", "u3", record{Email: "z@b.c", IsDeleted: false}))

	docs, err := s.Query(ctx, "users",
		repository.Filter{Field: "email", Value: "a@b.c"},
		repository.Filter{Field: "isDeleted", Value: false},
	)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0].ID())

	docs, err = s.Query(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, docs, 3, "no filters matches everything")

	docs, err = s.Query(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestApplyBatch(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "old", record{Email: "old@b.c"}))

	err := s.ApplyBatch(ctx, []repository.Write{
		{Collection: "users", ID: "u1", Data: record{Email: "a@b.c"}},
		{Collection: "addresses", ID: "a1", Data: map[string]any{"town": "Taal"}},
		{Collection: "users", ID: "old", Delete: true},
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "users", "u1")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "addresses", "a1")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "users", "old")
	assert.True(t, errors.Is(err, repository.ErrDocNotFound))
}

func TestApplyBatchUnmarshalableLeavesStoreUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.ApplyBatch(ctx, []repository.Write{
		{Collection: "users", ID: "u1", Data: record{Email: "a@b.c"}},
		{Collection: "users", ID: "u2", Data: make(chan int)},
	})
	require.Error(t, err)

	_, err = s.Get(ctx, "users", "u1")
	assert.True(t, errors.Is(err, repository.ErrDocNotFound), "no write from a failed batch is visible")
}

func TestRunAtomicCommitsStagedWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", record{Email: "a@b.c"}))

	err := s.RunAtomic(ctx, func(tx repository.Txn) error {
		doc, err := tx.Get("users", "u1")
		if err != nil {
			return err
		}
		var got record
		if err := doc.DataTo(&got); err != nil {
			return err
		}
		got.Email = "moved@b.c"
		tx.Set("deletedUsers", "u1", got)
		tx.Delete("users", "u1")

		// Staged writes are invisible until commit.
		if _, err := tx.Get("deletedUsers", "u1"); !errors.Is(err, repository.ErrDocNotFound) {
			return errors.New("staged write leaked into reads")
		}
		return nil
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "users", "u1")
	assert.True(t, errors.Is(err, repository.ErrDocNotFound))
	doc, err := s.Get(ctx, "deletedUsers", "u1")
	require.NoError(t, err)
	var got record
	require.NoError(t, doc.DataTo(&got))
	assert.Equal(t, "moved@b.c", got.Email)
}

func TestRunAtomicRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunAtomic(ctx, func(tx repository.Txn) error {
		tx.Set("users", "u1", record{Email: "a@b.c"})
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	_, err = s.Get(ctx, "users", "u1")
	assert.True(t, errors.Is(err, repository.ErrDocNotFound), "staged writes are dropped when fn fails")
}
