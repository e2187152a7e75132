//go:build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/store/storetest"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

func connectTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, url)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	_, err = db.pool.Exec(ctx,
		`TRUNCATE questions, sessions, live_turns, archived_transcripts, question_summaries`)
	require.NoError(t, err)
	return db
}

func TestPostgres_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db := connectTestDB(t)
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}

func TestPostgres_MigrateIsIdempotent(t *testing.T) {
	db := connectTestDB(t)
	defer db.Close()
	require.NoError(t, db.Migrate(context.Background()))
}

// Two pools on one database behave like two processes: an append racing a
// resolution is either archived with it or rejected, never dropped.
func TestPostgres_AppendRacingResolveIsNeverLost(t *testing.T) {
	resolver := connectTestDB(t)
	defer resolver.Close()
	appender, err := Connect(context.Background(), os.Getenv("TEST_DATABASE_URL"))
	require.NoError(t, err)
	defer appender.Close()

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("race-%d", i)
		require.NoError(t, resolver.CreateSession(ctx, storetest.NewSessionRecord(id)))
		now := time.Now().UTC()
		require.NoError(t, resolver.AppendTurn(ctx, id, "q1", types.Turn{Sender: types.SenderCandidate, Text: "first", Timestamp: now}))

		advanced := storetest.NewSessionRecord(id).Session
		advanced.CurrentIndex = 0
		advanced.ActiveQuestionID = "q2"

		var wg sync.WaitGroup
		var appendErr, resolveErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			appendErr = appender.AppendTurn(ctx, id, "q1", types.Turn{Sender: types.SenderCandidate, Text: "late", Timestamp: now.Add(time.Second)})
		}()
		go func() {
			defer wg.Done()
			_, resolveErr = resolver.Resolve(ctx, store.Resolution{
				Session:    advanced,
				QuestionID: "q1",
				Summary:    types.QuestionSummary{QuestionID: "q1", Outcome: types.OutcomeAnswered, Bullets: []string{"a", "b", "c"}, Confidence: 0.6, Timestamp: now},
			})
		}()
		wg.Wait()
		require.NoError(t, resolveErr)

		archived, err := resolver.ArchivedTurns(ctx, id, "q1")
		require.NoError(t, err)
		live, err := resolver.LiveTurns(ctx, id, "q1")
		require.NoError(t, err)
		assert.Empty(t, live, "iteration %d", i)

		switch {
		case appendErr == nil:
			require.Len(t, archived, 2, "iteration %d", i)
			assert.Equal(t, "late", archived[1].Text)
		case errors.Is(appendErr, store.ErrAlreadyArchived):
			require.Len(t, archived, 1, "iteration %d", i)
		default:
			t.Fatalf("iteration %d: unexpected append error: %v", i, appendErr)
		}
	}
}
