package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/fundpilot/outreach/internal/outreach"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func docRow(t *testing.T, doc any) *pgxmock.Rows {
	t.Helper()
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	return pgxmock.NewRows([]string{"doc"}).AddRow(payload)
}

func TestUpsertTarget(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO targets").
		WithArgs("t1", "ws-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertTarget(context.Background(), outreach.Target{
		ID: "t1", Workspace: "ws-1", Name: "Fund One",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTarget_RequiresID(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	require.Error(t, store.UpsertTarget(context.Background(), outreach.Target{}))
}

func TestGetTarget(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	want := outreach.Target{ID: "t1", Name: "Fund One", Stage: outreach.StageQualified}
	mock.ExpectQuery("SELECT doc FROM targets").
		WithArgs("t1").
		WillReturnRows(docRow(t, want))

	got, err := store.GetTarget(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Stage, got.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTarget_NotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT doc FROM targets").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetTarget(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTargets_ScopedByWorkspace(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	a, err := json.Marshal(outreach.Target{ID: "a", Workspace: "ws-1"})
	require.NoError(t, err)
	b, err := json.Marshal(outreach.Target{ID: "b", Workspace: "ws-1"})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT doc FROM targets").
		WithArgs("ws-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(a).AddRow(b))

	targets, err := store.ListTargets(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "a", targets[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTaskResult(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO task_results").
		WithArgs("tr1", "run-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.AppendTaskResult(context.Background(), outreach.TaskResult{
		ID: "tr1", RunID: "run-1", Name: "ResearchAgent", Status: outreach.TaskCompleted,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubmissionEvents_MostRecentFirst(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	newer, err := json.Marshal(outreach.SubmissionEvent{ID: "ev-2", TargetID: "t1"})
	require.NoError(t, err)
	older, err := json.Marshal(outreach.SubmissionEvent{ID: "ev-1", TargetID: "t1"})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT doc FROM submission_events").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(newer).AddRow(older))

	events, err := store.ListSubmissionEvents(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "ev-2", events[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS|CREATE INDEX IF NOT EXISTS").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_IsNoop(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	require.NoError(t, store.Persist(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
