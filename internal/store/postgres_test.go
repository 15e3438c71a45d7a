package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholium/extract-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func runColumns() []string {
	return []string{"id", "paper", "status", "result", "error", "created_at", "updated_at"}
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.PaperMeta{ID: "paper-1", Title: "A Study"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, "paper-1", run.Paper.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	paperJSON, err := json.Marshal(model.PaperMeta{ID: "paper-1", Title: "A Study", Pages: 9})
	require.NoError(t, err)
	resultJSON, err := json.Marshal(&model.ExtractionResult{
		Paper:    model.PaperMeta{ID: "paper-1"},
		Elements: []model.ExtractedElement{{Type: model.ElementClaim, Text: "we propose", Status: model.StatusVerified}},
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, paper, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns()).
			AddRow("run-1", paperJSON, model.RunStatusComplete, resultJSON, "", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "A Study", run.Paper.Title)
	require.NotNil(t, run.Result)
	require.Len(t, run.Result.Elements, 1)
	assert.Equal(t, "we propose", run.Result.Elements[0].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NullResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	paperJSON, err := json.Marshal(model.PaperMeta{ID: "paper-1"})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, paper, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-2").
		WillReturnRows(pgxmock.NewRows(runColumns()).
			AddRow("run-2", paperJSON, model.RunStatusQueued, []byte(nil), "", now, now))

	run, err := s.GetRun(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Nil(t, run.Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, paper, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("extracting", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRunStatus(context.Background(), "run-1", model.RunStatusExtracting)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("complete", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result = \$1, status = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRunResult(context.Background(), "run-1", &model.ExtractionResult{
		Paper: model.PaperMeta{ID: "paper-1"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkRunFailed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, error = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("failed", "upstream unavailable", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkRunFailed(context.Background(), "run-1", "upstream unavailable")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	paperJSON, err := json.Marshal(model.PaperMeta{ID: "paper-a"})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM runs WHERE true AND status = \$1 AND paper->>'id' = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("failed", "paper-a", 10).
		WillReturnRows(pgxmock.NewRows(runColumns()).
			AddRow("run-1", paperJSON, model.RunStatusFailed, []byte(nil), "timeout", now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status:  model.RunStatusFailed,
		PaperID: "paper-a",
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "timeout", runs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM runs WHERE true ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(runColumns()))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
