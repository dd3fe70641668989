package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlx.NewDb(sqlDB, "postgres"), mock
}

var jobRowColumns = []string{
	"id", "client_id", "title", "description", "category", "budget", "skills", "deadline",
	"job_type", "experience", "duration", "location", "status", "posted_at", "updated_at",
	"client_name", "client_image",
}

func TestJobRepository_ListBuildsFiltersAndPage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	budgetMin := 100.0
	filter := models.JobFilter{
		Category:  "web",
		Search:    "site",
		BudgetMin: &budgetMin,
		Skills:    []string{"js", "go"},
		Limit:     10,
		Offset:    10,
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM jobs j WHERE 1=1 AND j.category = \$1 AND \(j.title ILIKE \$2 OR j.description ILIKE \$2\) AND j.budget >= \$3 AND j.skills && \$4`).
		WithArgs("web", "%site%", 100.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(15))

	clientID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(jobRowColumns)
	for i := 0; i < 5; i++ {
		rows.AddRow(uuid.New().String(), clientID.String(), "Build site", "desc", "web", 500.0, "{js}", nil,
			nil, nil, nil, nil, models.JobStatusOpen, now, now, "Client", nil)
	}
	mock.ExpectQuery(`ORDER BY j.posted_at DESC, j.id LIMIT \$5 OFFSET \$6`).
		WithArgs("web", "%site%", 100.0, sqlmock.AnyArg(), 10, 10).
		WillReturnRows(rows)

	jobs, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 15, total)
	require.Len(t, jobs, 5)
	assert.Equal(t, pq.StringArray{"js"}, jobs[0].Skills)
	require.NotNil(t, jobs[0].Client)
	assert.Equal(t, clientID, jobs[0].Client.ID)
	assert.Equal(t, "Client", jobs[0].Client.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_ListEscapesSearchWildcards(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery(`SELECT COUNT`).WithArgs(`%100\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM jobs j`).WithArgs(`%100\%%`, 10, 0).
		WillReturnRows(sqlmock.NewRows(jobRowColumns))

	jobs, total, err := repo.List(context.Background(), models.JobFilter{Search: "100%", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, jobs)
}

func TestJobRepository_TransitionStatusGuardMiss(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE jobs SET status = \$3, updated_at = NOW\(\) WHERE id = \$1 AND status = \$2`).
		WithArgs(id, models.JobStatusOpen, models.JobStatusInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.TransitionStatus(context.Background(), id, models.JobStatusOpen, models.JobStatusInProgress)
	assert.ErrorIs(t, err, common.ErrNoRowsChanged)
}

func TestJobRepository_StatusChangesCarryClient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	id := uuid.New()
	clientID := uuid.New()
	now := time.Now()

	row := func(status string) *sqlmock.Rows {
		return sqlmock.NewRows(jobRowColumns).AddRow(id.String(), clientID.String(), "Build site", "desc", "web", 500.0,
			"{js}", nil, nil, nil, nil, nil, status, now, now, "Client", nil)
	}

	mock.ExpectQuery(`WITH j AS \(UPDATE jobs SET status = \$2, updated_at = NOW\(\) WHERE id = \$1 RETURNING .+\) SELECT j\.\*, u\.name AS client_name`).
		WithArgs(id, models.JobStatusCancelled).
		WillReturnRows(row(models.JobStatusCancelled))

	job, err := repo.SetStatus(context.Background(), id, models.JobStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, job.Status)
	require.NotNil(t, job.Client)
	assert.Equal(t, clientID, job.Client.ID)
	assert.Equal(t, "Client", job.Client.Name)

	mock.ExpectQuery(`WITH j AS \(UPDATE jobs SET status = \$3`).
		WithArgs(id, models.JobStatusOpen, models.JobStatusInProgress).
		WillReturnRows(row(models.JobStatusInProgress))

	job, err = repo.TransitionStatus(context.Background(), id, models.JobStatusOpen, models.JobStatusInProgress)
	require.NoError(t, err)
	require.NotNil(t, job.Client)
	assert.Equal(t, "Client", job.Client.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_UpdateWritesOnlyPatchedColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	id := uuid.New()
	title := "New title"
	budget := 750.0

	mock.ExpectExec(`UPDATE jobs SET title = \$2, budget = \$3, updated_at = NOW\(\) WHERE id = \$1`).
		WithArgs(id, title, budget).
		WillReturnResult(sqlmock.NewResult(0, 1))
	now := time.Now()
	mock.ExpectQuery(`WHERE j.id = \$1`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(id.String(), uuid.New().String(), title, "d", "web",
			budget, "{}", nil, nil, nil, nil, nil, models.JobStatusOpen, now, now, "Client", nil))

	job, err := repo.Update(context.Background(), id, models.JobPatch{Title: &title, Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, title, job.Title)
	assert.Equal(t, budget, job.Budget)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProposalRepository(db)

	mock.ExpectQuery(`INSERT INTO proposals`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "proposals_job_freelancer_key"})

	err := repo.Create(context.Background(), &models.Proposal{
		JobID:        uuid.New(),
		FreelancerID: uuid.New(),
		CoverLetter:  "hi",
		Amount:       100,
		Status:       models.ProposalStatusPending,
	})
	assert.ErrorIs(t, err, ErrDuplicateProposal)
}

func TestPaymentRepository_SettleOnlyHeldPayments(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db, NewProposalRepository(db))
	id := uuid.New()

	mock.ExpectQuery(`WHERE id = \$1 AND type = 'ESCROW' AND status = 'PENDING'`).
		WithArgs(id, models.PaymentTypeRelease, models.PaymentStatusCompleted, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Settle(context.Background(), id, models.PaymentTypeRelease, models.PaymentStatusCompleted, nil)
	assert.ErrorIs(t, err, common.ErrNoRowsChanged)
}

func TestUserRepository_AdjustConnectsRejectsOverdraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`connects \+ \$2 >= 0`).WithArgs(id, -5).
		WillReturnRows(sqlmock.NewRows([]string{"connects"}))

	_, err := repo.AdjustConnects(context.Background(), id, -5)
	assert.ErrorIs(t, err, common.ErrNoRowsChanged)
}

func TestUserRepository_AdjustConnectsCheckViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE users`).WithArgs(id, -3).
		WillReturnError(&pq.Error{Code: "23514", Constraint: "users_connects_check"})

	_, err := repo.AdjustConnects(context.Background(), id, -3)
	assert.ErrorIs(t, err, common.ErrNoRowsChanged)

	mock.ExpectQuery(`UPDATE users`).WithArgs(id, -3).
		WillReturnError(&pq.Error{Code: "08006"})

	_, err = repo.AdjustConnects(context.Background(), id, -3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNoRowsChanged)
}

func TestNotificationRepository_MarkReadForeignIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(`UPDATE notifications SET read = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestIdempotencyRepository_Claim(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)
	userID := uuid.New()
	resourceID := uuid.New()

	t.Run("first call claims the key", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO idempotency_keys`).
			WithArgs(userID, "purchase", "k1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		claimed, existing, err := repo.Claim(context.Background(), userID, "purchase", "k1")
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.Nil(t, existing)
	})

	t.Run("replay returns the stored resource", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO idempotency_keys`).
			WithArgs(userID, "purchase", "k1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT resource_id FROM idempotency_keys`).
			WithArgs(userID, "purchase", "k1").
			WillReturnRows(sqlmock.NewRows([]string{"resource_id"}).AddRow(resourceID.String()))

		claimed, existing, err := repo.Claim(context.Background(), userID, "purchase", "k1")
		require.NoError(t, err)
		assert.False(t, claimed)
		require.NotNil(t, existing)
		assert.Equal(t, resourceID, *existing)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepository_HasActiveForJob(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContractRepository(db)
	jobID := uuid.New()

	mock.ExpectQuery(`JOIN proposals p ON p.id = c.proposal_id`).WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := repo.HasActiveForJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, active)
}
