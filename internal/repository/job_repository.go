package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

// ErrJobNotFound возвращается, когда заказ не найден.
var ErrJobNotFound = errors.New("job not found")

const jobSelect = `
	SELECT j.id, j.client_id, j.title, j.description, j.category, j.budget, j.skills, j.deadline,
		j.job_type, j.experience, j.duration, j.location, j.status, j.posted_at, j.updated_at,
		u.name AS client_name, u.image AS client_image
	FROM jobs j
	JOIN users u ON u.id = j.client_id
`

const jobReturning = `id, client_id, title, description, category, budget, skills, deadline,
	job_type, experience, duration, location, status, posted_at, updated_at`

// updatedJobSelect дочитывает карточку клиента к строке из UPDATE ... RETURNING.
func updatedJobSelect(update string) string {
	return `
	WITH j AS (` + update + ` RETURNING ` + jobReturning + `)
	SELECT j.*, u.name AS client_name, u.image AS client_image
	FROM j
	JOIN users u ON u.id = j.client_id`
}

// jobRow заказ вместе с карточкой клиента.
type jobRow struct {
	models.Job
	ClientName  string  `db:"client_name"`
	ClientImage *string `db:"client_image"`
}

func (r jobRow) toModel() models.Job {
	job := r.Job
	job.Client = &models.UserSummary{ID: job.ClientID, Name: r.ClientName, Image: r.ClientImage}
	return job
}

func jobRowsToModels(rows []jobRow) []models.Job {
	jobs := make([]models.Job, len(rows))
	for i, row := range rows {
		jobs[i] = row.toModel()
	}
	return jobs
}

// JobRepository отвечает за работу с заказами.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository создаёт экземпляр репозитория.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create сохраняет заказ и заполняет серверные поля.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, client_id, title, description, category, budget, skills, deadline,
			job_type, experience, duration, location, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING posted_at, updated_at
	`

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if err := common.Executor(ctx, r.db).QueryRowxContext(
		ctx, query,
		job.ID, job.ClientID, job.Title, job.Description, job.Category, job.Budget, pq.Array([]string(job.Skills)),
		job.Deadline, job.JobType, job.Experience, job.Duration, job.Location, job.Status,
	).Scan(&job.PostedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("job repository: create %w", err)
	}

	return nil
}

// GetByID возвращает заказ с карточкой клиента.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var row jobRow
	if err := common.Executor(ctx, r.db).GetContext(ctx, &row, jobSelect+` WHERE j.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: get by id %w", err)
	}

	job := row.toModel()
	return &job, nil
}

// GetForUpdate читает заказ и блокирует строку до конца транзакции.
func (r *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	query := `SELECT ` + jobReturning + ` FROM jobs WHERE id = $1 FOR UPDATE`
	if err := common.Executor(ctx, r.db).GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: get for update %w", err)
	}
	return &job, nil
}

// List возвращает страницу заказов и общее количество подходящих записей.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filter.Category != "" {
		where = append(where, fmt.Sprintf("j.category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}

	if filter.Status != "" {
		where = append(where, fmt.Sprintf("j.status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	// Поиск без учёта регистра по заголовку или описанию
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(j.title ILIKE $%d OR j.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argIndex++
	}

	if filter.BudgetMin != nil {
		where = append(where, fmt.Sprintf("j.budget >= $%d", argIndex))
		args = append(args, *filter.BudgetMin)
		argIndex++
	}
	if filter.BudgetMax != nil {
		where = append(where, fmt.Sprintf("j.budget <= $%d", argIndex))
		args = append(args, *filter.BudgetMax)
		argIndex++
	}

	// Достаточно пересечения хотя бы по одному навыку
	if len(filter.Skills) > 0 {
		where = append(where, fmt.Sprintf("j.skills && $%d", argIndex))
		args = append(args, pq.Array(filter.Skills))
		argIndex++
	}

	clause := " WHERE " + strings.Join(where, " AND ")
	exec := common.Executor(ctx, r.db)

	var total int
	if err := exec.GetContext(ctx, &total, `SELECT COUNT(*) FROM jobs j`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("job repository: count %w", err)
	}

	query := jobSelect + clause + fmt.Sprintf(" ORDER BY j.posted_at DESC, j.id LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	var rows []jobRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("job repository: list %w", err)
	}

	return jobRowsToModels(rows), total, nil
}

// Update применяет разрешённые поля патча и возвращает обновлённый заказ.
func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, patch models.JobPatch) (*models.Job, error) {
	sets := []string{}
	args := []interface{}{id}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Budget != nil {
		add("budget", *patch.Budget)
	}
	if patch.Skills != nil {
		add("skills", pq.Array(patch.Skills))
	}
	if patch.Deadline != nil {
		add("deadline", *patch.Deadline)
	}
	if patch.JobType != nil {
		add("job_type", *patch.JobType)
	}
	if patch.Experience != nil {
		add("experience", *patch.Experience)
	}
	if patch.Duration != nil {
		add("duration", *patch.Duration)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $1`
	result, err := common.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("job repository: update %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrJobNotFound
	}

	return r.GetByID(ctx, id)
}

// Delete удаляет заказ вместе с откликами.
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := common.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("job repository: delete %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("job repository: delete rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrJobNotFound
	}

	return nil
}

// SetStatus безусловно выставляет статус.
func (r *JobRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Job, error) {
	var row jobRow
	query := updatedJobSelect(`UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`)
	if err := common.Executor(ctx, r.db).GetContext(ctx, &row, query, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: set status %w", err)
	}
	job := row.toModel()
	return &job, nil
}

// TransitionStatus меняет статус только если текущий равен from.
// Если условие не выполнено, возвращает common.ErrNoRowsChanged.
func (r *JobRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Job, error) {
	var row jobRow
	query := updatedJobSelect(`UPDATE jobs SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`)
	if err := common.Executor(ctx, r.db).GetContext(ctx, &row, query, id, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoRowsChanged
		}
		return nil, fmt.Errorf("job repository: transition status %w", err)
	}
	job := row.toModel()
	return &job, nil
}

// ListByFreelancer возвращает заказы, на которые фрилансер откликался.
func (r *JobRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Job, error) {
	query := jobSelect + `
		WHERE EXISTS (SELECT 1 FROM proposals p WHERE p.job_id = j.id AND p.freelancer_id = $1)
		ORDER BY j.posted_at DESC
	`

	var rows []jobRow
	if err := common.Executor(ctx, r.db).SelectContext(ctx, &rows, query, freelancerID); err != nil {
		return nil, fmt.Errorf("job repository: list by freelancer %w", err)
	}

	return jobRowsToModels(rows), nil
}

// escapeLike экранирует спецсимволы шаблона ILIKE.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
