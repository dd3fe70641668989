package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Job описывает заказ, опубликованный клиентом.
type Job struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	ClientID    uuid.UUID      `db:"client_id" json:"clientId"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Category    string         `db:"category" json:"category"`
	Budget      float64        `db:"budget" json:"budget"`
	Skills      pq.StringArray `db:"skills" json:"skills"`
	Deadline    *time.Time     `db:"deadline" json:"deadline,omitempty"`
	JobType     *string        `db:"job_type" json:"jobType,omitempty"`
	Experience  *string        `db:"experience" json:"experience,omitempty"`
	Duration    *string        `db:"duration" json:"duration,omitempty"`
	Location    *string        `db:"location" json:"location,omitempty"`
	Status      string         `db:"status" json:"status"`
	PostedAt    time.Time      `db:"posted_at" json:"postedAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`

	Client    *UserSummary `db:"-" json:"client,omitempty"`
	Proposals []Proposal   `db:"-" json:"proposals,omitempty"`
}

// JobFilter параметры выборки ленты заказов.
type JobFilter struct {
	Category  string
	Status    string
	Search    string
	BudgetMin *float64
	BudgetMax *float64
	Skills    []string
	Limit     int
	Offset    int
}

// JobPatch разрешённые для изменения поля заказа. nil означает «не менять».
type JobPatch struct {
	Title       *string
	Description *string
	Category    *string
	Budget      *float64
	Skills      []string
	Deadline    *time.Time
	JobType     *string
	Experience  *string
	Duration    *string
	Location    *string
}

// IsEmpty сообщает, что в патче нет ни одного поля.
func (p JobPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Budget == nil &&
		p.Skills == nil && p.Deadline == nil && p.JobType == nil && p.Experience == nil &&
		p.Duration == nil && p.Location == nil
}

// Pagination метаданные страницы.
type Pagination struct {
	Total   int `json:"total"`
	Pages   int `json:"pages"`
	Current int `json:"current"`
	Limit   int `json:"limit"`
}

// JobPage страница ленты заказов.
type JobPage struct {
	Jobs       []Job      `json:"jobs"`
	Pagination Pagination `json:"pagination"`
}
