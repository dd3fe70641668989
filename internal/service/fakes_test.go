package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

func init() {
	logger.Silence()
}

// memStore хранилище в памяти. Транзакция делает снимок всех таблиц и
// восстанавливает его при ошибке, поэтому тесты видят настоящий откат.
type memStore struct {
	users         map[uuid.UUID]models.User
	jobs          map[uuid.UUID]models.Job
	proposals     map[uuid.UUID]models.Proposal
	contracts     map[uuid.UUID]models.Contract
	payments      map[uuid.UUID]models.Payment
	connectTxs    map[uuid.UUID]models.ConnectTransaction
	grants        map[uuid.UUID]models.ConnectGrant
	notifications map[uuid.UUID]models.Notification
	idempotency   map[string]*uuid.UUID

	// failures ошибки, которые вернёт метод с данным именем, например "contracts.Create"
	failures map[string]error
	depth    int
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[uuid.UUID]models.User{},
		jobs:          map[uuid.UUID]models.Job{},
		proposals:     map[uuid.UUID]models.Proposal{},
		contracts:     map[uuid.UUID]models.Contract{},
		payments:      map[uuid.UUID]models.Payment{},
		connectTxs:    map[uuid.UUID]models.ConnectTransaction{},
		grants:        map[uuid.UUID]models.ConnectGrant{},
		notifications: map[uuid.UUID]models.Notification{},
		idempotency:   map[string]*uuid.UUID{},
		failures:      map[string]error{},
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memSnapshot struct {
	users         map[uuid.UUID]models.User
	jobs          map[uuid.UUID]models.Job
	proposals     map[uuid.UUID]models.Proposal
	contracts     map[uuid.UUID]models.Contract
	payments      map[uuid.UUID]models.Payment
	connectTxs    map[uuid.UUID]models.ConnectTransaction
	grants        map[uuid.UUID]models.ConnectGrant
	notifications map[uuid.UUID]models.Notification
	idempotency   map[string]*uuid.UUID
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		users:         cloneMap(s.users),
		jobs:          cloneMap(s.jobs),
		proposals:     cloneMap(s.proposals),
		contracts:     cloneMap(s.contracts),
		payments:      cloneMap(s.payments),
		connectTxs:    cloneMap(s.connectTxs),
		grants:        cloneMap(s.grants),
		notifications: cloneMap(s.notifications),
		idempotency:   cloneMap(s.idempotency),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.users = snap.users
	s.jobs = snap.jobs
	s.proposals = snap.proposals
	s.contracts = snap.contracts
	s.payments = snap.payments
	s.connectTxs = snap.connectTxs
	s.grants = snap.grants
	s.notifications = snap.notifications
	s.idempotency = snap.idempotency
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.depth > 0 {
		return fn(ctx)
	}

	snap := s.snapshot()
	s.depth++
	defer func() {
		s.depth--
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(ctx)
}

func (s *memStore) fail(name string) error {
	return s.failures[name]
}

// tick возвращает монотонно растущее время, чтобы сортировка по дате была детерминированной.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addUser(role string, connects int) models.User {
	u := models.User{
		ID:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		Name:     strings.ToLower(role) + " user",
		Role:     role,
		Connects: connects,
		IsActive: true,
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) summary(id uuid.UUID) *models.UserSummary {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return u.Summary()
}

func (s *memStore) userNotifications(userID uuid.UUID) []models.Notification {
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// --- users ---

type memUsers struct{ *memStore }

func (r memUsers) Create(ctx context.Context, user *models.User) error {
	if err := r.fail("users.Create"); err != nil {
		return err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.ID = uuid.New()
	user.IsActive = true
	user.CreatedAt = r.tick()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetConnects(ctx context.Context, id uuid.UUID) (int, error) {
	u, ok := r.users[id]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	return u.Connects, nil
}

func (r memUsers) AdjustConnects(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	if err := r.fail("users.AdjustConnects"); err != nil {
		return 0, err
	}
	u, ok := r.users[id]
	if !ok || u.Connects+delta < 0 {
		return 0, common.ErrNoRowsChanged
	}
	u.Connects += delta
	r.users[id] = u
	return u.Connects, nil
}

// --- jobs ---

type memJobs struct{ *memStore }

func (r memJobs) withClient(job models.Job) *models.Job {
	job.Client = r.summary(job.ClientID)
	return &job
}

func (r memJobs) Create(ctx context.Context, job *models.Job) error {
	if err := r.fail("jobs.Create"); err != nil {
		return err
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.PostedAt = r.tick()
	job.UpdatedAt = job.PostedAt
	r.jobs[job.ID] = *job
	return nil
}

func (r memJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return r.withClient(job), nil
}

func (r memJobs) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return &job, nil
}

func (r memJobs) List(ctx context.Context, f models.JobFilter) ([]models.Job, int, error) {
	if err := r.fail("jobs.List"); err != nil {
		return nil, 0, err
	}

	var matched []models.Job
	for _, job := range r.jobs {
		if f.Category != "" && job.Category != f.Category {
			continue
		}
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(job.Title), q) && !strings.Contains(strings.ToLower(job.Description), q) {
				continue
			}
		}
		if f.BudgetMin != nil && job.Budget < *f.BudgetMin {
			continue
		}
		if f.BudgetMax != nil && job.Budget > *f.BudgetMax {
			continue
		}
		if len(f.Skills) > 0 && !overlaps(job.Skills, f.Skills) {
			continue
		}
		matched = append(matched, *r.withClient(job))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].PostedAt.After(matched[j].PostedAt) })

	total := len(matched)
	if f.Offset >= total {
		return []models.Job{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func overlaps(have pq.StringArray, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (r memJobs) Update(ctx context.Context, id uuid.UUID, patch models.JobPatch) (*models.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	if patch.Title != nil {
		job.Title = *patch.Title
	}
	if patch.Description != nil {
		job.Description = *patch.Description
	}
	if patch.Category != nil {
		job.Category = *patch.Category
	}
	if patch.Budget != nil {
		job.Budget = *patch.Budget
	}
	if patch.Skills != nil {
		job.Skills = pq.StringArray(patch.Skills)
	}
	if patch.Deadline != nil {
		job.Deadline = patch.Deadline
	}
	if patch.Location != nil {
		job.Location = patch.Location
	}
	job.UpdatedAt = r.tick()
	r.jobs[id] = job
	return r.withClient(job), nil
}

func (r memJobs) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.jobs[id]; !ok {
		return repository.ErrJobNotFound
	}
	delete(r.jobs, id)
	for pid, p := range r.proposals {
		if p.JobID == id {
			delete(r.proposals, pid)
		}
	}
	return nil
}

func (r memJobs) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	job.Status = status
	r.jobs[id] = job
	return r.withClient(job), nil
}

func (r memJobs) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Job, error) {
	if err := r.fail("jobs.TransitionStatus"); err != nil {
		return nil, err
	}
	job, ok := r.jobs[id]
	if !ok || job.Status != from {
		return nil, common.ErrNoRowsChanged
	}
	job.Status = to
	r.jobs[id] = job
	return r.withClient(job), nil
}

func (r memJobs) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Job, error) {
	seen := map[uuid.UUID]bool{}
	var out []models.Job
	for _, p := range r.proposals {
		if p.FreelancerID != freelancerID || seen[p.JobID] {
			continue
		}
		seen[p.JobID] = true
		if job, ok := r.jobs[p.JobID]; ok {
			out = append(out, *r.withClient(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	return out, nil
}

// --- proposals ---

type memProposals struct{ *memStore }

func (r memProposals) Create(ctx context.Context, proposal *models.Proposal) error {
	if err := r.fail("proposals.Create"); err != nil {
		return err
	}
	for _, p := range r.proposals {
		if p.JobID == proposal.JobID && p.FreelancerID == proposal.FreelancerID {
			return repository.ErrDuplicateProposal
		}
	}
	if proposal.ID == uuid.Nil {
		proposal.ID = uuid.New()
	}
	proposal.CreatedAt = r.tick()
	proposal.UpdatedAt = proposal.CreatedAt
	r.proposals[proposal.ID] = *proposal
	return nil
}

func (r memProposals) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, ok := r.proposals[id]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	return &p, nil
}

func (r memProposals) GetWithJob(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, ok := r.proposals[id]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	if job, ok := r.jobs[p.JobID]; ok {
		p.Job = &job
	}
	return &p, nil
}

func (r memProposals) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Proposal, error) {
	var out []models.Proposal
	for _, p := range r.proposals {
		if p.JobID == jobID {
			p.Freelancer = r.summary(p.FreelancerID)
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProposals) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Proposal, error) {
	var out []models.Proposal
	for _, p := range r.proposals {
		if p.FreelancerID == freelancerID {
			p.Freelancer = r.summary(p.FreelancerID)
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProposals) Exists(ctx context.Context, jobID, freelancerID uuid.UUID) (bool, error) {
	if err := r.fail("proposals.Exists"); err != nil {
		return false, err
	}
	for _, p := range r.proposals {
		if p.JobID == jobID && p.FreelancerID == freelancerID {
			return true, nil
		}
	}
	return false, nil
}

func (r memProposals) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Proposal, error) {
	p, ok := r.proposals[id]
	if !ok || p.Status != from {
		return nil, common.ErrNoRowsChanged
	}
	p.Status = to
	r.proposals[id] = p
	return &p, nil
}

// --- contracts ---

type memContracts struct{ *memStore }

func (r memContracts) Create(ctx context.Context, contract *models.Contract) error {
	if err := r.fail("contracts.Create"); err != nil {
		return err
	}
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	contract.StartedAt = r.tick()
	r.contracts[contract.ID] = *contract
	return nil
}

func (r memContracts) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	c, ok := r.contracts[id]
	if !ok {
		return nil, repository.ErrContractNotFound
	}
	return &c, nil
}

func (r memContracts) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Contract, error) {
	var out []models.Contract
	for _, c := range r.contracts {
		if c.ClientID == userID || c.FreelancerID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r memContracts) HasActiveForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	for _, c := range r.contracts {
		p, ok := r.proposals[c.ProposalID]
		if ok && p.JobID == jobID && c.Status == models.ContractStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r memContracts) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Contract, error) {
	c, ok := r.contracts[id]
	if !ok || c.Status != from {
		return nil, common.ErrNoRowsChanged
	}
	c.Status = to
	ended := r.tick()
	c.EndedAt = &ended
	r.contracts[id] = c
	return &c, nil
}

// --- payments ---

type memPayments struct{ *memStore }

func (r memPayments) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.fail("payments.Create"); err != nil {
		return err
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = r.tick()
	payment.UpdatedAt = payment.CreatedAt
	r.payments[payment.ID] = *payment
	return nil
}

func (r memPayments) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	return &p, nil
}

func (r memPayments) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range r.payments {
		if p.UserID != userID {
			continue
		}
		if proposal, err := (memProposals{r.memStore}).GetWithJob(ctx, p.ProposalID); err == nil {
			p.Proposal = proposal
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memPayments) Settle(ctx context.Context, id uuid.UUID, paymentType, status string, reason *string) (*models.Payment, error) {
	if err := r.fail("payments.Settle"); err != nil {
		return nil, err
	}
	p, ok := r.payments[id]
	if !ok || !p.IsHeld() {
		return nil, common.ErrNoRowsChanged
	}
	p.Type = paymentType
	p.Status = status
	p.RefundReason = reason
	p.UpdatedAt = r.tick()
	r.payments[id] = p
	return &p, nil
}

// --- connects ---

type memConnects struct{ *memStore }

func (r memConnects) CreateTransaction(ctx context.Context, tx *models.ConnectTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.CreatedAt = r.tick()
	r.connectTxs[tx.ID] = *tx
	return nil
}

func (r memConnects) CompleteTransaction(ctx context.Context, id uuid.UUID, reference string) (*models.ConnectTransaction, error) {
	tx, ok := r.connectTxs[id]
	if !ok || tx.Status != models.ConnectTxStatusPending {
		return nil, common.ErrNoRowsChanged
	}
	completed := r.tick()
	tx.Status = models.ConnectTxStatusCompleted
	tx.TransactionID = &reference
	tx.CompletedAt = &completed
	r.connectTxs[id] = tx
	return &tx, nil
}

func (r memConnects) GetTransaction(ctx context.Context, id uuid.UUID) (*models.ConnectTransaction, error) {
	tx, ok := r.connectTxs[id]
	if !ok {
		return nil, repository.ErrConnectTransactionNotFound
	}
	return &tx, nil
}

func (r memConnects) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.ConnectTransaction, error) {
	var out []models.ConnectTransaction
	for _, tx := range r.connectTxs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memConnects) CreateGrant(ctx context.Context, grant *models.ConnectGrant) error {
	if err := r.fail("connects.CreateGrant"); err != nil {
		return err
	}
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	grant.CreatedAt = r.tick()
	r.grants[grant.ID] = *grant
	return nil
}

func (r memConnects) GetGrantByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ConnectGrant, error) {
	for _, g := range r.grants {
		if g.TransactionID != nil && *g.TransactionID == transactionID {
			return &g, nil
		}
	}
	return nil, repository.ErrConnectTransactionNotFound
}

// --- notifications ---

type memNotifications struct{ *memStore }

func (r memNotifications) Create(ctx context.Context, n *models.Notification) error {
	if err := r.fail("notifications.Create"); err != nil {
		return err
	}
	n.ID = uuid.New()
	n.CreatedAt = r.tick()
	r.notifications[n.ID] = *n
	return nil
}

func (r memNotifications) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.userNotifications(userID) {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Notification{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (r memNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, n := range r.userNotifications(userID) {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return nil, repository.ErrNotificationNotFound
	}
	n.Read = true
	r.notifications[id] = n
	return &n, nil
}

func (r memNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var changed int64
	for id, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r memNotifications) Delete(ctx context.Context, id, userID uuid.UUID) error {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotificationNotFound
	}
	delete(r.notifications, id)
	return nil
}

func (r memNotifications) DeleteAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var deleted int64
	for id, n := range r.notifications {
		if n.UserID == userID && n.Read {
			delete(r.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- idempotency ---

type memIdempotency struct{ *memStore }

func memKey(userID uuid.UUID, operation, key string) string {
	return userID.String() + "|" + operation + "|" + key
}

func (r memIdempotency) Claim(ctx context.Context, userID uuid.UUID, operation, key string) (bool, *uuid.UUID, error) {
	k := memKey(userID, operation, key)
	if existing, ok := r.idempotency[k]; ok {
		return false, existing, nil
	}
	r.idempotency[k] = nil
	return true, nil, nil
}

func (r memIdempotency) Complete(ctx context.Context, userID uuid.UUID, operation, key string, resourceID uuid.UUID) error {
	id := resourceID
	r.idempotency[memKey(userID, operation, key)] = &id
	return nil
}

// --- publisher ---

type publishedEvent struct {
	UserID uuid.UUID
	Event  string
	Data   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(userID uuid.UUID, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Event: event, Data: data})
	return nil
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// testEnv собранные сервисы поверх одного memStore.
type testEnv struct {
	store         *memStore
	publisher     *recordingPublisher
	notifications *NotificationService
	jobs          *JobService
	contracts     *ContractService
	payments      *PaymentService
}

func newTestEnv(proposalCost int) *testEnv {
	store := newMemStore()
	publisher := &recordingPublisher{}
	notifications := NewNotificationService(memNotifications{store}, publisher)

	return &testEnv{
		store:         store,
		publisher:     publisher,
		notifications: notifications,
		jobs: NewJobService(store, memJobs{store}, memProposals{store}, memContracts{store},
			memUsers{store}, notifications, proposalCost),
		contracts: NewContractService(store, memContracts{store}, memJobs{store}, notifications),
		payments:  NewPaymentService(store, memPayments{store}, memProposals{store}, memIdempotency{store}),
	}
}

func actorOf(u models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func ptr[T any](v T) *T {
	return &v
}
