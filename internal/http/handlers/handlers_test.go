package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-api/internal/http/middleware"
	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Silence()
}

// asUser имитирует AuthMiddleware.
func asUser(id uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, id)
		c.Set(middleware.ContextRoleKey, role)
		c.Next()
	}
}

func doJSON(r *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type stubAuth struct {
	registered service.RegisterInput
	err        error
}

func (s *stubAuth) Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error) {
	s.registered = in
	if s.err != nil {
		return nil, s.err
	}
	return &service.AuthResult{
		User:   &models.User{ID: uuid.New(), Email: in.Email, Role: in.Role},
		Tokens: &service.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900},
	}, nil
}

func (s *stubAuth) Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error) {
	return nil, apperror.ErrInvalidCredentials
}

func (s *stubAuth) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	return &service.TokenPair{AccessToken: "a2", RefreshToken: refreshToken, ExpiresIn: 900}, nil
}

func (s *stubAuth) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func TestAuthHandler(t *testing.T) {
	auth := &stubAuth{}
	h := NewAuthHandler(auth)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.GET("/auth/me", h.Me)

	w := doJSON(r, http.MethodPost, "/auth/register", map[string]string{
		"email": "a@example.com", "password": "Secret123", "name": "Ann", "role": "CLIENT",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "user")
	assert.Equal(t, "a", body["tokens"].(map[string]any)["access_token"])
	assert.Equal(t, "Ann", auth.registered.Name)

	w = doJSON(r, http.MethodPost, "/auth/register", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = doJSON(r, http.MethodPost, "/auth/login", map[string]string{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": "rt"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rt", decode(t, w)["tokens"].(map[string]any)["refresh_token"])

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/auth/me", nil).Code)
}

type stubJobs struct {
	JobUseCases
	listInput  service.ListJobsInput
	created    service.CreateJobInput
	patch      models.JobPatch
	decisionID uuid.UUID
	err        error
}

func (s *stubJobs) ListJobs(ctx context.Context, in service.ListJobsInput) (*models.JobPage, error) {
	s.listInput = in
	return &models.JobPage{Jobs: []models.Job{}}, s.err
}

func (s *stubJobs) CreateJob(ctx context.Context, actor service.Actor, in service.CreateJobInput) (*models.Job, error) {
	s.created = in
	if s.err != nil {
		return nil, s.err
	}
	return &models.Job{ID: uuid.New(), Title: in.Title, ClientID: actor.ID}, nil
}

func (s *stubJobs) UpdateJob(ctx context.Context, actor service.Actor, id uuid.UUID, patch models.JobPatch) (*models.Job, error) {
	s.patch = patch
	return &models.Job{ID: id}, s.err
}

func (s *stubJobs) HasActiveContract(ctx context.Context, id uuid.UUID) (bool, error) {
	return true, nil
}

func (s *stubJobs) AcceptProposal(ctx context.Context, actor service.Actor, jobID, proposalID uuid.UUID) (*models.Proposal, error) {
	s.decisionID = proposalID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Proposal{ID: proposalID, JobID: jobID, Status: models.ProposalStatusAccepted}, nil
}

func TestJobHandler_ListParsesQuery(t *testing.T) {
	jobs := &stubJobs{}
	h := NewJobHandler(jobs)
	r := gin.New()
	r.GET("/jobs", h.List)

	w := doJSON(r, http.MethodGet, "/jobs?category=dev&search=api&budget%5Bmin%5D=100&budget_max=500&skills=go,sql&skills=k8s&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	in := jobs.listInput
	assert.Equal(t, "dev", in.Category)
	assert.Equal(t, "api", in.Search)
	require.NotNil(t, in.BudgetMin)
	require.NotNil(t, in.BudgetMax)
	assert.Equal(t, 100.0, *in.BudgetMin)
	assert.Equal(t, 500.0, *in.BudgetMax)
	assert.Equal(t, []string{"go", "sql", "k8s"}, in.Skills)
	assert.Equal(t, 2, in.Page)
	assert.Equal(t, service.DefaultJobsLimit, in.Limit)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/jobs?page=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/jobs?budget_min=cheap", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/jobs?budget%5Bmax%5D=NaN", nil).Code)
}

func TestJobHandler_CreateAndUpdate(t *testing.T) {
	jobs := &stubJobs{}
	h := NewJobHandler(jobs)
	clientID := uuid.New()
	r := gin.New()
	r.POST("/jobs", asUser(clientID, models.RoleClient), h.Create)
	r.PUT("/jobs/:id", asUser(clientID, models.RoleClient), h.Update)
	r.POST("/anon/jobs", h.Create)

	w := doJSON(r, http.MethodPost, "/jobs", map[string]any{
		"title": "API", "description": "d", "category": "dev", "budget": "750", "skills": "go, sql",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, jobs.created.Budget)
	assert.Equal(t, 750.0, *jobs.created.Budget)
	assert.Equal(t, []string{"go", "sql"}, jobs.created.Skills)
	assert.Equal(t, clientID.String(), decode(t, w)["clientId"])

	w = doJSON(r, http.MethodPost, "/jobs", map[string]any{"title": "API", "skills": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	jobs.created = service.CreateJobInput{}
	for _, budget := range []string{"NaN", "Infinity", "-inf"} {
		w = doJSON(r, http.MethodPost, "/jobs", map[string]any{
			"title": "API", "description": "d", "category": "dev", "budget": budget, "skills": "go",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, budget)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"], budget)
	}
	assert.Empty(t, jobs.created.Title)

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPost, "/anon/jobs", map[string]any{}).Code)

	w = doJSON(r, http.MethodPut, "/jobs/"+uuid.NewString(), map[string]any{"title": "New", "status": "COMPLETED"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, jobs.patch.Title)
	assert.Equal(t, "New", *jobs.patch.Title)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPut, "/jobs/not-a-uuid", map[string]any{}).Code)
}

func (s *stubJobs) UpdateStatus(ctx context.Context, actor service.Actor, id uuid.UUID, status string) (*models.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Job{ID: id, Status: status, Client: &models.UserSummary{ID: actor.ID, Name: "Ann"}}, nil
}

func TestJobHandler_UpdateStatus(t *testing.T) {
	jobs := &stubJobs{}
	h := NewJobHandler(jobs)
	r := gin.New()
	r.PATCH("/jobs/:id/status", asUser(uuid.New(), models.RoleClient), h.UpdateStatus)
	path := "/jobs/" + uuid.NewString() + "/status"

	w := doJSON(r, http.MethodPatch, path, map[string]string{"status": models.JobStatusCancelled})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, models.JobStatusCancelled, body["status"])
	assert.Equal(t, "Ann", body["client"].(map[string]any)["name"])

	for _, err := range []error{apperror.ErrActiveContract, apperror.ErrJobReopenAccepted, apperror.ErrJobCompleteManually} {
		jobs.err = err
		w := doJSON(r, http.MethodPatch, path, map[string]string{"status": models.JobStatusOpen})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATE", decode(t, w)["code"])
	}
}

func TestJobHandler_DecisionsAndErrors(t *testing.T) {
	jobs := &stubJobs{}
	h := NewJobHandler(jobs)
	r := gin.New()
	r.PUT("/jobs/:id/proposals/:proposalId/accept", asUser(uuid.New(), models.RoleClient), h.AcceptProposal)
	r.GET("/jobs/:id/contract", h.ActiveContract)

	proposalID := uuid.New()
	path := "/jobs/" + uuid.NewString() + "/proposals/" + proposalID.String() + "/accept"
	w := doJSON(r, http.MethodPut, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, proposalID, jobs.decisionID)
	assert.Equal(t, models.ProposalStatusAccepted, decode(t, w)["status"])

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ErrProposalNotPending, http.StatusConflict, "CONFLICT"},
		{apperror.ErrProposalJobMismatch, http.StatusBadRequest, "INVALID_STATE"},
		{apperror.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{apperror.ErrJobNotFound, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		jobs.err = tc.err
		w := doJSON(r, http.MethodPut, path, nil)
		assert.Equal(t, tc.status, w.Code, tc.code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, tc.code, body["code"])
	}

	w = doJSON(r, http.MethodGet, "/jobs/"+uuid.NewString()+"/contract", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["hasActiveContract"])
}

type stubPayments struct {
	PaymentUseCases
	keys   []string
	reason string
	amount *float64
}

func (s *stubPayments) CreateEscrow(ctx context.Context, actor service.Actor, proposalID uuid.UUID, amount *float64, key string) (*models.Payment, error) {
	s.keys = append(s.keys, key)
	s.amount = amount
	return &models.Payment{ID: uuid.New(), ProposalID: proposalID, Type: models.PaymentTypeEscrow, Status: models.PaymentStatusPending}, nil
}

func (s *stubPayments) Refund(ctx context.Context, actor service.Actor, id uuid.UUID, reason, key string) (*models.Payment, error) {
	s.keys = append(s.keys, key)
	s.reason = reason
	return &models.Payment{ID: id, Type: models.PaymentTypeRefund, Status: models.PaymentStatusRefunded}, nil
}

func TestPaymentHandler(t *testing.T) {
	payments := &stubPayments{}
	h := NewPaymentHandler(payments)
	r := gin.New()
	user := asUser(uuid.New(), models.RoleClient)
	r.POST("/payments/escrow", user, h.CreateEscrow)
	r.POST("/payments/refund/:paymentId", user, h.Refund)
	r.GET("/anon/history", h.History)

	w := doJSON(r, http.MethodPost, "/payments/escrow",
		map[string]any{"proposalId": uuid.NewString(), "amount": "250"}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, payments.amount)
	assert.Equal(t, 250.0, *payments.amount)
	assert.Equal(t, models.PaymentTypeEscrow, decode(t, w)["type"])

	w = doJSON(r, http.MethodPost, "/payments/escrow", map[string]any{"proposalId": "nope", "amount": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	long := string(bytes.Repeat([]byte("k"), 201))
	w = doJSON(r, http.MethodPost, "/payments/escrow", map[string]any{"proposalId": uuid.NewString()}, "Idempotency-Key", long)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// возврат без тела допустим
	w = doJSON(r, http.MethodPost, "/payments/refund/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, payments.reason)

	w = doJSON(r, http.MethodPost, "/payments/refund/"+uuid.NewString(), map[string]string{"reason": "late"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "late", payments.reason)

	assert.Equal(t, []string{"k-1", "", ""}, payments.keys)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/anon/history", nil).Code)
}

type stubConnects struct {
	ConnectUseCases
	packageID int
	err       error
}

func (s *stubConnects) Packages() []models.ConnectPackage {
	return []models.ConnectPackage{{ID: 1, Name: "Starter", Connects: 10, Price: 100}}
}

func (s *stubConnects) Purchase(ctx context.Context, actor service.Actor, packageID int, key string) (*models.ConnectPurchase, error) {
	s.packageID = packageID
	if s.err != nil {
		return nil, s.err
	}
	return &models.ConnectPurchase{
		Transaction: models.ConnectTransaction{ID: uuid.New(), PackageID: packageID, Amount: 40},
		Balance:     45,
	}, nil
}

func (s *stubConnects) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return 7, nil
}

func TestConnectHandler(t *testing.T) {
	connects := &stubConnects{}
	h := NewConnectHandler(connects)
	r := gin.New()
	user := asUser(uuid.New(), models.RoleFreelancer)
	r.GET("/packages", h.Packages)
	r.POST("/purchase", user, h.Purchase)
	r.GET("/balance", user, h.Balance)

	w := doJSON(r, http.MethodGet, "/packages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Starter")

	w = doJSON(r, http.MethodPost, "/purchase", map[string]any{"packageId": 2})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 45.0, body["balance"])
	assert.Equal(t, 2, connects.packageID)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/purchase", map[string]any{}).Code)

	connects.err = apperror.ErrRequestInFlight
	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodPost, "/purchase", map[string]any{"packageId": 1}).Code)

	w = doJSON(r, http.MethodGet, "/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.0, decode(t, w)["connects"])
}

type stubNotifications struct {
	NotificationUseCases
	limit, offset int
	unreadOnly    bool
	deleted       uuid.UUID
}

func (s *stubNotifications) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	s.limit, s.offset, s.unreadOnly = limit, offset, unreadOnly
	return []models.Notification{}, nil
}

func (s *stubNotifications) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return 3, nil
}

func (s *stubNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 3, nil
}

func (s *stubNotifications) Delete(ctx context.Context, id, userID uuid.UUID) error {
	s.deleted = id
	if id == uuid.Nil {
		return apperror.ErrNotificationNotFound
	}
	return nil
}

func TestNotificationHandler(t *testing.T) {
	notifications := &stubNotifications{}
	h := NewNotificationHandler(notifications)
	r := gin.New()
	user := asUser(uuid.New(), models.RoleClient)
	r.GET("/notifications", user, h.List)
	r.GET("/notifications/unread/count", user, h.UnreadCount)
	r.PUT("/notifications/read/all", user, h.MarkAllRead)
	r.DELETE("/notifications/:id", user, h.Delete)

	w := doJSON(r, http.MethodGet, "/notifications?limit=5&offset=10&unread_only=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, 5, notifications.limit)
	assert.Equal(t, 10, notifications.offset)
	assert.True(t, notifications.unreadOnly)

	w = doJSON(r, http.MethodGet, "/notifications/unread/count", nil)
	assert.JSONEq(t, `{"count":3}`, w.Body.String())

	w = doJSON(r, http.MethodPut, "/notifications/read/all", nil)
	assert.JSONEq(t, `{"success":true,"message":"All notifications marked as read"}`, w.Body.String())

	id := uuid.New()
	w = doJSON(r, http.MethodDelete, "/notifications/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, notifications.deleted)

	w = doJSON(r, http.MethodDelete, "/notifications/"+uuid.Nil.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubCertifications struct {
	CertificationUseCases
	input    service.CertificationInput
	uploaded []byte
}

func (s *stubCertifications) Create(ctx context.Context, userID uuid.UUID, in service.CertificationInput) (*models.Certification, error) {
	s.input = in
	return &models.Certification{ID: uuid.New(), UserID: userID, Name: in.Name}, nil
}

func (s *stubCertifications) AttachDocument(ctx context.Context, id, userID uuid.UUID, r io.Reader) (*models.Certification, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.uploaded = data
	path := "certifications/doc.pdf"
	return &models.Certification{ID: id, UserID: userID, DocumentPath: &path}, nil
}

func TestCertificationHandler(t *testing.T) {
	certs := &stubCertifications{}
	h := NewCertificationHandler(certs)
	r := gin.New()
	user := asUser(uuid.New(), models.RoleFreelancer)
	r.POST("/certifications", user, h.Create)
	r.POST("/certifications/:id/document", user, h.UploadDocument)

	w := doJSON(r, http.MethodPost, "/certifications", map[string]string{
		"name": "CKA", "issuer": "CNCF", "issueDate": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, certs.input.IssueDate)
	assert.Equal(t, 2024, certs.input.IssueDate.Year())

	w = doJSON(r, http.MethodPost, "/certifications", map[string]string{"name": "CKA", "issueDate": "01.03.2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "cert.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/certifications/"+uuid.NewString()+"/document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []byte("%PDF-1.4 test"), certs.uploaded)
	assert.Equal(t, "certifications/doc.pdf", decode(t, rec)["documentPath"])

	w = doJSON(r, http.MethodPost, "/certifications/"+uuid.NewString()+"/document", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	r := gin.New()
	r.GET("/ok", NewHealthHandler(pinger{}).Health)
	r.GET("/down", NewHealthHandler(pinger{err: errors.New("refused")}).Health)

	w := doJSON(r, http.MethodGet, "/ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = doJSON(r, http.MethodGet, "/down", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decode(t, w)["status"])
}
