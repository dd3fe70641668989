package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/validation"
)

// UserRepository описывает зависимости сервисов от хранилища пользователей.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetConnects(ctx context.Context, id uuid.UUID) (int, error)
	AdjustConnects(ctx context.Context, id uuid.UUID, delta int) (int, error)
}

var errEmailTaken = apperror.New(apperror.ErrCodeConflict, "email уже зарегистрирован")

var userErrors = map[error]*apperror.AppError{
	repository.ErrUserNotFound: apperror.ErrUserNotFound,
	repository.ErrEmailTaken:   errEmailTaken,
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo         UserRepository
	tokenManager *TokenManager
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo UserRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
	}
}

// Register создаёт клиента или фрилансера. Администратор через регистрацию не создаётся.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if _, ok := models.SelfServiceRoles[role]; !ok {
		return nil, apperror.Validation("роль должна быть CLIENT или FREELANCER")
	}

	user, err := s.createUser(ctx, in.Email, in.Password, in.Name, role)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateAdmin создаёт администратора. Используется только из marketctl.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, name string) (*models.User, error) {
	return s.createUser(ctx, email, password, name, models.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, email, password, name, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, errEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.Internal(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeError(err, userErrors)
	}

	logger.Log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("auth service: пользователь зарегистрирован")

	return user, nil
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperror.Validation("email и пароль обязательны")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Internal(err)
	}

	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh выпускает новую пару по действующему refresh токену.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, apperror.Validation("refresh_token обязателен")
	}

	userID, err := s.tokenManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, apperror.Internal(err)
	}
	if !user.IsActive {
		return nil, apperror.ErrUnauthorized
	}

	pair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return pair, nil
}

// Me возвращает текущего пользователя.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, userErrors)
	}
	return user, nil
}

// ParseAccessToken используется middleware для разбора bearer токена.
func (s *AuthService) ParseAccessToken(token string) (uuid.UUID, string, error) {
	return s.tokenManager.ParseAccess(token)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	pair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}
