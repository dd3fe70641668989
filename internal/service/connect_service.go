package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-api/internal/catalog"
	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/models"
	"github.com/ignatzorin/marketplace-api/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
)

// ConnectRepository описывает зависимости сервиса от хранилища покупок connects.
type ConnectRepository interface {
	CreateTransaction(ctx context.Context, tx *models.ConnectTransaction) error
	CompleteTransaction(ctx context.Context, id uuid.UUID, reference string) (*models.ConnectTransaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.ConnectTransaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.ConnectTransaction, error)
	CreateGrant(ctx context.Context, grant *models.ConnectGrant) error
	GetGrantByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ConnectGrant, error)
}

var errConnectTxNotFound = apperror.New(apperror.ErrCodeNotFound, "покупка не найдена")

var connectErrors = map[error]*apperror.AppError{
	repository.ErrConnectTransactionNotFound: errConnectTxNotFound,
	repository.ErrUserNotFound:               apperror.ErrUserNotFound,
}

// ConnectService продаёт пакеты connects. Оплата симулируется: покупка завершается в том же запросе.
type ConnectService struct {
	tx          Transactor
	catalog     *catalog.Catalog
	connects    ConnectRepository
	users       UserRepository
	idempotency IdempotencyStore
	now         func() time.Time
}

// NewConnectService создаёт сервис покупки connects.
func NewConnectService(tx Transactor, cat *catalog.Catalog, connects ConnectRepository, users UserRepository, idempotency IdempotencyStore) *ConnectService {
	return &ConnectService{
		tx:          tx,
		catalog:     cat,
		connects:    connects,
		users:       users,
		idempotency: idempotency,
		now:         time.Now,
	}
}

// Packages возвращает каталог пакетов.
func (s *ConnectService) Packages() []models.ConnectPackage {
	return s.catalog.Packages()
}

// Purchase покупает пакет: транзакция PENDING, затем COMPLETED с номером,
// начисление со сроком действия и пополнение баланса. Всё в одной транзакции БД.
func (s *ConnectService) Purchase(ctx context.Context, actor Actor, packageID int, idempotencyKey string) (*models.ConnectPurchase, error) {
	pkg, ok := s.catalog.Lookup(packageID)
	if !ok {
		return nil, apperror.Validation("неизвестный пакет connects: %d", packageID)
	}

	var purchase *models.ConnectPurchase
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		purchase, err = idempotent(ctx, s.idempotency, actor.ID, OpPurchase, idempotencyKey, s.loadPurchase,
			func(ctx context.Context) (*models.ConnectPurchase, uuid.UUID, error) {
				return s.purchase(ctx, actor.ID, pkg)
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"user_id":    actor.ID,
		"package_id": packageID,
		"balance":    purchase.Balance,
	}).Info("connect service: пакет куплен")

	return purchase, nil
}

func (s *ConnectService) purchase(ctx context.Context, userID uuid.UUID, pkg models.ConnectPackage) (*models.ConnectPurchase, uuid.UUID, error) {
	pending := &models.ConnectTransaction{
		UserID:    userID,
		PackageID: pkg.ID,
		Amount:    pkg.Connects,
		Price:     pkg.Price,
		Currency:  s.catalog.Currency,
		Status:    models.ConnectTxStatusPending,
	}
	if err := s.connects.CreateTransaction(ctx, pending); err != nil {
		return nil, uuid.Nil, storeError(err, nil)
	}

	reference, err := newReference()
	if err != nil {
		return nil, uuid.Nil, apperror.Internal(err)
	}
	completed, err := s.connects.CompleteTransaction(ctx, pending.ID, reference)
	if err != nil {
		if errors.Is(err, common.ErrNoRowsChanged) {
			return nil, uuid.Nil, apperror.ErrRequestInFlight
		}
		return nil, uuid.Nil, storeError(err, nil)
	}

	txID := completed.ID
	grant := &models.ConnectGrant{
		UserID:        userID,
		TransactionID: &txID,
		Amount:        pkg.Connects,
		Source:        models.ConnectSourcePurchase,
		ExpiresAt:     s.now().Add(catalog.GrantValidity),
	}
	if err := s.connects.CreateGrant(ctx, grant); err != nil {
		return nil, uuid.Nil, storeError(err, nil)
	}

	balance, err := s.users.AdjustConnects(ctx, userID, pkg.Connects)
	if err != nil {
		return nil, uuid.Nil, storeError(err, connectErrors)
	}

	return &models.ConnectPurchase{
		Transaction: *completed,
		Connects:    *grant,
		Balance:     balance,
	}, completed.ID, nil
}

// loadPurchase восстанавливает результат первой покупки по ключу идемпотентности.
func (s *ConnectService) loadPurchase(ctx context.Context, id uuid.UUID) (*models.ConnectPurchase, error) {
	tx, err := s.connects.GetTransaction(ctx, id)
	if err != nil {
		return nil, storeError(err, connectErrors)
	}
	grant, err := s.connects.GetGrantByTransaction(ctx, id)
	if err != nil {
		return nil, storeError(err, connectErrors)
	}
	balance, err := s.users.GetConnects(ctx, tx.UserID)
	if err != nil {
		return nil, storeError(err, connectErrors)
	}
	return &models.ConnectPurchase{Transaction: *tx, Connects: *grant, Balance: balance}, nil
}

// History возвращает покупки пользователя.
func (s *ConnectService) History(ctx context.Context, userID uuid.UUID) ([]models.ConnectTransaction, error) {
	txs, err := s.connects.ListTransactions(ctx, userID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if txs == nil {
		txs = []models.ConnectTransaction{}
	}
	return txs, nil
}

// Balance возвращает текущий баланс connects.
func (s *ConnectService) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.users.GetConnects(ctx, userID)
	return balance, storeError(err, connectErrors)
}

// newReference генерирует номер транзакции вида txn_<hex>.
func newReference() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "txn_" + hex.EncodeToString(buf), nil
}
