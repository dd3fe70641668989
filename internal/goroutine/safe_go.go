package goroutine

import (
	"runtime/debug"
	"sync"

	"github.com/ignatzorin/marketplace-api/internal/logger"
)

// Logger интерфейс для логирования ошибок. *logrus.Logger ему удовлетворяет.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler запускает фоновые задачи и перехватывает их panic.
type RecoveryHandler struct {
	logger Logger
	wg     sync.WaitGroup
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("panic в горутине: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// Wait дожидается завершения всех запущенных задач.
func (rh *RecoveryHandler) Wait() {
	rh.wg.Wait()
}

// SafeGo запускает безопасную горутину с глобальным логгером.
func SafeGo(fn func()) {
	NewRecoveryHandler(logger.Log).SafeGo(fn)
}
