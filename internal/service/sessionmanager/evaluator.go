package sessionmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/yourusername/pubquiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/pubquiz-api/internal/pkg/errors"
)

// Evaluator ведет таймеры активных сессий. На каждую наблюдаемую сессию
// работает ровно одна горутина с тикером: она периодически вызывает
// StateStore.Tick, а тот уже атомарно решает, пора ли продвигать.
// Сам оценщик никаких решений о времени не принимает и состояние в памяти
// не держит, поэтому его перезапуск безопасен в любой момент.
type Evaluator struct {
	config *Config
	deps   *Dependencies
	store  *StateStore

	// instanceID попадает в Redis-замок владения, чтобы реплики
	// не тикали одну сессию одновременно
	instanceID string

	// sessionCancels хранит функции отмены горутин наблюдения
	sessionCancels sync.Map // map[uint]context.CancelFunc
}

// NewEvaluator создает новый оценщик таймеров
func NewEvaluator(config *Config, deps *Dependencies, store *StateStore, instanceID string) *Evaluator {
	return &Evaluator{
		config:     config,
		deps:       deps,
		store:      store,
		instanceID: instanceID,
	}
}

// Watch начинает наблюдение за таймером сессии. Повторный вызов для уже
// наблюдаемой сессии ничего не делает: LoadOrStore гарантирует не больше
// одной горутины на сессию в пределах инстанса.
func (e *Evaluator) Watch(ctx context.Context, sessionID uint) {
	sessionCtx, cancel := context.WithCancel(ctx)

	if _, loaded := e.sessionCancels.LoadOrStore(sessionID, cancel); loaded {
		cancel()
		return
	}

	log.Printf("[Evaluator] Начинаю наблюдение за сессией #%d", sessionID)
	go e.run(sessionCtx, sessionID)
}

// Unwatch останавливает наблюдение за сессией
func (e *Evaluator) Unwatch(sessionID uint) {
	if cancel, ok := e.sessionCancels.LoadAndDelete(sessionID); ok {
		cancel.(context.CancelFunc)()
		log.Printf("[Evaluator] Наблюдение за сессией #%d остановлено", sessionID)
	}
}

// Watching сообщает, наблюдается ли сессия этим инстансом
func (e *Evaluator) Watching(sessionID uint) bool {
	_, ok := e.sessionCancels.Load(sessionID)
	return ok
}

// StopAll останавливает все горутины наблюдения (graceful shutdown)
func (e *Evaluator) StopAll() {
	e.sessionCancels.Range(func(key, value interface{}) bool {
		value.(context.CancelFunc)()
		e.sessionCancels.Delete(key)
		return true
	})
}

// run - цикл тикера одной сессии
func (e *Evaluator) run(ctx context.Context, sessionID uint) {
	defer func() {
		if cancel, ok := e.sessionCancels.LoadAndDelete(sessionID); ok {
			cancel.(context.CancelFunc)()
		}
	}()

	ticker := e.deps.Clock.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.releaseOwnership(sessionID)
			return
		case <-ticker.Chan():
			if !e.acquireOwnership(sessionID) {
				// Сессией владеет другая реплика, наблюдаем вхолостую
				continue
			}

			if _, err := e.store.Tick(sessionID); err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					log.Printf("[Evaluator] Сессия #%d удалена, прекращаю наблюдение", sessionID)
					e.releaseOwnership(sessionID)
					return
				}
				log.Printf("[Evaluator] Ошибка тика сессии #%d: %v", sessionID, err)
				continue
			}

			session, err := e.deps.SessionRepo.GetByID(sessionID)
			if err != nil {
				continue
			}
			if session.Status == entity.SessionStatusCompleted {
				log.Printf("[Evaluator] Сессия #%d завершена, прекращаю наблюдение", sessionID)
				e.releaseOwnership(sessionID)
				return
			}
		}
	}
}

// acquireOwnership пытается захватить или продлить Redis-замок владения
// сессией. Замок с TTL: упавший инстанс освобождает сессию не позже чем
// через OwnershipTTL, после чего ее подберет другая реплика.
func (e *Evaluator) acquireOwnership(sessionID uint) bool {
	key := ownershipKey(sessionID)

	ok, err := e.deps.CacheRepo.SetNX(key, e.instanceID, e.config.OwnershipTTL)
	if err != nil {
		log.Printf("[Evaluator] Ошибка захвата владения сессией #%d: %v", sessionID, err)
		// Кеш недоступен: лучше тикать, чем заморозить игру
		return true
	}
	if ok {
		return true
	}

	owner, err := e.deps.CacheRepo.Get(key)
	if err != nil {
		return false
	}
	if owner != e.instanceID {
		return false
	}

	// Замок наш, продлеваем TTL
	if err := e.deps.CacheRepo.Set(key, e.instanceID, e.config.OwnershipTTL); err != nil {
		log.Printf("[Evaluator] Ошибка продления владения сессией #%d: %v", sessionID, err)
	}
	return true
}

// releaseOwnership освобождает замок, если он принадлежит этому инстансу
func (e *Evaluator) releaseOwnership(sessionID uint) {
	key := ownershipKey(sessionID)
	owner, err := e.deps.CacheRepo.Get(key)
	if err != nil || owner != e.instanceID {
		return
	}
	if err := e.deps.CacheRepo.Delete(key); err != nil {
		log.Printf("[Evaluator] Ошибка освобождения владения сессией #%d: %v", sessionID, err)
	}
}

func ownershipKey(sessionID uint) string {
	return fmt.Sprintf("evaluator:session:%d", sessionID)
}
