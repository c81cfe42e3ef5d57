package websocket

import (
	"log"
	"sync"
	"sync/atomic"
)

// WorkerPool представляет пул воркеров для рассылки сообщений
type WorkerPool struct {
	tasks        chan func()
	workerCount  int
	wg           sync.WaitGroup
	shuttingDown int32
}

// NewWorkerPool создает и запускает пул воркеров
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &WorkerPool{
		tasks:       make(chan func(), workerCount*10),
		workerCount: workerCount,
	}

	pool.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go pool.worker(i)
	}
	log.Printf("[WorkerPool] Запущен пул с %d воркерами", workerCount)
	return pool
}

// worker запускает цикл обработки задач
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		if atomic.LoadInt32(&p.shuttingDown) == 1 {
			return
		}

		// Выполняем задачу с защитой от паники
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[WorkerPool] Воркер %d восстановился после паники: %v", id, r)
				}
			}()
			task()
		}()
	}
}

// Submit добавляет задачу в пул. При переполненном буфере возвращает false.
func (p *WorkerPool) Submit(task func()) bool {
	if atomic.LoadInt32(&p.shuttingDown) == 1 {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Stop останавливает все воркеры и ожидает их завершения
func (p *WorkerPool) Stop() {
	atomic.StoreInt32(&p.shuttingDown, 1)
	close(p.tasks)
	p.wg.Wait()
	log.Printf("[WorkerPool] Пул остановлен")
}

// SessionHub ведет учет подключений, сгруппированных по сессиям.
// Рассылка адресуется паре (сессия, роль): у ведущего и игроков разные
// снапшоты, поэтому общих широковещательных сообщений не бывает.
type SessionHub struct {
	mu       sync.RWMutex
	sessions map[uint]map[*Client]struct{}

	pool *WorkerPool

	// onRegister вызывается после регистрации клиента (немедленный снапшот)
	onRegister func(*Client)
}

// NewSessionHub создает новый хаб
func NewSessionHub(workerCount int) *SessionHub {
	return &SessionHub{
		sessions: make(map[uint]map[*Client]struct{}),
		pool:     NewWorkerPool(workerCount),
	}
}

// OnRegister устанавливает колбек, вызываемый для каждого нового клиента
func (h *SessionHub) OnRegister(fn func(*Client)) {
	h.onRegister = fn
}

// Register добавляет клиента в хаб и сразу инициирует отправку снапшота:
// переподключившийся клиент догоняет состояние без запроса.
func (h *SessionHub) Register(client *Client) {
	h.mu.Lock()
	clients, ok := h.sessions[client.SessionID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.sessions[client.SessionID] = clients
	}
	clients[client] = struct{}{}
	total := len(clients)
	h.mu.Unlock()

	log.Printf("[Hub] Клиент %s подключен к сессии #%d (role=%s, клиентов: %d)",
		client.ConnectionID, client.SessionID, client.Role, total)

	if h.onRegister != nil {
		fn := h.onRegister
		if !h.pool.Submit(func() { fn(client) }) {
			// Пул занят, шлем синхронно: клиент не должен остаться без снапшота
			fn(client)
		}
	}
}

// Unregister удаляет клиента из хаба и закрывает его канал отправки
func (h *SessionHub) Unregister(client *Client) {
	h.mu.Lock()
	clients, ok := h.sessions[client.SessionID]
	if ok {
		if _, present := clients[client]; present {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.sessions, client.SessionID)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	if ok {
		client.closeSend()
		log.Printf("[Hub] Клиент %s отключен от сессии #%d", client.ConnectionID, client.SessionID)
	}
}

// SessionClients возвращает срез клиентов сессии с указанной ролью.
// Пустая роль означает всех клиентов сессии.
func (h *SessionHub) SessionClients(sessionID uint, role string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.sessions[sessionID]
	if !ok {
		return nil
	}

	out := make([]*Client, 0, len(clients))
	for client := range clients {
		if role == "" || client.Role == role {
			out = append(out, client)
		}
	}
	return out
}

// BroadcastToSession рассылает сообщение клиентам сессии с указанной ролью.
// Доставка каждого клиента уходит в пул воркеров, поэтому вызов не
// блокируется на медленных получателях.
func (h *SessionHub) BroadcastToSession(sessionID uint, role string, message []byte) int {
	clients := h.SessionClients(sessionID, role)

	for _, client := range clients {
		c := client
		if !h.pool.Submit(func() { c.Send(message) }) {
			// Пул переполнен, отправляем в вызывающей горутине
			c.Send(message)
		}
	}
	return len(clients)
}

// ClientCount возвращает общее число подключенных клиентов
func (h *SessionHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.sessions {
		total += len(clients)
	}
	return total
}

// SessionCount возвращает число сессий с хотя бы одним клиентом
func (h *SessionHub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GetMetrics возвращает метрики хаба
func (h *SessionHub) GetMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	perSession := make(map[uint]int, len(h.sessions))
	total := 0
	for id, clients := range h.sessions {
		perSession[id] = len(clients)
		total += len(clients)
	}

	return map[string]interface{}{
		"total_clients":       total,
		"active_sessions":     len(h.sessions),
		"clients_per_session": perSession,
	}
}

// Shutdown закрывает все клиентские каналы и останавливает пул
func (h *SessionHub) Shutdown() {
	h.mu.Lock()
	for _, clients := range h.sessions {
		for client := range clients {
			client.closeSend()
		}
	}
	h.sessions = make(map[uint]map[*Client]struct{})
	h.mu.Unlock()

	h.pool.Stop()
	log.Println("[Hub] Хаб остановлен")
}
