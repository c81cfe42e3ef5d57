package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/pubquiz-api/internal/service/sessionmanager"
	"github.com/yourusername/pubquiz-api/pkg/auth"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotSource собирает снапшот сессии для роли
type SnapshotSource interface {
	BuildSnapshot(sessionID uint, role string) (*sessionmanager.Snapshot, error)
}

// Manager связывает хаб с игровым состоянием: на каждое уведомление о
// новой версии рассылает свежие снапшоты, на регистрацию клиента отвечает
// немедленным снапшотом, входящие сообщения раздает по обработчикам.
type Manager struct {
	hub      *SessionHub
	source   SnapshotSource
	pubsub   PubSubProvider
	handlers map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *SessionHub, source SnapshotSource, pubsub PubSubProvider) *Manager {
	m := &Manager{
		hub:      hub,
		source:   source,
		pubsub:   pubsub,
		handlers: make(map[string]func(data json.RawMessage, client *Client) error),
	}

	hub.OnRegister(m.SendSnapshotToClient)

	// Уведомления с других инстансов тоже превращаются в рассылку
	if pubsub != nil {
		if err := pubsub.Subscribe(m.pushSnapshots); err != nil {
			log.Printf("[WebSocketManager] Ошибка подписки на pub/sub: %v", err)
		}
	}

	return m
}

// RegisterHandler регистрирует обработчик для типа входящих сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.handlers[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// NotifyVersion - точка входа для колбека мутаций состояния.
// Не блокирует вызывающего: рассылка уходит в отдельную горутину, а
// уведомление других инстансов идет через pub/sub.
func (m *Manager) NotifyVersion(sessionID uint, version int64) {
	if m.pubsub != nil {
		if err := m.pubsub.PublishVersion(sessionID, version); err != nil {
			log.Printf("[WebSocketManager] Ошибка публикации версии сессии #%d: %v", sessionID, err)
		}
	}
	go m.pushSnapshots(sessionID, version)
}

// pushSnapshots собирает и рассылает снапшоты обеим ролям сессии.
// Клиент, уже получивший эту или более новую версию, пропускается.
func (m *Manager) pushSnapshots(sessionID uint, version int64) {
	for _, role := range []string{auth.RoleHost, auth.RolePlayer} {
		clients := m.hub.SessionClients(sessionID, role)
		if len(clients) == 0 {
			continue
		}

		// Отсеиваем клиентов, которым рассылать нечего
		pending := clients[:0]
		for _, client := range clients {
			if client.LastAckedVersion() < version {
				pending = append(pending, client)
			}
		}
		if len(pending) == 0 {
			continue
		}

		message, snapVersion, err := m.buildSnapshotMessage(sessionID, role)
		if err != nil {
			log.Printf("[WebSocketManager] Ошибка сборки снапшота сессии #%d (role=%s): %v", sessionID, role, err)
			continue
		}

		for _, client := range pending {
			// Деградированный снапшот (версия 0) уходит всегда:
			// клиент остается отставшим и получит полный позже
			if snapVersion > 0 && client.LastAckedVersion() >= snapVersion {
				continue
			}
			if client.Send(message) {
				client.MarkVersion(snapVersion)
			}
		}
	}
}

// SendSnapshotToClient отправляет клиенту свежий снапшот безусловно.
// Вызывается при регистрации и по явному запросу клиента.
func (m *Manager) SendSnapshotToClient(client *Client) {
	message, version, err := m.buildSnapshotMessage(client.SessionID, client.Role)
	if err != nil {
		log.Printf("[WebSocketManager] Ошибка сборки снапшота для клиента %s: %v", client.ConnectionID, err)
		return
	}

	if client.Send(message) {
		client.MarkVersion(version)
	}
}

// buildSnapshotMessage собирает и сериализует снапшот для роли.
// Игроки никогда не видят сырых ошибок: при сбое сборки игровой канал
// получает деградированный снапшот со статусом waiting, подробности
// остаются в логе и в канале ведущего.
func (m *Manager) buildSnapshotMessage(sessionID uint, role string) ([]byte, int64, error) {
	snapshot, err := m.source.BuildSnapshot(sessionID, role)
	if err != nil {
		if role == auth.RolePlayer {
			degraded := Event{
				Type: SESSION_SNAPSHOT,
				Data: map[string]interface{}{
					"session_id": sessionID,
					"status":     "waiting",
				},
			}
			message, marshalErr := json.Marshal(degraded)
			if marshalErr != nil {
				return nil, 0, marshalErr
			}
			log.Printf("[WebSocketManager] Сессия #%d: игрокам уходит деградированный снапшот: %v", sessionID, err)
			return message, 0, nil
		}
		return nil, 0, err
	}

	message, err := json.Marshal(Event{Type: SESSION_SNAPSHOT, Data: snapshot})
	if err != nil {
		return nil, 0, err
	}
	return message, snapshot.Version, nil
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Нечитаемое сообщение от %s: %v", client.ConnectionID, err)
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.handlers[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	rawData, _ := json.Marshal(event.Data)
	if err := handler(rawData, client); err != nil {
		// Ошибка обработчика уходит клиенту, но соединение живет
		m.SendErrorToClient(client, "request_failed", err.Error())
	}
	return nil
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке.
// Игровым клиентам текст ошибки не раскрывается.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	if client.Role == auth.RolePlayer {
		message = "request could not be processed"
	}

	payload, err := json.Marshal(Event{
		Type: SERVER_ERROR,
		Data: map[string]string{"code": code, "message": message},
	})
	if err != nil {
		return
	}
	client.Send(payload)
}

// RunHeartbeat периодически шлет всем клиентам их текущую версию и
// серверное время. Клиент, обнаруживший рассинхрон, запрашивает снапшот.
func (m *Manager) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.broadcastHeartbeat(now)
		}
	}
}

// broadcastHeartbeat формирует индивидуальный heartbeat каждому клиенту
func (m *Manager) broadcastHeartbeat(now time.Time) {
	m.hub.mu.RLock()
	sessions := make([]uint, 0, len(m.hub.sessions))
	for id := range m.hub.sessions {
		sessions = append(sessions, id)
	}
	m.hub.mu.RUnlock()

	for _, sessionID := range sessions {
		for _, client := range m.hub.SessionClients(sessionID, "") {
			payload, err := json.Marshal(Event{
				Type: HEARTBEAT,
				Data: map[string]interface{}{
					"session_id":  sessionID,
					"version":     client.LastAckedVersion(),
					"server_time": now,
				},
			})
			if err != nil {
				continue
			}
			client.Send(payload)
		}
	}
}

// Shutdown закрывает pub/sub и хаб
func (m *Manager) Shutdown() {
	if m.pubsub != nil {
		if err := m.pubsub.Close(); err != nil {
			log.Printf("[WebSocketManager] Ошибка закрытия pub/sub: %v", err)
		}
	}
	m.hub.Shutdown()
}
