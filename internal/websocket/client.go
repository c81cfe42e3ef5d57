package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения от клиента
	maxMessageSize = 1024

	// Размер буфера по умолчанию для канала отправки сообщений клиенту
	defaultClientBufferSize = 64

	// Максимальное количество предупреждений о переполнении буфера до отключения
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client является посредником между WebSocket соединением и хабом.
// Клиент привязан к одной сессии и одной роли на все время соединения:
// и то и другое приходит из тикета и смене не подлежит.
type Client struct {
	// Уникальный ID соединения
	ConnectionID string

	// Сессия, роль и команда из WS-тикета
	SessionID uint
	Role      string
	TeamID    uint

	hub  *SessionHub
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Флаг, указывающий что канал send закрыт (для предотвращения panic)
	sendClosed atomic.Bool

	// Версия последнего снапшота, ушедшего этому клиенту. Снапшоты с
	// версией не новее этой не отправляются повторно.
	lastAckedVersion atomic.Int64

	// Счетчик предупреждений о переполнении буфера
	bufferWarnings atomic.Int32
}

// NewClient создает нового клиента
func NewClient(hub *SessionHub, conn *websocket.Conn, sessionID uint, role string, teamID uint) *Client {
	c := &Client{
		ConnectionID: uuid.New().String(),
		SessionID:    sessionID,
		Role:         role,
		TeamID:       teamID,
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, defaultClientBufferSize),
	}
	// -1: ни один снапшот еще не отправлялся, версия 0 тоже должна уйти
	c.lastAckedVersion.Store(-1)
	return c
}

// LastAckedVersion возвращает версию последнего отправленного снапшота
func (c *Client) LastAckedVersion() int64 {
	return c.lastAckedVersion.Load()
}

// MarkVersion помечает версию отправленного снапшота.
// Версия только растет; подтверждение старой версии игнорируется.
func (c *Client) MarkVersion(version int64) {
	for {
		current := c.lastAckedVersion.Load()
		if version <= current {
			return
		}
		if c.lastAckedVersion.CompareAndSwap(current, version) {
			return
		}
	}
}

// ResetVersion сбрасывает отметку, вынуждая отправить следующий снапшот
// безусловно (используется при явном запросе снапшота клиентом)
func (c *Client) ResetVersion() {
	c.lastAckedVersion.Store(-1)
}

// Send кладет сообщение в буфер клиента без блокировки.
// Переполненный буфер - признак медленного клиента: после
// maxBufferWarnings подряд клиент отключается, чтобы не копить
// устаревшие снапшоты.
func (c *Client) Send(message []byte) bool {
	if c.sendClosed.Load() {
		return false
	}

	select {
	case c.send <- message:
		c.bufferWarnings.Store(0)
		return true
	default:
		warnings := c.bufferWarnings.Add(1)
		log.Printf("[Client %s] Буфер отправки переполнен (предупреждение %d/%d)",
			c.ConnectionID, warnings, maxBufferWarnings)
		if warnings >= maxBufferWarnings {
			log.Printf("[Client %s] Медленный клиент отключается", c.ConnectionID)
			c.hub.Unregister(c)
		}
		return false
	}
}

// closeSend закрывает канал отправки ровно один раз
func (c *Client) closeSend() {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
	}
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		log.Printf("[Client %s] Read pump остановлен (session=%d, role=%s)", c.ConnectionID, c.SessionID, c.Role)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Client %s] Ошибка чтения: %v", c.ConnectionID, err)
			}
			break
		}

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Printf("[Client %s] Ошибка обработчика: %v. Закрываю соединение.", c.ConnectionID, handlerErr)
			break
		}
	}
}

// safeHandleMessage - обертка для вызова обработчика с recover
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Client %s] PANIC в обработчике сообщения: %v\n%s",
				client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler != nil {
		err = messageHandler(message, client)
	}
	return err
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		log.Printf("[Client %s] Write pump остановлен", c.ConnectionID)
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Хаб закрыл канал клиента
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client %s] Ошибка записи: %v", c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartPumps запускает горутины чтения и записи
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error) {
	go c.writePump()
	go c.readPump(messageHandler)
}
