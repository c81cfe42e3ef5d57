package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const versionChannel = "pubquiz:session_versions"

// PubSubProvider разносит уведомления о новых версиях сессий между
// инстансами приложения. Каждый инстанс рассылает снапшоты только
// своим клиентам, поэтому без pub/sub клиенты на соседних инстансах
// узнают об изменениях лишь по запросу снапшота.
type PubSubProvider interface {
	// PublishVersion публикует уведомление о новой версии сессии
	PublishVersion(sessionID uint, version int64) error
	// Subscribe подписывается на уведомления от других инстансов
	Subscribe(handler func(sessionID uint, version int64)) error
	// Close освобождает ресурсы провайдера
	Close() error
}

// versionEnvelope - формат сообщения в Redis-канале
type versionEnvelope struct {
	InstanceID string `json:"instance_id"`
	SessionID  uint   `json:"session_id"`
	Version    int64  `json:"version"`
}

// RedisPubSub реализует PubSubProvider поверх Redis Pub/Sub
type RedisPubSub struct {
	client     redis.UniversalClient
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewRedisPubSub создает провайдер поверх существующего Redis-клиента
func NewRedisPubSub(client redis.UniversalClient) *RedisPubSub {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisPubSub{
		client:     client,
		instanceID: uuid.New().String(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// PublishVersion публикует уведомление о новой версии сессии
func (p *RedisPubSub) PublishVersion(sessionID uint, version int64) error {
	payload, err := json.Marshal(versionEnvelope{
		InstanceID: p.instanceID,
		SessionID:  sessionID,
		Version:    version,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(p.ctx, versionChannel, payload).Err()
}

// Subscribe запускает горутину чтения канала. Свои собственные
// публикации пропускаются: локальная рассылка уже произошла.
func (p *RedisPubSub) Subscribe(handler func(sessionID uint, version int64)) error {
	sub := p.client.Subscribe(p.ctx, versionChannel)

	// Дожидаемся подтверждения подписки до запуска горутины
	if _, err := sub.Receive(p.ctx); err != nil {
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-p.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var envelope versionEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
					log.Printf("[RedisPubSub] Нечитаемое сообщение в канале %s: %v", versionChannel, err)
					continue
				}
				if envelope.InstanceID == p.instanceID {
					continue
				}
				handler(envelope.SessionID, envelope.Version)
			}
		}
	}()

	log.Printf("[RedisPubSub] Подписка на канал %s активна (instance=%s)", versionChannel, p.instanceID)
	return nil
}

// Close останавливает горутину подписки
func (p *RedisPubSub) Close() error {
	p.cancel()
	return nil
}

// NoOpPubSub - заглушка для работы в один инстанс
type NoOpPubSub struct{}

func (NoOpPubSub) PublishVersion(sessionID uint, version int64) error          { return nil }
func (NoOpPubSub) Subscribe(handler func(sessionID uint, version int64)) error { return nil }
func (NoOpPubSub) Close() error                                                { return nil }
