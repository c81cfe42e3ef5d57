package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pubquiz-api/pkg/auth"
)

// receive читает одно сообщение из буфера клиента или падает по таймауту
func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("сообщение не пришло за секунду")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("неожиданное сообщение: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorkerPool_ExecutesTasks(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := pool.Submit(func() {
			defer wg.Done()
			mu.Lock()
			count++
			mu.Unlock()
		})
		require.True(t, ok)
	}

	wg.Wait()
	assert.Equal(t, 20, count)
}

func TestSessionHub_RegisterAndRoleFiltering(t *testing.T) {
	hub := NewSessionHub(2)
	defer hub.Shutdown()

	host := NewClient(hub, nil, 7, auth.RoleHost, 0)
	playerA := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	playerB := NewClient(hub, nil, 7, auth.RolePlayer, 2)
	otherSession := NewClient(hub, nil, 8, auth.RolePlayer, 3)

	hub.Register(host)
	hub.Register(playerA)
	hub.Register(playerB)
	hub.Register(otherSession)

	assert.Equal(t, 4, hub.ClientCount())
	assert.Equal(t, 2, hub.SessionCount())

	assert.Len(t, hub.SessionClients(7, ""), 3)
	assert.Len(t, hub.SessionClients(7, auth.RolePlayer), 2)
	assert.Len(t, hub.SessionClients(7, auth.RoleHost), 1)
	assert.Empty(t, hub.SessionClients(99, ""))

	hub.Unregister(playerA)
	assert.Len(t, hub.SessionClients(7, auth.RolePlayer), 1)
	assert.Equal(t, 3, hub.ClientCount())
}

func TestSessionHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewSessionHub(2)
	defer hub.Shutdown()

	client := NewClient(hub, nil, 5, auth.RolePlayer, 1)
	hub.Register(client)

	hub.Unregister(client)
	hub.Unregister(client)

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.SessionCount())
}

func TestSessionHub_BroadcastToSession(t *testing.T) {
	hub := NewSessionHub(2)
	defer hub.Shutdown()

	host := NewClient(hub, nil, 7, auth.RoleHost, 0)
	player := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	stranger := NewClient(hub, nil, 8, auth.RolePlayer, 2)

	hub.Register(host)
	hub.Register(player)
	hub.Register(stranger)

	sent := hub.BroadcastToSession(7, auth.RolePlayer, []byte(`{"type":"HEARTBEAT"}`))
	assert.Equal(t, 1, sent)

	assert.Equal(t, `{"type":"HEARTBEAT"}`, string(receive(t, player)))
	assertNoMessage(t, host)
	assertNoMessage(t, stranger)
}

func TestSessionHub_OnRegisterCallback(t *testing.T) {
	hub := NewSessionHub(2)
	defer hub.Shutdown()

	var mu sync.Mutex
	registered := make([]string, 0, 1)
	hub.OnRegister(func(c *Client) {
		mu.Lock()
		registered = append(registered, c.ConnectionID)
		mu.Unlock()
	})

	client := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	hub.Register(client)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(registered) == 1 && registered[0] == client.ConnectionID
	}, time.Second, 10*time.Millisecond)
}

func TestClient_MarkVersionOnlyGrows(t *testing.T) {
	client := NewClient(nil, nil, 7, auth.RolePlayer, 1)

	assert.Equal(t, int64(-1), client.LastAckedVersion())

	client.MarkVersion(5)
	assert.Equal(t, int64(5), client.LastAckedVersion())

	client.MarkVersion(3)
	assert.Equal(t, int64(5), client.LastAckedVersion())

	client.ResetVersion()
	assert.Equal(t, int64(-1), client.LastAckedVersion())
}

func TestClient_SlowClientEvictedAfterWarnings(t *testing.T) {
	hub := NewSessionHub(1)
	defer hub.Shutdown()

	client := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	hub.Register(client)

	// Забиваем буфер, никто не читает
	for i := 0; i < defaultClientBufferSize; i++ {
		require.True(t, client.Send([]byte("x")))
	}

	for i := 0; i < maxBufferWarnings; i++ {
		assert.False(t, client.Send([]byte("x")))
	}

	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, client.Send([]byte("x")), "после отключения отправка невозможна")
}
