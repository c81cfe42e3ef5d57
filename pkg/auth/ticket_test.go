package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketService_GenerateAndParse(t *testing.T) {
	// Arrange
	svc, err := NewTicketService("test-secret", 60)
	require.NoError(t, err)

	// Act
	ticket, err := svc.Generate(42, RolePlayer, 7)
	require.NoError(t, err)

	claims, err := svc.Parse(ticket)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.SessionID)
	assert.Equal(t, uint(7), claims.TeamID)
	assert.Equal(t, RolePlayer, claims.Role)
	assert.Equal(t, "websocket_auth", claims.Usage)
}

func TestTicketService_HostTicketWithoutTeam(t *testing.T) {
	svc, err := NewTicketService("test-secret", 60)
	require.NoError(t, err)

	ticket, err := svc.Generate(42, RoleHost, 0)
	require.NoError(t, err)

	claims, err := svc.Parse(ticket)
	require.NoError(t, err)
	assert.Equal(t, RoleHost, claims.Role)
	assert.Zero(t, claims.TeamID)
}

func TestTicketService_PlayerTicketRequiresTeam(t *testing.T) {
	svc, err := NewTicketService("test-secret", 60)
	require.NoError(t, err)

	_, err = svc.Generate(42, RolePlayer, 0)
	assert.Error(t, err, "тикет игрока без команды должен отклоняться")
}

func TestTicketService_RejectsForeignSecret(t *testing.T) {
	// Arrange
	svc1, err := NewTicketService("secret-one", 60)
	require.NoError(t, err)
	svc2, err := NewTicketService("secret-two", 60)
	require.NoError(t, err)

	ticket, err := svc1.Generate(42, RoleHost, 0)
	require.NoError(t, err)

	// Act
	_, err = svc2.Parse(ticket)

	// Assert
	assert.Error(t, err, "тикет, подписанный другим секретом, должен отклоняться")
}

func TestTicketService_RejectsUnknownRole(t *testing.T) {
	svc, err := NewTicketService("test-secret", 60)
	require.NoError(t, err)

	_, err = svc.Generate(42, "spectator", 0)
	assert.Error(t, err)
}
