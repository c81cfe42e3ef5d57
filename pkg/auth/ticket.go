package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Роли подключения к WebSocket
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

// TicketClaims содержит поля одноразового WS-тикета
type TicketClaims struct {
	SessionID uint   `json:"session_id"`
	TeamID    uint   `json:"team_id,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
	// Usage защищает от подстановки чужого JWT в параметр ticket
	Usage string `json:"usage,omitempty"`
}

// TicketService выдает и проверяет короткоживущие тикеты для WebSocket.
// Тикет передается в query-параметре при апгрейде соединения, поэтому
// живет секунды, а не часы.
type TicketService struct {
	secret []byte
	expiry time.Duration
}

// NewTicketService создает новый сервис тикетов
func NewTicketService(secret string, expirySec int) (*TicketService, error) {
	if secret == "" {
		return nil, fmt.Errorf("ticket secret is required")
	}
	if expirySec <= 0 {
		expirySec = 60
	}
	return &TicketService{
		secret: []byte(secret),
		expiry: time.Duration(expirySec) * time.Second,
	}, nil
}

// Generate создает короткоживущий JWT для аутентификации WebSocket
func (s *TicketService) Generate(sessionID uint, role string, teamID uint) (string, error) {
	if role != RoleHost && role != RolePlayer {
		return "", fmt.Errorf("unsupported ticket role: %s", role)
	}
	if role == RolePlayer && teamID == 0 {
		return "", errors.New("player ticket requires team id")
	}

	claims := &TicketClaims{
		SessionID: sessionID,
		TeamID:    teamID,
		Role:      role,
		Usage:     "websocket_auth",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pubquiz-api",
			Subject:   fmt.Sprintf("session:%d", sessionID),
			Audience:  jwt.ClaimStrings{"pubquiz-ws"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[Ticket] Ошибка генерации WS-тикета для сессии ID=%d (role=%s): %v", sessionID, role, err)
		return "", err
	}
	return tokenString, nil
}

// Parse проверяет JWT, используемый как WS тикет
func (s *TicketService) Parse(ticketString string) (*TicketClaims, error) {
	claims := &TicketClaims{}

	token, err := jwt.ParseWithClaims(ticketString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorExpired != 0 {
				return nil, errors.New("ticket is expired")
			}
		}
		return nil, fmt.Errorf("invalid ticket: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid ticket")
	}

	if claims.Usage != "websocket_auth" {
		return nil, errors.New("invalid ticket usage")
	}

	return claims, nil
}
