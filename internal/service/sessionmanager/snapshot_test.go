package sessionmanager

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pubquiz-api/pkg/auth"
)

func TestSnapshotBuilder_PlayerDoesNotSeeCorrectAnswer(t *testing.T) {
	// Arrange
	env := newCollectorEnv(t)
	builder := NewSnapshotBuilder(env.deps)

	// Act
	hostSnap, err := builder.Build(env.session.ID, auth.RoleHost)
	require.NoError(t, err)
	playerSnap, err := builder.Build(env.session.ID, auth.RolePlayer)
	require.NoError(t, err)

	// Assert
	require.NotNil(t, hostSnap.Question)
	require.NotNil(t, playerSnap.Question)
	assert.Equal(t, "Рейкьявик", hostSnap.Question.CorrectAnswer)
	assert.Empty(t, playerSnap.Question.CorrectAnswer)

	// И в сериализованном виде ответа тоже нет
	raw, err := json.Marshal(playerSnap)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Рейкьявик")
}

func TestSnapshotBuilder_RemainingReflectsElapsedTime(t *testing.T) {
	env := newCollectorEnv(t)
	builder := NewSnapshotBuilder(env.deps)

	env.clock.Advance(25 * time.Second)

	snap, err := builder.Build(env.session.ID, auth.RolePlayer)
	require.NoError(t, err)

	// Вопрос длится 60с, прошло 25с
	assert.Equal(t, int64(35000), snap.RemainingMs)
	assert.Equal(t, env.clock.Now(), snap.ServerTime)
}

func TestSnapshotBuilder_RemainingFrozenOnPause(t *testing.T) {
	env := newCollectorEnv(t)
	builder := NewSnapshotBuilder(env.deps)

	env.clock.Advance(20 * time.Second)
	_, err := env.store.Pause(env.session.ID)
	require.NoError(t, err)

	// Пауза тянется, остаток не меняется
	env.clock.Advance(10 * time.Minute)

	snap, err := builder.Build(env.session.ID, auth.RolePlayer)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), snap.RemainingMs)
	assert.True(t, snap.AutoAdvancePaused || snap.Status == "paused")
}

func TestSnapshotBuilder_LeaderboardSortedByScore(t *testing.T) {
	// Arrange
	env := newCollectorEnv(t)
	builder := NewSnapshotBuilder(env.deps)

	// Вторая команда отвечает правильно и выходит вперед
	rival := env.team
	_, err := env.collector.Submit(env.session.ID, rival.ID, env.current.ID, "Рейкьявик")
	require.NoError(t, err)

	// Act
	snap, err := builder.Build(env.session.ID, auth.RoleHost)
	require.NoError(t, err)

	// Assert
	require.NotEmpty(t, snap.Leaderboard)
	assert.Equal(t, rival.ID, snap.Leaderboard[0].ID)
	assert.Equal(t, 10, snap.Leaderboard[0].Score)
	assert.Equal(t, 1, snap.AnswerCount, "ведущий видит число поступивших ответов")
}

func TestSnapshotBuilder_VersionMatchesSession(t *testing.T) {
	env := newCollectorEnv(t)
	builder := NewSnapshotBuilder(env.deps)

	before, err := builder.Build(env.session.ID, auth.RolePlayer)
	require.NoError(t, err)

	current, err := env.sessions.GetByID(env.session.ID)
	require.NoError(t, err)
	_, err = env.store.HostNext(env.session.ID, current.Version)
	require.NoError(t, err)

	after, err := builder.Build(env.session.ID, auth.RolePlayer)
	require.NoError(t, err)

	assert.Greater(t, after.Version, before.Version)
}
