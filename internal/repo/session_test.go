package repo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devclub/orgsite/internal/db/dbtest"
	"github.com/devclub/orgsite/internal/models"
)

func newSessionRepo(t *testing.T) *GormRepo {
	t.Helper()
	return NewGormRepo(dbtest.New(t))
}

func TestCreateAndFindValidSession(t *testing.T) {
	r := newSessionRepo(t)
	ctx := context.Background()
	exp := time.Now().Add(24 * time.Hour)

	s, err := r.CreateSession(ctx, 7, "hash-a", exp, SessionMeta{UserAgent: "curl/8", IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotZero(t, s.ID)

	got, err := r.FindValidSession(ctx, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, uint(7), got.UserID)
	assert.Equal(t, "curl/8", got.UserAgent)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.WithinDuration(t, exp, got.ExpiresAt, time.Second)

	_, err = r.FindValidSession(ctx, "hash-unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFindValidSession_Expired(t *testing.T) {
	r := newSessionRepo(t)
	ctx := context.Background()

	_, err := r.CreateSession(ctx, 1, "hash-old", time.Now().Add(-time.Hour), SessionMeta{})
	require.NoError(t, err)

	_, err = r.FindValidSession(ctx, "hash-old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateSession_TruncatesMetadata(t *testing.T) {
	r := newSessionRepo(t)
	ctx := context.Background()

	s, err := r.CreateSession(ctx, 1, "h", time.Now().Add(time.Hour), SessionMeta{UserAgent: strings.Repeat("u", 600)})
	require.NoError(t, err)
	assert.Len(t, s.UserAgent, 512)
}

func TestRotateSession_ReplacesHash(t *testing.T) {
	r := newSessionRepo(t)
	ctx := context.Background()

	s, err := r.CreateSession(ctx, 1, "hash-1", time.Now().Add(time.Hour), SessionMeta{UserAgent: "a"})
	require.NoError(t, err)

	newExp := time.Now().Add(48 * time.Hour)
	require.NoError(t, r.RotateSession(ctx, s.ID, "hash-1", "hash-2", newExp, SessionMeta{UserAgent: "b", IP: "1.2.3.4"}))

	_, err = r.FindValidSession(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	got, err := r.FindValidSession(ctx, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "b", got.UserAgent)
	assert.Equal(t, "1.2.3.4", got.IP)
	assert.WithinDuration(t, newExp, got.ExpiresAt, time.Second)
}

func TestRotateSession_StaleHashLoses(t *testing.T) {
	r := newSessionRepo(t)
	ctx := context.Background()

	s, err := r.CreateSession(ctx, 1, "hash-1", time.Now().Add(time.Hour), SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, r.RotateSession(ctx, s.ID, "hash-1", "hash-2", time.Now().Add(time.Hour), SessionMeta{}))
	err = r.RotateSession(ctx, s.ID, "hash-1", "hash-3", time.Now().Add(time.Hour), SessionMeta{})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.FindValidSession(ctx, "hash-2")
	assert.NoError(t, err)
}

func TestDeleteSessionByHash_Idempotent(t *testing.T) {
	r := newSessionRepo(t)
	ctx := context.Background()

	_, err := r.CreateSession(ctx, 1, "hash-1", time.Now().Add(time.Hour), SessionMeta{})
	require.NoError(t, err)

	owner, err := r.DeleteSessionByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), owner)

	owner, err = r.DeleteSessionByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Zero(t, owner)

	_, err = r.FindValidSession(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListActiveAndDeleteByUser(t *testing.T) {
	r := newSessionRepo(t)
	ctx := context.Background()

	for _, h := range []string{"a", "b"} {
		_, err := r.CreateSession(ctx, 5, h, time.Now().Add(time.Hour), SessionMeta{})
		require.NoError(t, err)
	}
	_, err := r.CreateSession(ctx, 5, "expired", time.Now().Add(-time.Hour), SessionMeta{})
	require.NoError(t, err)
	_, err = r.CreateSession(ctx, 6, "other-user", time.Now().Add(time.Hour), SessionMeta{})
	require.NoError(t, err)

	active, err := r.ListActiveSessions(ctx, 5)
	require.NoError(t, err)
	hashes := make([]string, 0, len(active))
	for _, s := range active {
		hashes = append(hashes, s.TokenHash)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, hashes)

	n, err := r.DeleteSessionsByUser(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var left int64
	require.NoError(t, r.DB.Model(&models.Session{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}
