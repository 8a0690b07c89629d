package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	"github.com/yourusername/trivia-api/pkg/auth"
)

func newTestJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService("test-secret", time.Hour, time.Minute)
	require.NoError(t, err)
	return svc
}

func newTestRegistry(t *testing.T, userRepo *MockUserRepo, transport Transport) *SessionRegistry {
	t.Helper()
	return NewSessionRegistry(userRepo, newTestJWT(t), transport, 50*time.Millisecond, time.Hour)
}

func TestSessionRegistry_OnConnect_CreatesGuestSession(t *testing.T) {
	userRepo := new(MockUserRepo)
	transport := newFakeTransport()
	registry := newTestRegistry(t, userRepo, transport)

	sess := registry.OnConnect("conn-1")

	require.NotNil(t, sess)
	assert.Equal(t, ModeHome, sess.Context.Mode)
	assert.False(t, sess.IsAuthenticated)
	got, ok := registry.Get("conn-1")
	assert.True(t, ok)
	assert.Same(t, sess, got)
}

func TestSessionRegistry_Authenticate_MissingToken(t *testing.T) {
	userRepo := new(MockUserRepo)
	registry := newTestRegistry(t, userRepo, newFakeTransport())
	registry.OnConnect("conn-1")

	err := registry.Authenticate("conn-1", "")
	require.NotNil(t, err)
	assert.Equal(t, ErrMissingToken, err.Code)
}

func TestSessionRegistry_Authenticate_InvalidToken(t *testing.T) {
	userRepo := new(MockUserRepo)
	registry := newTestRegistry(t, userRepo, newFakeTransport())
	registry.OnConnect("conn-1")

	err := registry.Authenticate("conn-1", "not-a-jwt")
	require.NotNil(t, err)
	assert.Equal(t, ErrInvalidToken, err.Code)
}

func TestSessionRegistry_Authenticate_UnknownConnection(t *testing.T) {
	jwtSvc := newTestJWT(t)
	userRepo := new(MockUserRepo)
	registry := NewSessionRegistry(userRepo, jwtSvc, newFakeTransport(), 50*time.Millisecond, time.Hour)

	token, err := jwtSvc.GenerateToken(&entity.User{ID: 1})
	require.NoError(t, err)

	coreErr := registry.Authenticate("never-connected", token)
	require.NotNil(t, coreErr)
	assert.Equal(t, ErrSessionNotFound, coreErr.Code)
}

func TestSessionRegistry_Authenticate_Success(t *testing.T) {
	jwtSvc := newTestJWT(t)
	userRepo := new(MockUserRepo)
	user := &entity.User{ID: 7, Username: "alice", PhoneNumber: "+15550000"}
	userRepo.On("GetByID", uint(7)).Return(user, nil)

	registry := NewSessionRegistry(userRepo, jwtSvc, newFakeTransport(), 50*time.Millisecond, time.Hour)
	registry.OnConnect("conn-1")

	token, err := jwtSvc.GenerateToken(user)
	require.NoError(t, err)

	coreErr := registry.Authenticate("conn-1", token)
	require.Nil(t, coreErr)

	sess, ok := registry.Get("conn-1")
	require.True(t, ok)
	assert.True(t, sess.IsAuthenticated)
	assert.Equal(t, uint(7), sess.UserID)
	assert.Equal(t, "alice", sess.Username)

	cid, ok := registry.ConnectionForUser(7)
	assert.True(t, ok)
	assert.Equal(t, "conn-1", cid)
}

// A second connection authenticating as the same user with a different
// token evicts the first (§8 scenario 4 "Auth conflict").
func TestSessionRegistry_Authenticate_EvictsOtherDeviceOnConflict(t *testing.T) {
	jwtSvc := newTestJWT(t)
	userRepo := new(MockUserRepo)
	user := &entity.User{ID: 7, Username: "alice"}
	userRepo.On("GetByID", uint(7)).Return(user, nil)
	transport := newFakeTransport()

	registry := NewSessionRegistry(userRepo, jwtSvc, transport, 20*time.Millisecond, time.Hour)
	hub := NewBroadcastHub(transport, NewSubscriptionFilter(), registry, time.Second)
	registry.SetBroadcastHub(hub)

	registry.OnConnect("conn-a")
	registry.OnConnect("conn-b")

	tokenA, err := jwtSvc.GenerateToken(user)
	require.NoError(t, err)
	require.Nil(t, registry.Authenticate("conn-a", tokenA))

	time.Sleep(2 * time.Millisecond) // ensure distinct IssuedAt between tokens
	tokenB, err := jwtSvc.GenerateToken(user)
	require.NoError(t, err)
	require.Nil(t, registry.Authenticate("conn-b", tokenB))

	cid, ok := registry.ConnectionForUser(7)
	assert.True(t, ok)
	assert.Equal(t, "conn-b", cid)

	assert.Contains(t, transport.events("conn-a"), "forceLogout")

	// forceLogout closes the old connection after the configured delay.
	require.Eventually(t, func() bool {
		return transport.wasClosed("conn-a")
	}, time.Second, 5*time.Millisecond)

	_, stillThere := registry.Get("conn-a")
	assert.False(t, stillThere)
}

func TestSessionRegistry_Authenticate_SameTokenReconnectDoesNotEvict(t *testing.T) {
	jwtSvc := newTestJWT(t)
	userRepo := new(MockUserRepo)
	user := &entity.User{ID: 7, Username: "alice"}
	userRepo.On("GetByID", uint(7)).Return(user, nil)
	transport := newFakeTransport()

	registry := NewSessionRegistry(userRepo, jwtSvc, transport, 20*time.Millisecond, time.Hour)
	registry.OnConnect("conn-a")

	token, err := jwtSvc.GenerateToken(user)
	require.NoError(t, err)
	require.Nil(t, registry.Authenticate("conn-a", token))
	require.Nil(t, registry.Authenticate("conn-a", token))

	assert.NotContains(t, transport.events("conn-a"), "forceLogout")
}

func TestSessionRegistry_OnDisconnect_RemovesFromBothMaps(t *testing.T) {
	jwtSvc := newTestJWT(t)
	userRepo := new(MockUserRepo)
	user := &entity.User{ID: 7, Username: "alice"}
	userRepo.On("GetByID", uint(7)).Return(user, nil)

	registry := NewSessionRegistry(userRepo, jwtSvc, newFakeTransport(), 20*time.Millisecond, time.Hour)
	registry.OnConnect("conn-a")
	token, err := jwtSvc.GenerateToken(user)
	require.NoError(t, err)
	require.Nil(t, registry.Authenticate("conn-a", token))

	registry.OnDisconnect("conn-a")

	_, ok := registry.Get("conn-a")
	assert.False(t, ok)
	_, ok = registry.ConnectionForUser(7)
	assert.False(t, ok)
}

func TestSessionRegistry_EvictIdle(t *testing.T) {
	userRepo := new(MockUserRepo)
	transport := newFakeTransport()
	registry := NewSessionRegistry(userRepo, newTestJWT(t), transport, time.Hour, 10*time.Millisecond)

	registry.OnConnect("stale")
	registry.OnConnect("fresh")

	// Backdate the stale session's activity past the idle cutoff.
	sess, _ := registry.Get("stale")
	sess.LastActivityAt = time.Now().Add(-time.Hour)

	registry.EvictIdle()

	_, staleStillThere := registry.Get("stale")
	assert.False(t, staleStillThere)
	_, freshStillThere := registry.Get("fresh")
	assert.True(t, freshStillThere)
	assert.True(t, transport.wasClosed("stale"))
}

func TestSessionRegistry_Touch_UpdatesActivity(t *testing.T) {
	userRepo := new(MockUserRepo)
	registry := newTestRegistry(t, userRepo, newFakeTransport())
	registry.OnConnect("conn-1")
	sess, _ := registry.Get("conn-1")
	before := sess.LastActivityAt

	time.Sleep(2 * time.Millisecond)
	registry.Touch("conn-1")

	assert.True(t, sess.LastActivityAt.After(before))
}

func TestParseUserIDFromThreePartJWT(t *testing.T) {
	jwtSvc := newTestJWT(t)
	token, err := jwtSvc.GenerateToken(&entity.User{ID: 42})
	require.NoError(t, err)

	userID, ok := ParseUserIDFromThreePartJWT(token)
	assert.True(t, ok)
	assert.Equal(t, uint(42), userID)

	_, ok = ParseUserIDFromThreePartJWT("garbage")
	assert.False(t, ok)
}
