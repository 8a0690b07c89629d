package realtime

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/yourusername/trivia-api/internal/domain/repository"
	"github.com/yourusername/trivia-api/pkg/auth"
)

// SessionRegistry owns the per-connection Session table and the
// single-session-per-user index (C5, §4.3).
type SessionRegistry struct {
	mu sync.Mutex

	sessions map[string]*Session // connectionId -> Session
	byUser   map[uint]string     // userId -> connectionId

	userRepo  repository.UserRepository
	jwt       *auth.JWTService
	transport Transport
	hub       *BroadcastHub

	forceLogoutDelay time.Duration
	idleEvictAfter   time.Duration
}

func NewSessionRegistry(userRepo repository.UserRepository, jwtSvc *auth.JWTService, transport Transport, forceLogoutDelay, idleEvictAfter time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions:         make(map[string]*Session),
		byUser:           make(map[uint]string),
		userRepo:         userRepo,
		jwt:              jwtSvc,
		transport:        transport,
		forceLogoutDelay: forceLogoutDelay,
		idleEvictAfter:   idleEvictAfter,
	}
}

// SetBroadcastHub wires the hub after construction, resolving the
// registry↔hub cyclic reference explicitly instead of a shared global
// (§9 "Cyclic service references").
func (r *SessionRegistry) SetBroadcastHub(hub *BroadcastHub) {
	r.hub = hub
}

// OnConnect creates a guest session for a new connection (§4.3 onConnect).
func (r *SessionRegistry) OnConnect(connectionID string) *Session {
	r.mu.Lock()
	sess := &Session{
		ConnectionID:   connectionID,
		ConnectedAt:    time.Now(),
		LastActivityAt: time.Now(),
		Context:        Context{Mode: ModeHome},
	}
	r.sessions[connectionID] = sess
	r.mu.Unlock()

	log.Printf("[SessionRegistry] connection %s established as guest", connectionID)
	if r.hub != nil {
		r.hub.EmitTo(connectionID, "connectionStatus", map[string]interface{}{"status": "connected"})
	}
	return sess
}

// Get returns the session for a connection, if any.
func (r *SessionRegistry) Get(connectionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connectionID]
	return s, ok
}

// claimsFromToken verifies the bearer token with the JWT service and returns
// its claims. Only the user_id claim is used; sub/id claims are not read,
// and username/phoneNumber come from the user store in Authenticate.
func (r *SessionRegistry) claimsFromToken(token string) (*auth.JWTCustomClaims, error) {
	return r.jwt.ParseToken(token)
}

// Authenticate binds a connection to a userId, evicting any other
// connection already bound to the same user with a different token
// (§4.3 authenticate, §8 scenario 4 "Auth conflict").
func (r *SessionRegistry) Authenticate(connectionID, token string) *CoreError {
	if token == "" {
		return newError(ErrMissingToken, "token is required")
	}
	claims, err := r.claimsFromToken(token)
	if err != nil {
		return newError(ErrInvalidToken, err.Error())
	}

	r.mu.Lock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		r.mu.Unlock()
		return newError(ErrSessionNotFound, "no session for connection")
	}

	userID := claims.UserID
	prevConnID, hasPrev := r.byUser[userID]
	sameToken := hasPrev && r.sessions[prevConnID] != nil && r.sessions[prevConnID].Token == token

	if hasPrev && prevConnID != connectionID && !sameToken {
		old := r.sessions[prevConnID]
		r.mu.Unlock()
		if old != nil {
			r.forceLogout(prevConnID, "a new connection was established for this account on another device")
		}
		r.mu.Lock()
		delete(r.byUser, userID)
	}

	user, err := r.userRepo.GetByID(userID)
	username, phone := "", ""
	if err == nil && user != nil {
		username = user.Username
		phone = user.PhoneNumber
	}

	sess.UserID = userID
	sess.Username = username
	sess.PhoneNumber = phone
	sess.Token = token
	sess.IsAuthenticated = true
	r.byUser[userID] = connectionID
	r.mu.Unlock()

	log.Printf("[SessionRegistry] connection %s authenticated as user %d", connectionID, userID)
	if r.hub != nil {
		r.hub.EmitTo(connectionID, "authenticationConfirmed", map[string]interface{}{"userId": userID, "username": username})
	}
	return nil
}

// forceLogout emits forceLogout, waits the configured delay, then closes
// the connection (§5 "Cancellation").
func (r *SessionRegistry) forceLogout(connectionID, reason string) {
	if r.hub != nil {
		r.hub.EmitTo(connectionID, "forceLogout", map[string]interface{}{"reason": reason})
	}
	go func() {
		time.Sleep(r.forceLogoutDelay)
		if r.transport != nil {
			r.transport.Close(connectionID, reason)
		}
		r.OnDisconnect(connectionID)
	}()
}

// OnDisconnect removes connectionID from every map that could hold it
// (§4.3 onDisconnect, §5 "Disconnect cascades").
func (r *SessionRegistry) OnDisconnect(connectionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[connectionID]
	if ok {
		if sess.UserID != 0 && r.byUser[sess.UserID] == connectionID {
			delete(r.byUser, sess.UserID)
		}
		delete(r.sessions, connectionID)
	}
	r.mu.Unlock()
	log.Printf("[SessionRegistry] connection %s disconnected", connectionID)
}

// Touch records activity on a connection (message receipt or heartbeat_ack).
func (r *SessionRegistry) Touch(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[connectionID]; ok {
		sess.LastActivityAt = time.Now()
	}
}

// ConnectionForUser returns the connection currently bound to userID.
func (r *SessionRegistry) ConnectionForUser(userID uint) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cid, ok := r.byUser[userID]
	return cid, ok
}

// All returns a snapshot of every connected session.
func (r *SessionRegistry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// EvictIdle disconnects sessions idle for longer than idleEvictAfter. The
// core's heartbeat loop calls it every 60s regardless of heap utilization.
func (r *SessionRegistry) EvictIdle() {
	cutoff := time.Now().Add(-r.idleEvictAfter)
	r.mu.Lock()
	var stale []string
	for cid, sess := range r.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			stale = append(stale, cid)
		}
	}
	r.mu.Unlock()

	for _, cid := range stale {
		log.Printf("[SessionRegistry] evicting idle connection %s", cid)
		if r.transport != nil {
			r.transport.Close(cid, "idle timeout")
		}
		r.OnDisconnect(cid)
	}
}

// ParseUserIDFromThreePartJWT extracts the user_id claim from a bearer
// token's middle base64url segment without validating the signature; sub
// and id claims are not read. Authentication does not use it — normal auth
// goes through Authenticate.
func ParseUserIDFromThreePartJWT(token string) (uint, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, false
	}
	parser := jwt.Parser{}
	claims := &auth.JWTCustomClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	return claims.UserID, claims.UserID != 0
}
