package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "sid", time.Hour, false), mr
}

func requestWith(sm *SessionManager, id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: id})
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWith(sm, ""))
	require.NoError(t, err)
	sess.SetIdentity(Identity{UserID: 3, Username: "alice", RoleID: 2})
	sess.AddFlash(FlashMessage{Kind: FlashSuccess, Message: "hi"})
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, requestWith(sm, ""), sess))
	assert.True(t, mr.Exists("opanel:session:"+sess.ID))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "sid="+sess.ID)

	loaded, err := sm.Load(ctx, requestWith(sm, sess.ID))
	require.NoError(t, err)
	require.NotNil(t, loaded.Identity())
	assert.Equal(t, "alice", loaded.Identity().Username)
	msg := loaded.PopFlash()
	require.NotNil(t, msg)
	assert.Equal(t, "hi", msg.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionRejectsForeignID(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), requestWith(sm, "attacker-chosen"))
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
}

func TestSessionRenewDropsOldKey(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	sess, _ := sm.Load(ctx, requestWith(sm, ""))
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), requestWith(sm, ""), sess))
	oldID := sess.ID

	loaded, err := sm.Load(ctx, requestWith(sm, oldID))
	require.NoError(t, err)
	sm.Renew(loaded)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), requestWith(sm, oldID), loaded))

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("opanel:session:"+oldID))
	assert.True(t, mr.Exists("opanel:session:"+loaded.ID))
}

func TestSessionDestroy(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	sess, _ := sm.Load(ctx, requestWith(sm, ""))
	sess.SetIdentity(Identity{UserID: 1})
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), requestWith(sm, ""), sess))

	sm.Destroy(sess)
	assert.Nil(t, sess.Identity())
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, requestWith(sm, sess.ID), sess))
	assert.False(t, mr.Exists("opanel:session:"+sess.ID))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestCSRFVerify(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s"}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.NoError(t, m.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, "nope"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)

	m.Rotate(sess)
	next, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, next)
}
