package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/store"
)

func newTestAuthenticator(env *testEnv) *Authenticator {
	return NewAuthenticator(env.signer, env.store, env.store, time.Hour, zap.NewNop(), metrics.Nop{})
}

func TestAuthenticate_CreatesThenRenewsSession(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	auth := newTestAuthenticator(env)
	ctx := context.Background()
	tok := env.token(t, "u1", "u1@x.com", time.Hour)

	first, err := auth.Authenticate(ctx, tok)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if first.IdentityID != "u1" || first.Email != "u1@x.com" {
		t.Errorf("principal = %+v", first)
	}

	row, err := env.store.SessionByToken(ctx, HashToken(tok))
	if err != nil {
		t.Fatalf("SessionByToken: %v", err)
	}
	if row.SessionID != first.SessionID {
		t.Errorf("session id = %q, want %q", row.SessionID, first.SessionID)
	}
	if row.ProvenanceHash != "prov-u1" {
		t.Errorf("provenance = %q, want copied from identity", row.ProvenanceHash)
	}
	if got := row.ExpiresAt.Sub(row.CreatedAt); got != time.Hour {
		t.Errorf("expires - created = %v, want 1h", got)
	}

	second, err := auth.Authenticate(ctx, tok)
	if err != nil {
		t.Fatalf("Authenticate again: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Error("reconnect should rotate the session id")
	}
	if n, _ := env.store.CountSessions(ctx, "u1"); n != 1 {
		t.Errorf("sessions = %d, want 1 row per token", n)
	}
	renewed, _ := env.store.SessionByToken(ctx, HashToken(tok))
	if renewed.SessionID != second.SessionID {
		t.Errorf("ledger session id = %q, want %q", renewed.SessionID, second.SessionID)
	}
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	auth := newTestAuthenticator(env)

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"expired", env.token(t, "u1", "u1@x.com", -time.Minute), ReasonExpired},
		{"garbage", "not-a-token", ReasonInvalid},
		{"empty", "", ReasonInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(context.Background(), tt.token)
			var af *AuthFailure
			if !errors.As(err, &af) {
				t.Fatalf("err = %v, want *AuthFailure", err)
			}
			if af.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", af.Reason, tt.reason)
			}
		})
	}
	if n, _ := env.store.CountSessions(context.Background(), "u1"); n != 0 {
		t.Errorf("sessions = %d, rejected tokens must not be recorded", n)
	}
}

func TestAuthenticate_UnknownIdentityNotRecorded(t *testing.T) {
	env := newTestEnv(t)
	auth := newTestAuthenticator(env)
	tok := env.token(t, "ghost", "ghost@x.com", time.Hour)

	p, err := auth.Authenticate(context.Background(), tok)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.IdentityID != "ghost" || p.SessionID == "" {
		t.Errorf("principal = %+v", p)
	}
	if _, err := env.store.SessionByToken(context.Background(), HashToken(tok)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SessionByToken err = %v, want ErrNotFound", err)
	}
	if n, _ := env.store.CountSessions(context.Background(), "ghost"); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	if len(h) != 64 {
		t.Fatalf("len = %d, want 64 hex chars", len(h))
	}
	if h != HashToken("abc") || h == HashToken("abd") {
		t.Error("hash must be deterministic and distinct per token")
	}
}
