package relay

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/jwt"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/store"
)

// Authenticator verifies bearer tokens and records them in the session ledger.
type Authenticator struct {
	tokens     TokenVerifier
	identities IdentityStore
	ledger     SessionLedger
	ttl        time.Duration
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
	metrics    metrics.Recorder
}

// NewAuthenticator wires an Authenticator. ttl is the session validity window.
func NewAuthenticator(tokens TokenVerifier, identities IdentityStore, ledger SessionLedger, ttl time.Duration, logger *zap.Logger, rec metrics.Recorder) *Authenticator {
	return &Authenticator{
		tokens:     tokens,
		identities: identities,
		ledger:     ledger,
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		logger:     logger.Named("Authenticator"),
		metrics:    rec,
	}
}

// HashToken returns the ledger key for a bearer token.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authenticate verifies token and upserts its ledger row: an existing row gets
// a fresh session id and last-seen time, otherwise a row is inserted with
// expires_at = created_at + ttl. It returns only after the ledger write.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		reason := ReasonInvalid
		if errors.Is(err, jwt.ErrExpired) {
			reason = ReasonExpired
		}
		a.metrics.RecordAuth(reason)
		return Principal{}, &AuthFailure{Reason: reason, Err: err}
	}

	now := a.now()
	sessionID := a.newID()
	tokenHash := HashToken(token)

	found, err := a.ledger.TouchSession(ctx, tokenHash, sessionID, now)
	if err != nil {
		a.metrics.RecordAuth("error")
		return Principal{}, fmt.Errorf("touch session: %w", err)
	}
	if found {
		a.logger.Info("session renewed", zap.String("identity_id", claims.UserID), zap.String("session_id", sessionID))
	} else {
		identity, err := a.identities.Identity(ctx, claims.UserID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// no owner to reap the row with; the binder reports the missing identity
			a.logger.Warn("token for unknown identity, session not recorded", zap.String("identity_id", claims.UserID))
			a.metrics.RecordAuth("ok")
			return principalFrom(claims, sessionID), nil
		case err != nil:
			a.metrics.RecordAuth("error")
			return Principal{}, fmt.Errorf("load identity %s: %w", claims.UserID, err)
		}

		row := models.Session{
			TokenHash:      tokenHash,
			SessionID:      sessionID,
			IdentityID:     claims.UserID,
			ProvenanceHash: identity.ProvenanceHash,
			CreatedAt:      now,
			ExpiresAt:      now.Add(a.ttl),
			LastSeenAt:     now,
		}
		if err := a.ledger.InsertSession(ctx, row); err != nil {
			a.metrics.RecordAuth("error")
			return Principal{}, fmt.Errorf("insert session: %w", err)
		}
		a.logger.Info("session created",
			zap.String("identity_id", claims.UserID),
			zap.String("session_id", sessionID),
			zap.Time("expires_at", row.ExpiresAt),
		)
	}

	a.metrics.RecordAuth("ok")
	return principalFrom(claims, sessionID), nil
}

func principalFrom(claims *jwt.Claims, sessionID string) Principal {
	return Principal{
		IdentityID: claims.UserID,
		Handle:     claims.Username,
		Email:      claims.Email,
		SessionID:  sessionID,
	}
}
