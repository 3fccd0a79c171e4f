package app

import (
	"context"
	"fmt"

	"github.com/Varietyz/banes-lab-bot/internal/config"
	"github.com/Varietyz/banes-lab-bot/internal/database"
	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/jwt"
	"github.com/Varietyz/banes-lab-bot/internal/store"
)

// TokenRequest describes an identity to register for IssueToken.
type TokenRequest struct {
	ID         string
	Handle     string
	Email      string
	Provenance string
}

// IssueToken registers the identity if it is new and returns a signed
// session token for it. It stands in for the external login flow.
func IssueToken(ctx context.Context, cfg *config.AppConfig, req TokenRequest) (string, error) {
	db, err := database.Connect(cfg, true)
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return issueToken(ctx, store.New(db), cfg, req)
}

func issueToken(ctx context.Context, st *store.Store, cfg *config.AppConfig, req TokenRequest) (string, error) {
	identity, err := st.EnsureIdentity(ctx, models.Identity{
		Base:           models.Base{ID: req.ID},
		Handle:         req.Handle,
		ContactAddress: req.Email,
		ProvenanceHash: req.Provenance,
	})
	if err != nil {
		return "", err
	}
	signer, err := jwt.NewSigner(cfg.JWTSecret)
	if err != nil {
		return "", err
	}
	return signer.Sign(identity.ID, identity.Handle, identity.ContactAddress, cfg.SessionTTL)
}
