package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/repository/database"
)

// StaticTokens serves tokens from configuration, keyed by plain token with a
// "subject:tenant" value.
type StaticTokens map[string]string

func (s StaticTokens) FindTokenByPlainToken(ctx context.Context, plainToken string) (*database.AccessToken, error) {
	_, hash, err := database.SplitToken(plainToken)
	if err != nil {
		return nil, err
	}
	for plain, identity := range s {
		_, h, err := database.SplitToken(plain)
		if err != nil || subtle.ConstantTimeCompare([]byte(h), []byte(hash)) != 1 {
			continue
		}
		subject, tenant, _ := strings.Cut(identity, ":")
		if subject == "" {
			subject = "operator"
		}
		return &database.AccessToken{TokenHash: h, Subject: subject, TenantID: tenant}, nil
	}
	return nil, fmt.Errorf("token: %w", models.ErrNotFound)
}
