package service

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/pkg/utils"
)

type CredentialService interface {
	GetActiveCredential(ctx context.Context, socialAccountID int64) (*publisher.Credential, error)
}

type credentialService struct {
	ar        repository.SocialAccountRepository
	secretKey string
}

func NewCredentialService(ar repository.SocialAccountRepository, secretKey string) CredentialService {
	return &credentialService{
		ar:        ar,
		secretKey: secretKey,
	}
}

// GetActiveCredential returns nil when the account is gone, deactivated or
// holds no token that can be decrypted. Only store errors are returned.
func (s *credentialService) GetActiveCredential(ctx context.Context, socialAccountID int64) (*publisher.Credential, error) {
	acc, err := s.ar.GetByID(ctx, socialAccountID)
	if err != nil {
		return nil, err
	}
	if acc == nil || !acc.IsActive || acc.AccessToken == "" {
		return nil, nil
	}

	token, err := utils.Decrypt(acc.AccessToken, []byte(s.secretKey))
	if err != nil {
		slog.Warn("unable to decrypt access token", "social_account_id", socialAccountID, "platform", acc.Platform)
		return nil, nil
	}

	return &publisher.Credential{
		AccessToken: token,
		AccountID:   acc.AccountID,
	}, nil
}
