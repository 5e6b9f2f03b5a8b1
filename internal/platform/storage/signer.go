// Package storage uploads conversion exports to Cloud Storage and signs
// time-limited download links for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
)

// Signer identifies the service account that signs download links. Exactly
// one of PrivateKey (PEM) or SignBytes is used; PrivateKey wins when both are set.
type Signer struct {
	Email      string
	PrivateKey []byte
	// SignBytes signs with RSASSA-PKCS1-v1_5/SHA-256, for keys held elsewhere
	// such as the IAM signBlob API.
	SignBytes func(ctx context.Context, payload []byte) ([]byte, error)
}

func (s Signer) validate() error {
	if strings.TrimSpace(s.Email) == "" {
		return errors.New("storage: signer email is required")
	}
	if len(s.PrivateKey) == 0 && s.SignBytes == nil {
		return errors.New("storage: signer needs a private key or a sign function")
	}
	return nil
}

// SignerFromServiceAccountJSON reads client_email and private_key from a
// service account key file. The file is normally resolved from Secret Manager
// by the config loader.
func SignerFromServiceAccountJSON(data []byte) (Signer, error) {
	if len(data) == 0 {
		return Signer{}, errors.New("storage: service account JSON is empty")
	}
	cfg, err := google.JWTConfigFromJSON(data)
	if err != nil {
		return Signer{}, fmt.Errorf("storage: decode service account json: %w", err)
	}
	signer := Signer{Email: cfg.Email, PrivateKey: cfg.PrivateKey}
	if err := signer.validate(); err != nil {
		return Signer{}, err
	}
	return signer, nil
}
