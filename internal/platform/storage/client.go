package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultDownloadExpiry = 15 * time.Minute
	// V4 signatures are valid for at most seven days.
	maxDownloadExpiry = 7 * 24 * time.Hour
)

var (
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Client generates V4 signed download URLs.
type Client struct {
	signer Signer
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithClock injects a custom clock.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a signed URL client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if err := signer.validate(); err != nil {
		return nil, err
	}
	c := &Client{signer: signer, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// DownloadOptions shape the signed GET.
type DownloadOptions struct {
	ExpiresIn time.Duration
	// FileName, when set, makes browsers save the object under this name.
	FileName     string
	ResponseType string
}

// SignedURLResult describes a generated link.
type SignedURLResult struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}

// SignedDownloadURL signs a GET for bucket/object.
func (c *Client) SignedDownloadURL(ctx context.Context, bucket, object string, opts DownloadOptions) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errors.New("storage: signed url client not initialised")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedURLResult{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedURLResult{}, errInvalidObject
	}
	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultDownloadExpiry
	}
	if expiry > maxDownloadExpiry {
		return SignedURLResult{}, errExpiryTooLong
	}

	query := url.Values{}
	if name := strings.TrimSpace(opts.FileName); name != "" {
		query.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	if opts.ResponseType != "" {
		query.Set("response-content-type", opts.ResponseType)
	}

	expiresAt := c.now().Add(expiry)
	signOpts := &storage.SignedURLOptions{
		GoogleAccessID:  c.signer.Email,
		Scheme:          storage.SigningSchemeV4,
		Method:          "GET",
		Expires:         expiresAt,
		QueryParameters: query,
	}
	if len(c.signer.PrivateKey) > 0 {
		signOpts.PrivateKey = c.signer.PrivateKey
	} else {
		signOpts.SignBytes = func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		}
	}
	signed, err := storage.SignedURL(bucket, object, signOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURLResult{URL: signed, Method: "GET", ExpiresAt: expiresAt}, nil
}
