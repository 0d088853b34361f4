// Package gateway provides the push-delivery boundary of the nudge engine.
// A Gateway accepts a batch of delivery addresses and reports per-recipient
// failures distinguishably from transport-level failures.
package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nudgeworks/nudge-go/internal/conf"
	"github.com/nudgeworks/nudge-go/internal/errors"
)

// Result reports the outcome of one batched send. A transport-level failure
// is returned as an error instead; when Send returns a Result, the batch
// reached the provider and RecipientErrors holds any per-recipient
// rejections.
type Result struct {
	Delivered int
	Failed    int
	// RecipientErrors maps a delivery address to the provider-reported
	// error for that recipient.
	RecipientErrors map[string]string
}

// Gateway defines an external push delivery backend.
// Implementations must be safe for concurrent use.
type Gateway interface {
	Name() string
	ValidateConfig() error
	Send(ctx context.Context, addresses []string, title, body string, data map[string]any) (*Result, error)
}

// transportError marks a gateway error as retryable or permanent, mirroring
// the distinction between provider rejections and transport failures.
type transportError struct {
	Err       error
	Retryable bool
}

func (e *transportError) Error() string { return e.Err.Error() }
func (e *transportError) Unwrap() error { return e.Err }

// retryableError wraps err so withRetries attempts it again.
func retryableError(err error) error {
	return &transportError{Err: err, Retryable: true}
}

// permanentError wraps err so withRetries gives up immediately.
func permanentError(err error) error {
	return &transportError{Err: err, Retryable: false}
}

// withRetries executes send with exponential backoff, retrying only errors
// marked retryable. maxRetries bounds the attempts after the first.
func withRetries(ctx context.Context, maxRetries int, send func() (*Result, error)) (*Result, error) {
	var result *Result

	operation := func() error {
		var err error
		result, err = send()
		if err == nil {
			return nil
		}
		var terr *transportError
		if errors.As(err, &terr) && !terr.Retryable {
			return backoff.Permanent(terr.Err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), uint64(maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries, not wall time
	return b
}

// New builds the configured gateway, or nil when delivery is disabled.
func New(settings *conf.GatewaySettings) (Gateway, error) {
	switch settings.Provider {
	case "shoutrrr":
		if !settings.Shoutrrr.Enabled {
			return nil, nil
		}
		gw := NewShoutrrrGateway(&settings.Shoutrrr, settings.MaxRetries)
		if err := gw.ValidateConfig(); err != nil {
			return nil, err
		}
		return gw, nil
	case "webhook":
		if !settings.Webhook.Enabled {
			return nil, nil
		}
		gw := NewWebhookGateway(&settings.Webhook, settings.MaxRetries)
		if err := gw.ValidateConfig(); err != nil {
			return nil, err
		}
		return gw, nil
	case "none", "":
		return nil, nil
	default:
		return nil, errors.Newf("unknown gateway provider: %s", settings.Provider).
			Component("gateway").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
