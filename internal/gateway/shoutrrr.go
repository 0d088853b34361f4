package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/nudgeworks/nudge-go/internal/conf"
)

// tokenPlaceholder is substituted with each recipient's push token when
// expanding the configured URL template.
const tokenPlaceholder = "{token}"

// ShoutrrrGateway sends via nicholas-fedor/shoutrrr. The configured URL
// template carries a {token} placeholder; one service URL is built per
// recipient so the router reports per-recipient errors by index.
type ShoutrrrGateway struct {
	urlTemplate string
	timeout     time.Duration
	maxRetries  int
}

// NewShoutrrrGateway creates a shoutrrr-backed gateway from settings.
func NewShoutrrrGateway(settings *conf.ShoutrrrGatewaySettings, maxRetries int) *ShoutrrrGateway {
	return &ShoutrrrGateway{
		urlTemplate: strings.TrimSpace(settings.URLTemplate),
		timeout:     settings.Timeout,
		maxRetries:  maxRetries,
	}
}

func (g *ShoutrrrGateway) Name() string { return "shoutrrr" }

// ValidateConfig checks the URL template by expanding it with a dummy token
// and building a sender.
func (g *ShoutrrrGateway) ValidateConfig() error {
	if g.urlTemplate == "" {
		return fmt.Errorf("shoutrrr url template is required")
	}
	if !strings.Contains(g.urlTemplate, tokenPlaceholder) {
		return fmt.Errorf("shoutrrr url template must contain %s", tokenPlaceholder)
	}
	if _, err := shoutrrr.CreateSender(g.expandURL("validation-token")); err != nil {
		return fmt.Errorf("invalid shoutrrr url template: %w", err)
	}
	return nil
}

func (g *ShoutrrrGateway) expandURL(token string) string {
	return strings.ReplaceAll(g.urlTemplate, tokenPlaceholder, token)
}

// Send delivers one batch. Sender construction failures are permanent;
// send errors are treated as per-recipient failures because the router
// reports them per URL.
func (g *ShoutrrrGateway) Send(ctx context.Context, addresses []string, title, body string, data map[string]any) (*Result, error) {
	if len(addresses) == 0 {
		return &Result{}, nil
	}

	urls := make([]string, len(addresses))
	for i, addr := range addresses {
		urls[i] = g.expandURL(addr)
	}

	return withRetries(ctx, g.maxRetries, func() (*Result, error) {
		sender, err := g.newSender(urls)
		if err != nil {
			return nil, permanentError(fmt.Errorf("failed to build shoutrrr sender: %w", err))
		}

		params := stypes.Params{}
		if title != "" {
			params.SetTitle(title)
		}

		errs := sender.Send(body, &params)
		result := &Result{RecipientErrors: map[string]string{}}
		allFailed := true
		for i, sendErr := range errs {
			if i >= len(addresses) {
				break
			}
			if sendErr != nil {
				result.Failed++
				result.RecipientErrors[addresses[i]] = sendErr.Error()
			} else {
				result.Delivered++
				allFailed = false
			}
		}
		if len(errs) == 0 {
			result.Delivered = len(addresses)
			allFailed = false
		}

		// When every recipient failed the same way, treat the batch as a
		// retryable transport failure rather than N provider rejections.
		if allFailed && result.Failed > 0 {
			return nil, retryableError(fmt.Errorf("all %d shoutrrr sends failed, first: %s",
				result.Failed, firstError(result.RecipientErrors)))
		}
		return result, nil
	})
}

func (g *ShoutrrrGateway) newSender(urls []string) (*router.ServiceRouter, error) {
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, err
	}
	if g.timeout > 0 {
		sender.Timeout = g.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return sender, nil
}

func firstError(errs map[string]string) string {
	for _, msg := range errs {
		return msg
	}
	return ""
}
