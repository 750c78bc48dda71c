// Package rates fetches the daily exchange rates and keeps the last known
// observation as a fallback.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"taller/internal/core"
	"taller/internal/log"
	"taller/internal/retry"
)

// ErrStale is returned alongside last-known rates when a fresh fetch failed.
var ErrStale = errors.New("exchange rates are stale")

// Store persists rate observations.
type Store interface {
	SaveRates(ctx context.Context, rates core.ExchangeRates) error
	CurrentRates(ctx context.Context) (core.ExchangeRates, error)
}

type response struct {
	Primary   decimal.Decimal `json:"primary"`
	Secondary decimal.Decimal `json:"secondary"`
	Source    string          `json:"source"`
}

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("rates endpoint returned status %d", e.code)
}

// Provider implements the snapshot rates reader on top of an HTTP endpoint
// and a Store.
type Provider struct {
	url    string
	client *http.Client
	store  Store
	policy retry.Policy
	now    func() time.Time
	logger *log.Logger
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithBackoff overrides the 1s doubling backoff capped at 30s.
func WithBackoff(base, limit time.Duration) Option {
	return func(p *Provider) {
		p.policy.Base = base
		p.policy.Max = limit
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(p *Provider) { p.logger = l.WithComponent(log.ComponentRates) }
}

// NewProvider returns a provider for url. An empty url disables fetching and
// serves the stored rates only.
func NewProvider(url string, store Store, timeout time.Duration, maxRetries int, opts ...Option) *Provider {
	p := &Provider{
		url:    url,
		client: &http.Client{Timeout: timeout},
		store:  store,
		now:    time.Now,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentRates),
		policy: retry.Policy{
			Retries: maxRetries,
			Base:    retry.DefaultBase,
			Max:     retry.DefaultMax,
			Retryable: func(err error) bool {
				var se statusError
				if errors.As(err, &se) {
					return se.code == http.StatusTooManyRequests || se.code >= 500
				}
				return true
			},
		},
	}
	for _, o := range opts {
		o(p)
	}
	p.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		p.logger.Warn("Rates fetch failed, retrying", "attempt", attempt, "wait", wait.String(), log.FieldError, err.Error())
	}
	return p
}

// Fetch requests the current rates from the endpoint.
func (p *Provider) Fetch(ctx context.Context) (core.ExchangeRates, error) {
	var out core.ExchangeRates
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		r, err := p.fetchOnce(ctx)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return core.ExchangeRates{}, fmt.Errorf("fetch rates: %w", err)
	}
	return out, nil
}

func (p *Provider) fetchOnce(ctx context.Context) (core.ExchangeRates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return core.ExchangeRates{}, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return core.ExchangeRates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return core.ExchangeRates{}, statusError{code: resp.StatusCode}
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return core.ExchangeRates{}, retry.Permanent(fmt.Errorf("decode rates: %w", err))
	}
	if !body.Primary.IsPositive() {
		return core.ExchangeRates{}, retry.Permanent(fmt.Errorf("primary rate %s: %w", body.Primary, core.ErrInvalidAmount))
	}
	src := body.Source
	if src == "" {
		src = p.url
	}
	return core.ExchangeRates{
		Primary:   body.Primary,
		Secondary: body.Secondary,
		AsOf:      p.now(),
		Source:    src,
	}, nil
}

// CurrentRates fetches fresh rates and stores them, then answers from the
// store so PreviousPrimary comes from an earlier day. When the fetch fails
// the last stored rates are returned with ErrStale; with nothing stored the
// result is zero rates and an error.
func (p *Provider) CurrentRates(ctx context.Context) (core.ExchangeRates, error) {
	if p.url == "" {
		return p.store.CurrentRates(ctx)
	}

	fresh, fetchErr := p.Fetch(ctx)
	if fetchErr == nil {
		if err := p.store.SaveRates(ctx, fresh); err != nil {
			p.logger.WarnContext(ctx, "Failed to store fetched rates", log.FieldError, err.Error())
			fresh.PreviousPrimary = fresh.Primary
			return fresh, nil
		}
		stored, err := p.store.CurrentRates(ctx)
		if err != nil {
			fresh.PreviousPrimary = fresh.Primary
			return fresh, nil
		}
		return stored, nil
	}

	last, err := p.store.CurrentRates(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "No exchange rates available", log.FieldError, fetchErr.Error())
		return core.ExchangeRates{}, fmt.Errorf("%w; no stored rates: %v", fetchErr, err)
	}
	p.logger.WarnContext(ctx, "Using last known exchange rates",
		"as_of", last.AsOf, log.FieldError, fetchErr.Error())
	return last, fmt.Errorf("%w: %v", ErrStale, fetchErr)
}
