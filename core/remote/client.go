package remote

import (
	"context"
	"math/rand/v2"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/syncerr"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Transport speaks the wire protocol of one remote system. Implementations
// make a single attempt per call and report failures as *syncerr.RemoteError.
type Transport interface {
	// System identifies the remote.
	System() models.System
	// Fetch lists records of an entity type, optionally only those modified since a point in time.
	Fetch(ctx context.Context, et models.EntityType, since *time.Time) ([]models.RawRecord, error)
	// Create creates a record and returns its remote id. Not idempotent.
	Create(ctx context.Context, et models.EntityType, fields map[string]any) (string, error)
	// Update writes the given fields to an existing record.
	Update(ctx context.Context, et models.EntityType, remoteID string, fields map[string]any) error
}

// Client is the remote surface used by the reconciliation engine.
type Client interface {
	System() models.System
	Fetch(ctx context.Context, et models.EntityType, since *time.Time) ([]models.RawRecord, error)
	Create(ctx context.Context, et models.EntityType, fields map[string]any) (string, error)
	Update(ctx context.Context, et models.EntityType, remoteID string, fields map[string]any) error
}

// SchemaInspector is optionally implemented by transports that can list the
// field names a remote exposes for an entity type.
type SchemaInspector interface {
	Fields(ctx context.Context, et models.EntityType) ([]string, error)
}

// RateLimitedClient wraps a Transport with a token bucket and retries.
// The limiter is shared by all callers; retry state lives on the stack of each call.
type RateLimitedClient struct {
	transport Transport
	limiter   *rate.Limiter
	cfg       Config
	logger    *zap.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a rate limited client around a transport.
func NewClient(transport Transport, cfg Config, logger *zap.Logger) *RateLimitedClient {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitedClient{
		transport: transport,
		limiter:   rate.NewLimiter(limit, burst),
		cfg:       cfg,
		logger:    logger.With(zap.String("system", string(transport.System()))),
		sleep:     sleepContext,
	}
}

// Transport returns the wrapped transport.
func (c *RateLimitedClient) Transport() Transport {
	return c.transport
}

// System identifies the remote.
func (c *RateLimitedClient) System() models.System {
	return c.transport.System()
}

// Fetch lists records with rate limiting and retries.
func (c *RateLimitedClient) Fetch(ctx context.Context, et models.EntityType, since *time.Time) ([]models.RawRecord, error) {
	var out []models.RawRecord
	err := c.do(ctx, "fetch "+string(et), func(ctx context.Context) error {
		recs, err := c.transport.Fetch(ctx, et, since)
		if err != nil {
			return err
		}
		out = recs
		return nil
	})
	return out, err
}

// Create creates a record with rate limiting and retries. A returned
// RemoteUnavailableError means the outcome is unknown: the record may exist.
func (c *RateLimitedClient) Create(ctx context.Context, et models.EntityType, fields map[string]any) (string, error) {
	var id string
	err := c.do(ctx, "create "+string(et), func(ctx context.Context) error {
		newID, err := c.transport.Create(ctx, et, fields)
		if err != nil {
			return err
		}
		id = newID
		return nil
	})
	return id, err
}

// Update writes fields with rate limiting and retries.
func (c *RateLimitedClient) Update(ctx context.Context, et models.EntityType, remoteID string, fields map[string]any) error {
	return c.do(ctx, "update "+string(et), func(ctx context.Context) error {
		return c.transport.Update(ctx, et, remoteID, fields)
	})
}

func (c *RateLimitedClient) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	maxAttempts := c.cfg.maxAttempts()
	system := string(c.System())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// An empty bucket blocks; it never fails the call.
		if err := c.limiter.Wait(ctx); err != nil {
			if attempt == 1 {
				return err
			}
			return &syncerr.RemoteUnavailableError{System: system, Op: op, Attempts: attempt - 1, Err: lastErr}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.callTimeout())
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		// The caller gave up mid-call, so whether the call landed is unknown.
		if ctx.Err() != nil {
			return &syncerr.RemoteUnavailableError{System: system, Op: op, Attempts: attempt, Err: err}
		}
		if !syncerr.IsTransient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := c.backoff(attempt, err)
		c.logger.Debug("Retrying remote call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return &syncerr.RemoteUnavailableError{System: system, Op: op, Attempts: attempt, Err: lastErr}
		}
	}

	c.logger.Warn("Remote call exhausted retries", zap.String("op", op), zap.Int("attempts", maxAttempts), zap.Error(lastErr))
	return &syncerr.RemoteUnavailableError{System: system, Op: op, Attempts: maxAttempts, Err: lastErr}
}

// backoff returns the delay before the next attempt: exponential with jitter,
// or the server's Retry-After hint when larger, capped at the max backoff.
func (c *RateLimitedClient) backoff(attempt int, err error) time.Duration {
	maxDelay := c.cfg.maxBackoff()

	d := c.cfg.baseBackoff() << (attempt - 1)
	if d <= 0 || d > maxDelay {
		d = maxDelay
	}
	// Equal jitter: half fixed, half random.
	d = d/2 + rand.N(d/2+1)

	if hint := syncerr.RetryAfter(err); hint > d {
		d = hint
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
