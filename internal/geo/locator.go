package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campusd/internal/infrastructure/config"
	"campusd/internal/infrastructure/logging"
)

// Position is a WGS84 coordinate pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fix is the outcome of a position resolution.
type Fix struct {
	Position Position `json:"position"`

	// Source names the chain step that produced the position:
	// "static", "last_known", "ip_lookup", or "fallback".
	Source string `json:"source"`

	// Degraded reports that only the fallback campus coordinate was
	// available. It is advisory and never blocks data flow.
	Degraded bool `json:"degraded"`
}

// Fix sources.
const (
	SourceStatic    = "static"
	SourceLastKnown = "last_known"
	SourceIPLookup  = "ip_lookup"
	SourceFallback  = "fallback"
)

// PositionStore persists last-known positions between runs. Implemented by
// the snapshot repository; optional.
type PositionStore interface {
	LastPosition(ctx context.Context) (*Position, error)
	SavePosition(ctx context.Context, pos Position) error
}

// defaultLookupTimeout bounds the IP geolocation call when config provides
// no budget.
const defaultLookupTimeout = 5 * time.Second

// maxLookupResponseSize caps the geolocation response body.
const maxLookupResponseSize = 64 << 10 // 64 KB

// Locator resolves positions through the configured chain.
type Locator struct {
	cfg        config.LocatorConfig
	store      PositionStore
	httpClient *http.Client
	logger     *logging.Logger
}

// NewLocator creates a Locator.
//
// Parameters:
//   - cfg: Locator section of config.yaml
//   - store: Optional position store for last-known lookups (may be nil)
//   - logger: Structured logger (required)
func NewLocator(cfg config.LocatorConfig, store PositionStore, logger *logging.Logger) *Locator {
	timeout := defaultLookupTimeout
	if cfg.IPLookup.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.IPLookup.TimeoutSeconds) * time.Second
	}

	return &Locator{
		cfg:   cfg,
		store: store,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "geo"),
	}
}

// Resolve walks the chain and always returns a usable position.
//
// A fresh IP-lookup fix is written back to the store best-effort so the
// next cold start has a last-known position.
func (l *Locator) Resolve(ctx context.Context) Fix {
	if l.cfg.Static.IsSet() {
		return Fix{
			Position: Position{
				Latitude:  l.cfg.Static.Latitude,
				Longitude: l.cfg.Static.Longitude,
			},
			Source: SourceStatic,
		}
	}

	if l.store != nil {
		last, err := l.store.LastPosition(ctx)
		if err != nil {
			l.logger.Warn("last-known position lookup failed", "error", err)
		} else if last != nil {
			return Fix{Position: *last, Source: SourceLastKnown}
		}
	}

	if l.cfg.IPLookup.Enabled {
		pos, err := l.lookupByIP(ctx)
		if err != nil {
			l.logger.Warn("ip geolocation failed", "error", err)
		} else {
			l.savePosition(ctx, *pos)
			return Fix{Position: *pos, Source: SourceIPLookup}
		}
	}

	l.logger.Info("position resolution degraded to campus fallback")
	return Fix{
		Position: Position{
			Latitude:  l.cfg.Fallback.Latitude,
			Longitude: l.cfg.Fallback.Longitude,
		},
		Source:   SourceFallback,
		Degraded: true,
	}
}

// ipLookupResponse follows the ip-api.com JSON shape.
type ipLookupResponse struct {
	Status string  `json:"status"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// lookupByIP asks the configured IP geolocation provider for a fix.
func (l *Locator) lookupByIP(ctx context.Context) (*Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.IPLookup.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup failed: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var payload ipLookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if payload.Status != "" && payload.Status != "success" {
		return nil, fmt.Errorf("lookup rejected: status %q", payload.Status)
	}

	return &Position{Latitude: payload.Lat, Longitude: payload.Lon}, nil
}

// savePosition persists a fresh fix best-effort.
func (l *Locator) savePosition(ctx context.Context, pos Position) {
	if l.store == nil {
		return
	}
	if err := l.store.SavePosition(ctx, pos); err != nil {
		l.logger.Warn("persisting position failed", "error", err)
	}
}
