package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"campusd/internal/affluence"
	"campusd/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// reconnectInitialDelay and reconnectMaxDelay bound the backoff window.
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20

// statusMessage is the retained per-site payload.
type statusMessage struct {
	SiteID        string `json:"site_id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	IsOpen        bool   `json:"is_open"`
	OccupancyRate *int   `json:"occupancy_rate,omitempty"`
	ClosingTime   string `json:"closing_time,omitempty"`
	OpeningText   string `json:"opening_text,omitempty"`
	RefreshedAt   string `json:"refreshed_at"`
}

// Publisher pushes per-site live status to an MQTT broker.
//
// Each refresh cycle publishes one retained message per site, so any
// subscriber (dashboards, displays, other services) sees the current
// state immediately on connect without polling the daemon.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Publisher struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	topics  Topics

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Sets up auto-reconnect with exponential backoff
//  4. Attempts initial connection with timeout
//  5. Publishes online status to the system status topic
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Publisher: Connected publisher ready for use
//   - error: If publishing is disabled or initial connection fails
func Connect(cfg config.MQTTConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	topics := Topics{Prefix: cfg.TopicPrefix}
	opts := buildClientOptions(cfg)
	configureLWT(opts, topics, cfg.Broker.ClientID)

	p := &Publisher{
		cfg:     cfg,
		options: opts,
		topics:  topics,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		p.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, _ error) {
		p.handleDisconnect()
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet, so mark connected here to ensure IsConnected() returns true.
	p.connMu.Lock()
	p.connected = true
	p.connMu.Unlock()

	return p, nil
}

// handleConnect is called when the connection is established.
func (p *Publisher) handleConnect() {
	p.connMu.Lock()
	p.connected = true
	p.connMu.Unlock()

	p.publishOnlineStatus()
}

// handleDisconnect is called when the connection is lost.
func (p *Publisher) handleDisconnect() {
	p.connMu.Lock()
	p.connected = false
	p.connMu.Unlock()
}

// publishOnlineStatus publishes the daemon's online status.
func (p *Publisher) publishOnlineStatus() {
	payload := buildOnlinePayload(p.cfg.Broker.ClientID)
	p.client.Publish(p.topics.SystemStatus(), byte(p.cfg.QoS), true, payload)
}

// PublishStatus publishes one site's live status as a retained message.
//
// Parameters:
//   - site: The site the status belongs to
//   - status: The live status observed for it
//   - at: The refresh timestamp shared by all messages of one cycle
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (p *Publisher) PublishStatus(site affluence.Site, status affluence.LiveStatus, at time.Time) error {
	msg := statusMessage{
		SiteID:        site.ID,
		Name:          site.Name,
		Slug:          site.Slug,
		IsOpen:        status.IsOpen,
		OccupancyRate: status.OccupancyRate,
		ClosingTime:   status.ClosingTime,
		OpeningText:   status.OpeningText,
		RefreshedAt:   at.UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}

	return p.publish(p.topics.SiteStatus(site.Slug), payload, byte(p.cfg.QoS), true)
}

// PublishCycle publishes statuses for every site of a refresh cycle.
//
// Sites without a status entry are skipped. The first publish error is
// returned, after the remaining sites have still been attempted.
func (p *Publisher) PublishCycle(sites []affluence.Site, status map[string]affluence.LiveStatus, at time.Time) error {
	var firstErr error
	for _, site := range sites {
		s, ok := status[site.ID]
		if !ok {
			continue
		}
		if err := p.PublishStatus(site, s, at); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// publish sends a message with validation and a publish timeout.
func (p *Publisher) publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !p.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes a graceful offline status (distinct from the LWT crash
// status) before disconnecting.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}

	if p.IsConnected() {
		payload := buildOfflinePayload(p.cfg.Broker.ClientID)
		token := p.client.Publish(p.topics.SystemStatus(), byte(p.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	p.client.Disconnect(defaultDisconnectQuiesce)

	p.connMu.Lock()
	p.connected = false
	p.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("notify health check: %w", ctx.Err())
	default:
	}

	if !p.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (p *Publisher) IsConnected() bool {
	p.connMu.RLock()
	defer p.connMu.RUnlock()
	return p.connected && p.client.IsConnected()
}

// buildClientOptions creates paho MQTT options from campusd config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(reconnectInitialDelay)
	opts.SetMaxReconnectInterval(reconnectMaxDelay)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the daemon disconnects unexpectedly,
// so subscribers can tell a crash apart from a graceful shutdown.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)

	opts.SetWill(topics.SystemStatus(), willPayload, 1, true)
}

// buildOnlinePayload creates the JSON payload for online status messages.
func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// buildOfflinePayload creates the JSON payload for graceful offline status.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}
