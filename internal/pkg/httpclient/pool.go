package httpclient

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/pkg/circuitbreaker"
)

type Config struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseTimeout     time.Duration
	KeepAlive           time.Duration

	// Consecutive failures after which a host is skipped for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAlive:           30 * time.Second,
		BreakerFailures:     5,
		BreakerTimeout:      30 * time.Second,
	}
}

// PooledClient shares keep-alive connections across requests and guards
// each host with its own circuit breaker. Responses with a 5xx status
// count as failures.
type PooledClient struct {
	client   *http.Client
	config   Config
	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

func NewPooledClient(config Config) *PooledClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &PooledClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.ResponseTimeout,
		},
		config:   config,
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

func (p *PooledClient) breaker(host string) *circuitbreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb, ok := p.breakers[host]
	if !ok {
		cb = circuitbreaker.New(circuitbreaker.Config{
			Name:             host,
			FailureThreshold: p.config.BreakerFailures,
			Timeout:          p.config.BreakerTimeout,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				log.Warn().
					Str("host", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
		p.breakers[host] = cb
	}
	return cb
}

func (p *PooledClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := p.breaker(req.URL.Host).Execute(req.Context(), func(ctx context.Context) error {
		var err error
		resp, err = p.client.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})
	if err == errServerStatus {
		return resp, nil
	}
	return resp, err
}

var errServerStatus = serverStatusError{}

type serverStatusError struct{}

func (serverStatusError) Error() string { return "server error status" }

func (p *PooledClient) CloseIdleConnections() {
	p.client.CloseIdleConnections()
}
