// Package connectivity watches whether the remote side is reachable and
// signals when connectivity comes back.
package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/tallysync/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports nil when the remote side is reachable.
type Probe interface {
	Check(ctx context.Context) error
}

// NewProbe picks a probe by address: grpc://host:port uses the gRPC health
// service, http(s) URLs use a plain GET.
func NewProbe(addr string) (Probe, error) {
	switch {
	case strings.HasPrefix(addr, "grpc://"):
		return NewGRPCHealthProbe(strings.TrimPrefix(addr, "grpc://")), nil
	case strings.HasPrefix(addr, "http://"), strings.HasPrefix(addr, "https://"):
		return NewHTTPProbe(addr), nil
	default:
		return nil, fmt.Errorf("%w: probe address %q", common.ErrConfig, addr)
	}
}

// HTTPProbe treats any 2xx answer to GET url as online.
type HTTPProbe struct {
	url    string
	client *http.Client
}

func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{url: url, client: &http.Client{}}
}

func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}

// GRPCHealthProbe asks the standard grpc.health.v1 service whether the
// collector is SERVING. The connection is created on first use.
type GRPCHealthProbe struct {
	addr string

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func NewGRPCHealthProbe(addr string) *GRPCHealthProbe {
	return &GRPCHealthProbe{addr: addr}
}

func (p *GRPCHealthProbe) client() (healthpb.HealthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		conn, err := grpc.NewClient(p.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	return healthpb.NewHealthClient(p.conn), nil
}

func (p *GRPCHealthProbe) Check(ctx context.Context) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("probe %s: %s", p.addr, resp.GetStatus())
	}
	return nil
}

func (p *GRPCHealthProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
