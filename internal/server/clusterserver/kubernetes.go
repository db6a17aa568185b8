// Package clusterserver provides candidate discovery through the Kubernetes API.
package clusterserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yndnr/cidmesh-go/internal/infra/tlsroots"
)

// Kubernetes API client defaults.
const (
	DefaultKubernetesTimeout = 2 * time.Second
	ServiceAccountTokenFile  = "/var/run/secrets/kubernetes.io/serviceaccount/token"
)

// maxPodListSize bounds the pod list response body.
const maxPodListSize = 8 << 20

// KubernetesConfig configures a KubernetesSource.
type KubernetesConfig struct {
	// Host is the API server base URL, e.g. https://kubernetes.default.svc.
	Host string

	// Token is the bearer token. TokenFile is read when Token is empty.
	Token     string
	TokenFile string

	// Namespace and Selector restrict the listed pods.
	Namespace string
	Selector  string

	// CAFile is the API server CA bundle. Empty means system roots.
	CAFile string

	// ClusterPort is the cluster socket port of every pod.
	ClusterPort uint16

	// LocalAddr is the cluster address of this pod.
	LocalAddr netip.AddrPort

	// Hostname is the pod name of this node; it is excluded from the
	// candidates. Defaults to os.Hostname.
	Hostname string

	// Timeout bounds connecting and a whole request.
	Timeout time.Duration

	Logger *slog.Logger
}

// KubernetesSource is a DiscoverySource listing the pods of a deployment.
type KubernetesSource struct {
	cfg      KubernetesConfig
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// podList is the subset of a v1 PodList used for discovery.
type podList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Status struct {
			Phase  string `json:"phase"`
			PodIP  string `json:"podIP"`
			PodIPs []struct {
				IP string `json:"ip"`
			} `json:"podIPs"`
		} `json:"status"`
	} `json:"items"`
}

// NewKubernetesSource creates a source. It fails when the CA bundle or the
// token cannot be loaded.
func NewKubernetesSource(cfg KubernetesConfig) (*KubernetesSource, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultKubernetesTimeout
	}
	if cfg.Host == "" {
		return nil, errors.New("clusterserver: kubernetes host is required")
	}
	if cfg.ClusterPort == 0 {
		return nil, errors.New("clusterserver: kubernetes cluster port is required")
	}
	if cfg.Hostname == "" {
		name, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve hostname: %w", err)
		}
		cfg.Hostname = name
	}
	if cfg.Token == "" && cfg.TokenFile != "" {
		token, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read kubernetes token: %w", err)
		}
		cfg.Token = strings.TrimSpace(string(token))
	}

	roots, err := tlsroots.LoadBundle(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("load kubernetes CA: %w", err)
	}

	endpoint, err := podsEndpoint(cfg.Host, cfg.Namespace, cfg.Selector)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSClientConfig:     roots.TLSConfig(),
			TLSHandshakeTimeout: cfg.Timeout,
			MaxIdleConns:        1,
			IdleConnTimeout:     time.Minute,
		},
	}

	s := &KubernetesSource{
		cfg:      cfg,
		endpoint: endpoint,
		client:   client,
		logger:   cfg.Logger.With("component", "kubernetes"),
	}
	s.logger.Info("kubernetes discovery",
		"endpoint", endpoint,
		"hostname", cfg.Hostname,
		"token_bytes", len(cfg.Token))
	return s, nil
}

func podsEndpoint(host, namespace, selector string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("parse kubernetes host: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("clusterserver: kubernetes host %q is not an absolute URL", host)
	}
	if namespace == "" {
		namespace = "default"
	}
	u = u.JoinPath("api", "v1", "namespaces", namespace, "pods")
	if selector != "" {
		u.RawQuery = url.Values{"labelSelector": {selector}}.Encode()
	}
	return u.String(), nil
}

// LocalInterface returns the cluster address of this pod.
func (s *KubernetesSource) LocalInterface() netip.AddrPort {
	return s.cfg.LocalAddr
}

// DiscoverCandidates lists the pods and returns their cluster addresses.
func (s *KubernetesSource) DiscoverCandidates(ctx context.Context) ([]netip.AddrPort, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create pod list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("list pods: unexpected status %s", resp.Status)
	}

	var pods podList
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPodListSize)).Decode(&pods); err != nil {
		return nil, fmt.Errorf("decode pod list: %w", err)
	}

	addrs := make([]netip.AddrPort, 0, len(pods.Items))
	for _, pod := range pods.Items {
		if pod.Metadata.Name == s.cfg.Hostname {
			continue
		}

		ip := pod.Status.PodIP
		if ip == "" && len(pod.Status.PodIPs) > 0 {
			ip = pod.Status.PodIPs[0].IP
		}
		if ip == "" {
			continue
		}

		addr, err := netip.ParseAddr(ip)
		if err != nil {
			s.logger.Debug("pod with invalid ip", "pod", pod.Metadata.Name, "ip", ip)
			continue
		}
		s.logger.Debug("pod", "pod", pod.Metadata.Name, "phase", pod.Status.Phase, "ip", addr)
		addrs = append(addrs, netip.AddrPortFrom(addr.Unmap(), s.cfg.ClusterPort))
	}
	return addrs, nil
}
