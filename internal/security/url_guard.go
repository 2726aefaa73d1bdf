// Package security はリモート画像取得時のSSRF防止と、ユーザー入力テキストの無害化を提供する。
package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedURL は取得を許可しないURLを表す。
var ErrBlockedURL = errors.New("url is not allowed")

// URLGuard は画像URLの取り込み前検証とSSRF防止付きHTTPクライアントを提供する。
// 静的検証はDNS解決を伴わないため、解決後のIP検証はClientのDialerが担う。
type URLGuard struct {
	blocked   []*net.IPNet
	hostnames map[string]struct{}
}

// NewURLGuard はURLGuardを生成する。
func NewURLGuard() *URLGuard {
	g := &URLGuard{
		hostnames: map[string]struct{}{
			"localhost":                {},
			"metadata.google.internal": {},
		},
	}
	for _, cidr := range []string{
		"0.0.0.0/8",
		"10.0.0.0/8",
		"100.64.0.0/10",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid blocked CIDR %s: %v", cidr, err))
		}
		g.blocked = append(g.blocked, network)
	}
	return g
}

// Check はURLがhttp(s)で、内部ネットワークを指していないことを検証する。
func (g *URLGuard) Check(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q", ErrBlockedURL, parsed.Scheme)
	}

	host := strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedURL)
	}
	if _, ok := g.hostnames[host]; ok || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: host %s", ErrBlockedURL, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || ip.IsMulticast() {
			return fmt.Errorf("%w: address %s", ErrBlockedURL, ip)
		}
		for _, network := range g.blocked {
			if network.Contains(ip) {
				return fmt.Errorf("%w: address %s", ErrBlockedURL, ip)
			}
		}
	}
	return nil
}

// Client はプライベート・ループバック・リンクローカル宛ての接続を
// DNS解決後に拒否するHTTPクライアントを返す。
func (g *URLGuard) Client(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}
