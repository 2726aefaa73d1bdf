package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestURLGuard_Check(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "public https", url: "https://images.example.com/a.jpg", wantErr: false},
		{name: "public http", url: "http://93.184.216.34/a.png", wantErr: false},
		{name: "ftp scheme", url: "ftp://example.com/a.jpg", wantErr: true},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true},
		{name: "empty host", url: "https:///a.jpg", wantErr: true},
		{name: "localhost", url: "http://localhost/a.jpg", wantErr: true},
		{name: "localhost subdomain", url: "http://api.localhost/a.jpg", wantErr: true},
		{name: "loopback", url: "http://127.0.0.1/a.jpg", wantErr: true},
		{name: "private 10/8", url: "http://10.1.2.3/a.jpg", wantErr: true},
		{name: "private 192.168/16", url: "http://192.168.0.10/a.jpg", wantErr: true},
		{name: "metadata IP", url: "http://169.254.169.254/latest/meta-data", wantErr: true},
		{name: "metadata hostname", url: "http://metadata.google.internal/", wantErr: true},
		{name: "carrier-grade NAT", url: "http://100.64.0.1/a.jpg", wantErr: true},
		{name: "ipv6 loopback", url: "http://[::1]/a.jpg", wantErr: true},
		{name: "ipv6 unique local", url: "http://[fd00::1]/a.jpg", wantErr: true},
		{name: "unspecified", url: "http://0.0.0.0/a.jpg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Check(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrBlockedURL) {
				t.Errorf("error = %v, want ErrBlockedURL", err)
			}
		})
	}
}

func TestURLGuard_Client_Timeout(t *testing.T) {
	client := NewURLGuard().Client(3 * time.Second)
	if client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected a guarded transport")
	}
}

// TestURLGuard_Client_BlocksLoopback はDNS解決後のループバック接続が拒否されることを検証する。
func TestURLGuard_Client_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewURLGuard().Client(5 * time.Second)
	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected loopback request to be blocked")
	}
}
