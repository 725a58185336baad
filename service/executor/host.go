package executor

import (
	"strings"

	"github.com/viant/afs/url"
)

// DefaultHostURL is used when no target host is configured.
const DefaultHostURL = "bash://localhost/"

// Host identifies the machine commands run on; Credentials names the scy
// resource holding its SSH secret.
type Host struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// Identity returns the connection pool key for this host.
func (h *Host) Identity() string {
	return h.URL
}

// Local reports whether the host resolves to the local machine.
func (h *Host) Local() bool {
	host := url.Host(h.URL)
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host == "" || host == "localhost" || host == "127.0.0.1"
}

// Address returns the host:port SSH endpoint, defaulting the port to 22.
func (h *Host) Address() string {
	host := url.Host(h.URL)
	if !strings.Contains(host, ":") {
		host += ":22"
	}
	return host
}
