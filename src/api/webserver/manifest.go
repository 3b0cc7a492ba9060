package webserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/base-buddies/src/config"
)

// Manifest serves the mini-app descriptor.
type Manifest struct {
	cfg       config.ManifestConfig
	publicURL string
}

func NewManifest(cfg config.ManifestConfig, publicURL string) Manifest {
	return Manifest{cfg: cfg, publicURL: strings.TrimRight(publicURL, "/")}
}

func (m Manifest) Get(c *gin.Context) {
	c.JSON(http.StatusOK, m.Build(m.baseURL(c.Request)))
}

// Build returns the descriptor for base. Empty strings and empty lists
// are left out.
func (m Manifest) Build(base string) gin.H {
	iconURL := m.cfg.IconURL
	ogImageURL := m.cfg.OGImageURL
	var webhookURL string
	if base != "" {
		if iconURL == "" {
			iconURL = base + "/icon.png"
		}
		if ogImageURL == "" {
			ogImageURL = base + "/og-image.png"
		}
		webhookURL = base + "/api/webhook"
	}

	return gin.H{
		"accountAssociation": prune(gin.H{
			"header":    m.cfg.Header,
			"payload":   m.cfg.Payload,
			"signature": m.cfg.Signature,
		}),
		"frame": prune(gin.H{
			"version":         "1",
			"name":            m.cfg.Name,
			"subtitle":        m.cfg.Subtitle,
			"description":     m.cfg.Description,
			"screenshotUrls":  []string{},
			"iconUrl":         iconURL,
			"homeUrl":         base,
			"webhookUrl":      webhookURL,
			"primaryCategory": m.cfg.PrimaryCategory,
			"tags":            m.cfg.Tags,
			"ogTitle":         m.cfg.OGTitle,
			"ogDescription":   m.cfg.OGDescription,
			"ogImageUrl":      ogImageURL,
		}),
	}
}

func (m Manifest) baseURL(r *http.Request) string {
	if m.publicURL != "" {
		return m.publicURL
	}
	return requestOrigin(r)
}

// requestOrigin rebuilds the public origin from proxy headers.
func requestOrigin(r *http.Request) string {
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		return ""
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + host
}

func prune(h gin.H) gin.H {
	for k, v := range h {
		switch v := v.(type) {
		case string:
			if v == "" {
				delete(h, k)
			}
		case []string:
			if len(v) == 0 {
				delete(h, k)
			}
		case nil:
			delete(h, k)
		}
	}
	return h
}
