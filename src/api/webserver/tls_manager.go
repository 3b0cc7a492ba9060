package webserver

import (
	"context"
	"crypto/tls"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TLSReloader serves a certificate pair and picks up renewed files
// without a restart.
type TLSReloader struct {
	certFile    string
	keyFile     string
	cert        *tls.Certificate
	mu          sync.RWMutex
	lastModCert time.Time
	lastModKey  time.Time
	log         *zap.Logger
}

// NewTLSReloader loads the pair and checks for changes every interval
// until ctx is done.
func NewTLSReloader(ctx context.Context, certFile, keyFile string, interval time.Duration, log *zap.Logger) (*TLSReloader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &TLSReloader{certFile: certFile, keyFile: keyFile, log: log.Named("tls")}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go r.watchFiles(ctx, interval)
	return r, nil
}

func (r *TLSReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}
	certInfo, _ := os.Stat(r.certFile)
	keyInfo, _ := os.Stat(r.keyFile)

	r.mu.Lock()
	r.cert = &cert
	if certInfo != nil {
		r.lastModCert = certInfo.ModTime()
	}
	if keyInfo != nil {
		r.lastModKey = keyInfo.ModTime()
	}
	r.mu.Unlock()

	r.log.Info("TLS certificates loaded", zap.String("cert", r.certFile))
	return nil
}

func (r *TLSReloader) changed() bool {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		r.log.Warn("failed to stat cert file", zap.Error(err))
		return false
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		r.log.Warn("failed to stat key file", zap.Error(err))
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.lastModCert) || keyInfo.ModTime().After(r.lastModKey)
}

func (r *TLSReloader) watchFiles(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.changed() {
				continue
			}
			if err := r.reload(); err != nil {
				r.log.Error("failed to reload certificates", zap.Error(err))
			}
		}
	}
}

func (r *TLSReloader) GetConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			r.mu.RLock()
			defer r.mu.RUnlock()
			return r.cert, nil
		},
		MinVersion: tls.VersionTLS12,
	}
}
