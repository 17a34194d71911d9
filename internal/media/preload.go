package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const preloadBytes = 256 * 1024

// Preloader warms the connection and edge cache for the next track by
// fetching its leading bytes. Best effort only: failures are logged at debug
// and never surfaced.
type Preloader struct {
	mu     sync.Mutex
	client *http.Client
	cancel context.CancelFunc
}

func NewPreloader() *Preloader {
	return &Preloader{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Preloader) Preload(url string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", preloadBytes-1))

		resp, err := p.client.Do(req)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Preload request failed")
			return
		}
		defer resp.Body.Close()
		n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, preloadBytes))
		log.Debug().Int64("bytes", n).Str("url", url).Msg("Preloaded next track")
	}()
}

func (p *Preloader) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
