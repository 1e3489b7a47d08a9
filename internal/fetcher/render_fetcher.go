package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// RenderFetcher captures the rendered DOM of client-side-scripted pages
// using a pool of headless browser instances.
type RenderFetcher struct {
	cfg         config.RenderBackend
	logger      zerolog.Logger
	browserPool chan *rod.Browser
	launcher    *launcher.Launcher
	mutex       sync.Mutex
	isRunning   bool
}

// NewRenderFetcher creates the go-rod rendering backend. Start must be
// called before the first Fetch.
func NewRenderFetcher(cfg config.RenderBackend, logger zerolog.Logger) *RenderFetcher {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &RenderFetcher{
		cfg:         cfg,
		logger:      logger.With().Str("component", "RenderFetcher").Logger(),
		browserPool: make(chan *rod.Browser, poolSize),
	}
}

// Name implements Fetcher.
func (rf *RenderFetcher) Name() string { return "render" }

// Capabilities implements Fetcher.
func (rf *RenderFetcher) Capabilities() Capabilities {
	return Capabilities{FetchesStaticHTML: true, RendersScripts: true}
}

// Start launches the browser and fills the pool.
func (rf *RenderFetcher) Start() error {
	rf.mutex.Lock()
	defer rf.mutex.Unlock()

	if rf.isRunning {
		return nil
	}
	if !rf.cfg.Enabled {
		rf.logger.Info().Msg("Render backend is disabled in config")
		return nil
	}

	l := launcher.New()
	if rf.cfg.ChromePath != "" {
		l = l.Bin(rf.cfg.ChromePath)
	}
	if rf.cfg.UserDataDir != "" {
		l = l.UserDataDir(rf.cfg.UserDataDir)
	}

	l = l.
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("disable-default-apps").
		Set("disable-sync")

	if rf.cfg.DisableImages {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return common.WrapError(err, "failed to launch browser")
	}
	rf.launcher = l

	poolSize := cap(rf.browserPool)
	for i := 0; i < poolSize; i++ {
		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			rf.logger.Error().Err(err).Int("browser_index", i).Msg("Failed to connect browser")
			continue
		}
		rf.browserPool <- browser
	}

	rf.isRunning = true
	rf.logger.Info().Int("pool_size", poolSize).Msg("Render backend started")
	return nil
}

// Stop closes all browser instances and the launcher.
func (rf *RenderFetcher) Stop() {
	rf.mutex.Lock()
	defer rf.mutex.Unlock()

	if !rf.isRunning {
		return
	}

	close(rf.browserPool)
	for browser := range rf.browserPool {
		if browser != nil {
			_ = browser.Close()
		}
	}
	if rf.launcher != nil {
		rf.launcher.Cleanup()
	}

	rf.isRunning = false
	rf.logger.Info().Msg("Render backend stopped")
}

// running reads the lifecycle flag under the same lock Start and Stop write
// it with.
func (rf *RenderFetcher) running() bool {
	rf.mutex.Lock()
	defer rf.mutex.Unlock()
	return rf.isRunning
}

// Fetch renders the page and returns the serialized DOM.
func (rf *RenderFetcher) Fetch(ctx context.Context, req FetchRequest) (*RawContent, error) {
	if !rf.cfg.Enabled || !rf.running() {
		return nil, common.NewError("render backend not running or disabled")
	}

	browser, err := rf.getBrowser(ctx)
	if err != nil {
		return nil, err
	}
	defer rf.returnBrowser(browser)

	pageTimeout := time.Duration(rf.cfg.PageTimeoutSecs) * time.Second
	if pageTimeout <= 0 {
		pageTimeout = 45 * time.Second
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	page, err := browser.Context(timeoutCtx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, common.WrapError(err, "failed to create page")
	}
	defer page.Close()

	if err := page.Navigate(req.Endpoint); err != nil {
		return nil, rf.classifyError(req.Endpoint, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, rf.classifyError(req.Endpoint, err)
	}

	// Give client-side rendering a moment to settle after load.
	if rf.cfg.WaitStableMillis > 0 {
		select {
		case <-time.After(time.Duration(rf.cfg.WaitStableMillis) * time.Millisecond):
		case <-timeoutCtx.Done():
			return nil, common.WrapError(common.ErrTimeout, "render wait aborted by deadline")
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, rf.classifyError(req.Endpoint, err)
	}

	return &RawContent{
		URL:         req.Endpoint,
		Body:        []byte(html),
		ContentType: "text/html; charset=utf-8",
		StatusCode:  200,
		Backend:     rf.Name(),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (rf *RenderFetcher) getBrowser(ctx context.Context) (*rod.Browser, error) {
	select {
	case browser := <-rf.browserPool:
		return browser, nil
	case <-ctx.Done():
		return nil, common.WrapError(common.ErrTimeout, "aborted waiting for browser from pool")
	case <-time.After(10 * time.Second):
		return nil, common.NewError("timeout waiting for browser from pool")
	}
}

func (rf *RenderFetcher) returnBrowser(browser *rod.Browser) {
	if browser == nil {
		return
	}
	select {
	case rf.browserPool <- browser:
	default:
		_ = browser.Close()
	}
}

func (rf *RenderFetcher) classifyError(endpoint string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.WrapError(common.ErrTimeout, "page render timed out")
	}
	return common.NewNetworkError(endpoint, "page render failed", err)
}
