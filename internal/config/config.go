package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/pdfharvest/internal/download"
	"github.com/nao1215/pdfharvest/internal/merge"
	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/pipeline"
	"github.com/nao1215/pdfharvest/internal/render"
	"github.com/nao1215/pdfharvest/internal/transport"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pdfharvest"

	// DefaultMaxWorkers is the number of downloads running in parallel.
	DefaultMaxWorkers = download.DefaultConcurrency

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultChunkSize is the streaming copy buffer in bytes.
	DefaultChunkSize = download.DefaultChunkSize

	// DefaultRetryTimes is the number of retries after the first attempt.
	DefaultRetryTimes = download.DefaultRetryLimit

	// DefaultBaseDir receives downloads when nothing else is configured.
	DefaultBaseDir = "downloads"

	// DefaultRenderMaxPages bounds the same-site walk.
	DefaultRenderMaxPages = 20

	// DefaultRenderWait is how long the browser lets a page settle.
	DefaultRenderWait = render.DefaultSettleWait

	// Log rotation defaults for lumberjack.
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// Render modes.
const (
	RenderStatic  = "static"
	RenderBrowser = "browser"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds every option of a pdfharvest run. It is filled from
// NewConfig defaults, then the YAML file, then CLI flags.
type Config struct {
	MaxWorkers     int           `yaml:"max_workers"`
	Timeout        time.Duration `yaml:"timeout"`
	ChunkSize      int           `yaml:"chunk_size"`
	RetryTimes     int           `yaml:"retry_times"`
	FilterMode     string        `yaml:"filter_mode"`
	CustomKeywords []string      `yaml:"custom_keywords,omitempty"`

	// UserAgent is sent with page fetches and downloads.
	UserAgent string `yaml:"user_agent"`

	// VerifyTLS disables certificate checks when false.
	VerifyTLS bool `yaml:"verify_tls"`

	// Proxy is an optional SOCKS5 address in host:port form.
	Proxy string `yaml:"proxy,omitempty"`

	// Tor starts an embedded Tor daemon and routes traffic through it.
	Tor bool `yaml:"tor,omitempty"`

	Output  OutputConfig  `yaml:"output"`
	Merge   MergeConfig   `yaml:"merge"`
	Backoff BackoffConfig `yaml:"backoff"`
	Render  RenderConfig  `yaml:"render"`
	Log     LogConfig     `yaml:"log"`

	// Defaults apply to every host without an entry in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host name to its credentials and selectors.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// OutputConfig controls where downloads go.
type OutputConfig struct {
	BaseDir           string `yaml:"base_dir"`
	OverwriteExisting bool   `yaml:"overwrite_existing"`
}

// MergeConfig controls the merge step.
type MergeConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DeleteSources bool   `yaml:"delete_sources"`
	OutputName    string `yaml:"output_name"`

	// Order is "name" or "mtime".
	Order string `yaml:"order"`

	// Force replaces an existing merged file.
	Force bool `yaml:"force,omitempty"`
}

// BackoffConfig is the retry delay policy.
type BackoffConfig struct {
	Base   time.Duration `yaml:"base"`
	Max    time.Duration `yaml:"max"`
	Jitter float64       `yaml:"jitter"`
}

// RenderConfig controls page discovery.
type RenderConfig struct {
	// Mode is "static" or "browser".
	Mode     string `yaml:"mode"`
	Depth    int    `yaml:"depth"`
	MaxPages int    `yaml:"max_pages"`

	// Wait lets a browser-rendered page settle before the DOM is read.
	Wait time.Duration `yaml:"wait"`

	// Delay is the pause between page fetches during the same-site walk.
	Delay time.Duration `yaml:"delay,omitempty"`

	// Selectors are extra CSS selectors whose matches become candidates.
	Selectors []string `yaml:"selectors,omitempty"`

	// BrowserBin overrides the browser executable.
	BrowserBin string `yaml:"browser_bin,omitempty"`
}

// LogConfig controls the log output.
type LogConfig struct {
	// File tees records to a rotated file when set.
	File       string `yaml:"file,omitempty"`
	Format     string `yaml:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxWorkers: DefaultMaxWorkers,
		Timeout:    DefaultTimeout,
		ChunkSize:  DefaultChunkSize,
		RetryTimes: DefaultRetryTimes,
		FilterMode: model.FilterChartPrefix.String(),
		UserAgent:  render.DefaultUserAgent,
		VerifyTLS:  true,
		Output: OutputConfig{
			BaseDir: DefaultBaseDir,
		},
		Merge: MergeConfig{
			OutputName: merge.DefaultOutputName,
			Order:      merge.OrderByName.String(),
		},
		Backoff: BackoffConfig{
			Base:   download.DefaultBackoffBase,
			Max:    download.DefaultBackoffMax,
			Jitter: download.DefaultBackoffJitter,
		},
		Render: RenderConfig{
			Mode:     RenderStatic,
			MaxPages: DefaultRenderMaxPages,
			Wait:     DefaultRenderWait,
		},
		Log: LogConfig{
			Format:     LogFormatText,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
		Sites: make(map[string]SiteConfig),
	}
}

// XDGDataDir returns the directory holding the run history database.
// On Linux: ~/.local/share/pdfharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the directory for the browser profile.
// On Linux: ~/.cache/pdfharvest
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return ErrInvalidMaxWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.RetryTimes < 0 {
		return ErrInvalidRetryTimes
	}

	mode, err := model.ParseFilterMode(c.FilterMode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilterMode, err)
	}
	if mode == model.FilterCustomKeywords && len(model.CustomKeywordsPolicy(c.CustomKeywords...).Keywords) == 0 {
		return ErrNoKeywords
	}

	if strings.TrimSpace(c.Output.BaseDir) == "" {
		return ErrEmptyBaseDir
	}
	if name := c.Merge.OutputName; name == "" || strings.ContainsAny(name, `/\`) {
		return ErrInvalidMergeName
	}
	if _, err := merge.ParseOrder(c.Merge.Order); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMergeOrder, err)
	}

	if c.Backoff.Base < 0 || c.Backoff.Max < 0 || (c.Backoff.Max > 0 && c.Backoff.Max < c.Backoff.Base) {
		return ErrInvalidBackoff
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		return ErrInvalidJitter
	}

	switch c.Render.Mode {
	case RenderStatic, RenderBrowser:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRenderMode, c.Render.Mode)
	}
	if c.Render.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.Render.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Render.Wait < 0 || c.Render.Delay < 0 {
		return ErrInvalidWait
	}

	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}

	if c.Proxy != "" {
		if c.Tor {
			return ErrConflictingProxies
		}
		if !transport.ValidProxyAddress(c.Proxy) {
			return fmt.Errorf("%w: %q", transport.ErrInvalidProxyAddress, c.Proxy)
		}
	}

	return c.validateSelectors()
}

func (c *Config) validateSelectors() error {
	all := append([]string{}, c.Render.Selectors...)
	all = append(all, c.Defaults.Selectors...)
	for _, s := range c.Sites {
		all = append(all, s.Selectors...)
	}
	for _, sel := range all {
		if err := render.ValidateSelector(sel); err != nil {
			return err
		}
	}
	return nil
}

// Policy returns the filter policy selected by FilterMode.
func (c *Config) Policy() (model.FilterPolicy, error) {
	mode, err := model.ParseFilterMode(c.FilterMode)
	if err != nil {
		return model.FilterPolicy{}, fmt.Errorf("%w: %w", ErrInvalidFilterMode, err)
	}
	switch mode {
	case model.FilterCustomKeywords:
		return model.CustomKeywordsPolicy(c.CustomKeywords...), nil
	case model.FilterAllowAll:
		return model.AllowAllPolicy(), nil
	default:
		return model.ChartPrefixPolicy(), nil
	}
}

// PipelineOptions converts the configuration into controller options.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	policy, err := c.Policy()
	if err != nil {
		return pipeline.Options{}, err
	}
	order, err := merge.ParseOrder(c.Merge.Order)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("%w: %w", ErrInvalidMergeOrder, err)
	}

	return pipeline.Options{
		Policy:      policy,
		OutputDir:   c.Output.BaseDir,
		Concurrency: c.MaxWorkers,
		RetryLimit:  c.RetryTimes,
		ChunkSize:   c.ChunkSize,
		Overwrite:   c.Output.OverwriteExisting,
		Backoff: download.Backoff{
			Base:   c.Backoff.Base,
			Max:    c.Backoff.Max,
			Jitter: c.Backoff.Jitter,
		},
		MaxDepth:        c.Render.Depth,
		MaxPages:        c.Render.MaxPages,
		PageDelay:       c.Render.Delay,
		Merge:           c.Merge.Enabled,
		DeleteSources:   c.Merge.DeleteSources,
		MergeOutputName: c.Merge.OutputName,
		MergeOrder:      order,
		ForceMerge:      c.Merge.Force,
	}, nil
}

// TransportOptions converts the configuration into HTTP client options.
// proxyAddr overrides Proxy, which is how a started Tor daemon is wired in.
func (c *Config) TransportOptions(proxyAddr string) transport.Options {
	if proxyAddr == "" {
		proxyAddr = c.Proxy
	}

	sites := make(map[string]transport.Site, len(c.Sites))
	for host := range c.Sites {
		s := c.GetSiteConfig(host)
		sites[host] = transport.Site{Cookie: s.Cookie, Headers: s.Headers}
	}

	return transport.Options{
		Timeout:   c.Timeout,
		UserAgent: c.UserAgent,
		VerifyTLS: c.VerifyTLS,
		Proxy:     proxyAddr,
		Default: transport.Site{
			Cookie:  c.Defaults.Cookie,
			Headers: c.Defaults.Headers,
		},
		Sites: sites,
	}
}

// SelectorsFor returns the global selectors plus those configured for the
// hosts of sources, without duplicates.
func (c *Config) SelectorsFor(sources ...string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sels []string) {
		for _, s := range sels {
			if s = strings.TrimSpace(s); s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}

	add(c.Render.Selectors)
	if len(sources) == 0 {
		add(c.Defaults.Selectors)
	}
	for _, src := range sources {
		add(c.GetSiteConfig(hostOf(src)).Selectors)
	}
	return out
}
