package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/pdfharvest/internal/config"
	"github.com/nao1215/pdfharvest/internal/database"
	"github.com/nao1215/pdfharvest/internal/download"
	"github.com/nao1215/pdfharvest/internal/metrics"
	"github.com/nao1215/pdfharvest/internal/model"
	"github.com/nao1215/pdfharvest/internal/pipeline"
	"github.com/nao1215/pdfharvest/internal/render"
	"github.com/nao1215/pdfharvest/internal/report"
	"github.com/nao1215/pdfharvest/internal/transport"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <page-url>...",
		Short: "Discover and download PDFs linked from web pages",
		Long: `Crawl fetches the given pages, collects links to PDF documents, keeps the
ones accepted by the filter policy and downloads them concurrently with
retries and exponential backoff.

Filter policies:
  chart_prefix     file names or link texts starting with Figure, Table, 圖 or 表 (default)
  custom_keywords  file names or link texts containing one of --keywords
  all              every discovered PDF link

With --merge an existing merged file in the output directory is replaced.

Examples:
  # Download table and figure PDFs from a report page
  pdfharvest crawl https://example.com/reports/2025

  # Download every PDF whose name mentions "budget" and merge them
  pdfharvest crawl -p custom_keywords -k budget --merge https://example.com/

  # Render JavaScript pages in a headless browser and follow sub-pages
  pdfharvest crawl --render browser --depth 1 https://example.com/

  # Route traffic through an embedded Tor daemon
  pdfharvest crawl --tor http://exampleonion.onion/docs

  # Crawl several sites, each into its own directory, two at a time
  pdfharvest crawl --batch 2 https://a.example/ https://b.example/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Filter flags
	cmd.Flags().StringP("policy", "p", config.NewConfig().FilterMode,
		"Filter policy: chart_prefix, custom_keywords or all")
	cmd.Flags().StringSliceP("keywords", "k", nil,
		"Keywords for the custom_keywords policy (comma separated)")

	// Download flags
	cmd.Flags().StringP("dir", "d", config.DefaultBaseDir,
		"Directory receiving the downloaded files")
	cmd.Flags().IntP("workers", "w", config.DefaultMaxWorkers,
		"Number of parallel downloads")
	cmd.Flags().IntP("retries", "r", config.DefaultRetryTimes,
		"Retries after the first failed attempt")
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize,
		"Copy buffer size in bytes")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Bool("overwrite", false,
		"Download files that already exist again")
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification")

	// Discovery flags
	cmd.Flags().String("render", config.RenderStatic,
		"Page renderer: static or browser")
	cmd.Flags().Int("depth", 0,
		"Follow same-site links this many levels deep")
	cmd.Flags().Int("max-pages", config.DefaultRenderMaxPages,
		"Maximum number of pages rendered per run")
	cmd.Flags().Duration("wait", config.DefaultRenderWait,
		"Time a browser-rendered page is given to settle")
	cmd.Flags().StringSlice("selector", nil,
		"Extra CSS selector whose matches are candidate links (repeatable)")
	cmd.Flags().Bool("show-browser", false,
		"Show the browser window instead of running headless (--render browser)")

	// Network flags
	cmd.Flags().String("proxy", "",
		"Route traffic through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route traffic through it")
	cmd.Flags().Duration("tor-timeout", transport.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Merge flags
	cmd.Flags().Bool("merge", false,
		"Merge the downloaded files after the run")
	cmd.Flags().Bool("delete", false,
		"Delete merged source files after a successful merge")
	cmd.Flags().String("merge-name", config.NewConfig().Merge.OutputName,
		"Merged file name (.pdf is appended)")
	cmd.Flags().String("order", config.NewConfig().Merge.Order,
		"Merge order: name or mtime")

	// Run flags
	cmd.Flags().IntP("batch", "b", 0,
		"Crawl each source as its own run in its own subdirectory, this many at a time")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address during the run (e.g. :9090)")
	cmd.Flags().Bool("no-history", false,
		"Do not save the run to the history database")
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().Bool("quiet", false,
		"Do not print per-file progress")

	addReportFlags(cmd)

	return cmd
}

// crawlRun bundles what a crawl needs after flags have been resolved.
type crawlRun struct {
	cfg         *config.Config
	sources     []string
	batch       int
	torTimeout  time.Duration
	metrics     string
	history     string
	quiet       bool
	showBrowser bool
	report      reportOptions
	stdout      io.Writer
	stderr      io.Writer
	logger      *slog.Logger
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCrawlFlags(cmd, cfg); err != nil {
		return err
	}
	if len(args) == 0 {
		return config.ErrNoSource
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ro, err := getReportOptions(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	run := &crawlRun{
		cfg:     cfg,
		sources: args,
		report:  ro,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
		logger:  logger,
	}
	if run.batch, err = cmd.Flags().GetInt("batch"); err != nil {
		return err
	}
	if run.torTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
		return err
	}
	if run.metrics, err = cmd.Flags().GetString("metrics-addr"); err != nil {
		return err
	}
	if run.quiet, err = cmd.Flags().GetBool("quiet"); err != nil {
		return err
	}
	if run.quiet {
		run.report.echo = false
	}
	if run.showBrowser, err = cmd.Flags().GetBool("show-browser"); err != nil {
		return err
	}
	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return err
	}
	if !noHistory {
		if run.history, err = cmd.Flags().GetString("history-dir"); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run.execute(ctx)
}

// applyCrawlFlags overrides file values with the flags the user set.
func applyCrawlFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("policy", func() (e error) { cfg.FilterMode, e = f.GetString("policy"); return })
	set("keywords", func() (e error) {
		cfg.CustomKeywords, e = f.GetStringSlice("keywords")
		if !f.Changed("policy") {
			cfg.FilterMode = model.FilterCustomKeywords.String()
		}
		return
	})
	set("dir", func() (e error) { cfg.Output.BaseDir, e = f.GetString("dir"); return })
	set("workers", func() (e error) { cfg.MaxWorkers, e = f.GetInt("workers"); return })
	set("retries", func() (e error) { cfg.RetryTimes, e = f.GetInt("retries"); return })
	set("chunk-size", func() (e error) { cfg.ChunkSize, e = f.GetInt("chunk-size"); return })
	set("timeout", func() (e error) { cfg.Timeout, e = f.GetDuration("timeout"); return })
	set("overwrite", func() (e error) { cfg.Output.OverwriteExisting, e = f.GetBool("overwrite"); return })
	set("insecure", func() error {
		insecure, e := f.GetBool("insecure")
		cfg.VerifyTLS = !insecure
		return e
	})
	set("render", func() (e error) { cfg.Render.Mode, e = f.GetString("render"); return })
	set("depth", func() (e error) { cfg.Render.Depth, e = f.GetInt("depth"); return })
	set("max-pages", func() (e error) { cfg.Render.MaxPages, e = f.GetInt("max-pages"); return })
	set("wait", func() (e error) { cfg.Render.Wait, e = f.GetDuration("wait"); return })
	set("selector", func() error {
		sels, e := f.GetStringSlice("selector")
		cfg.Render.Selectors = append(cfg.Render.Selectors, sels...)
		return e
	})
	set("proxy", func() (e error) { cfg.Proxy, e = f.GetString("proxy"); return })
	set("tor", func() (e error) { cfg.Tor, e = f.GetBool("tor"); return })
	set("merge", func() (e error) { cfg.Merge.Enabled, e = f.GetBool("merge"); return })
	set("delete", func() (e error) { cfg.Merge.DeleteSources, e = f.GetBool("delete"); return })
	set("merge-name", func() (e error) { cfg.Merge.OutputName, e = f.GetString("merge-name"); return })
	set("order", func() (e error) { cfg.Merge.Order, e = f.GetString("order"); return })

	return err
}

func (r *crawlRun) execute(ctx context.Context) error {
	proxyAddr, stopTor, err := r.setupProxy(ctx)
	if err != nil {
		return err
	}
	defer stopTor()

	client, err := transport.New(r.cfg.TransportOptions(proxyAddr))
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	renderer := r.newRenderer(client, proxyAddr)
	defer func() {
		if err := renderer.Close(); err != nil {
			r.logger.Warn("failed to close renderer", "error", err)
		}
	}()

	recorder := metrics.NewRecorder()
	if r.metrics != "" {
		srv, err := metrics.Serve(r.metrics, recorder, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // best effort on exit
		}()
	}

	opts, err := r.cfg.PipelineOptions()
	if err != nil {
		return err
	}

	ctlOpts := []pipeline.ControllerOption{
		pipeline.WithDownloadObserver(recorder),
		pipeline.WithMergeObserver(recorder),
		pipeline.WithControllerLogger(r.logger),
	}
	if !r.quiet {
		ctlOpts = append(ctlOpts, pipeline.WithProgress(progressPrinter(r.stderr)))
	}
	controller := pipeline.NewController(renderer, client, opts, ctlOpts...)

	var db *database.HistoryDB
	if r.history != "" {
		db, err = database.Open(r.history, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
	}

	w, closeReport, err := r.report.writer(r.stdout)
	if err != nil {
		return err
	}
	defer closeReport() //nolint:errcheck // write errors are reported per report

	if r.batch > 0 && len(r.sources) > 1 {
		return r.crawlBatch(ctx, controller, w, db)
	}

	rep, runErr := controller.Crawl(ctx, r.sources...)
	r.finish(ctx, w, db, rep)
	return runError(rep, runErr)
}

func (r *crawlRun) crawlBatch(ctx context.Context, controller *pipeline.Controller, w report.Writer, db *database.HistoryDB) error {
	fmt.Fprintf(r.stderr, "Crawling %d sources (concurrency: %d)...\n", len(r.sources), r.batch)

	bp := pipeline.NewBatchProcessor(controller,
		pipeline.WithConcurrency(r.batch),
		pipeline.WithBatchLogger(r.logger),
	)

	var (
		mu     sync.Mutex
		failed int
	)
	err := bp.ProcessBatchWithCallback(ctx, r.sources, func(rep *model.RunReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(r.stderr, "[%d/%d] Run finished: %s\n", index+1, len(r.sources), rep.Sources[0])
		r.finish(ctx, w, db, rep)
		if !rep.Successful() {
			failed++
		}
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(r.sources))
	}
	return nil
}

// finish writes the report and saves it to the history.
func (r *crawlRun) finish(ctx context.Context, w report.Writer, db *database.HistoryDB, rep *model.RunReport) {
	if _, err := w.Write(rep); err != nil {
		r.logger.Error("failed to write report", "run_id", rep.RunID, "error", err)
	}

	if db == nil {
		return
	}
	// A cancelled run is still recorded.
	if err := db.SaveRun(context.WithoutCancel(ctx), rep); err != nil {
		r.logger.Error("failed to save run", "run_id", rep.RunID, "error", err)
		return
	}
	r.logger.Info("run saved to history", "run_id", rep.RunID, "db", db.Path())
}

// runError maps the outcome of a run to the command's exit error.
func runError(rep *model.RunReport, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) || rep.Cancelled:
		return errors.New("run cancelled; partial results were reported")
	default:
		return err
	}
}

// setupProxy starts the embedded Tor daemon or checks the configured SOCKS5
// proxy. It returns the proxy address to dial through and a stop function.
func (r *crawlRun) setupProxy(ctx context.Context) (string, func(), error) {
	noop := func() {}

	if r.cfg.Tor {
		fmt.Fprintln(r.stderr, "Starting embedded Tor daemon...")
		fmt.Fprintf(r.stderr, "This may take 1-3 minutes while Tor bootstraps.\n\n")

		tor, err := transport.StartTor(ctx, r.torTimeout)
		if err != nil {
			return "", noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop := func() {
			r.logger.Info("stopping embedded Tor daemon")
			if err := tor.Stop(); err != nil {
				r.logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		addr, err := tor.SocksAddr()
		if err != nil {
			stop()
			return "", noop, err
		}
		if status := transport.CheckProxy(ctx, addr); status != transport.ProxyStatusOK {
			stop()
			return "", noop, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
		}
		r.logger.Info("embedded Tor daemon started", "socks", addr)
		return addr, stop, nil
	}

	if r.cfg.Proxy != "" {
		if status := transport.CheckProxy(ctx, r.cfg.Proxy); status != transport.ProxyStatusOK {
			return "", noop, fmt.Errorf("proxy check failed for %s: %w", r.cfg.Proxy, status.Err())
		}
		r.logger.Info("SOCKS5 proxy verified", "address", r.cfg.Proxy)
		return r.cfg.Proxy, noop, nil
	}

	return "", noop, nil
}

// newRenderer returns the renderer selected by render.mode.
func (r *crawlRun) newRenderer(client *http.Client, proxyAddr string) render.Renderer {
	selectors := r.cfg.SelectorsFor(r.sources...)

	if r.cfg.Render.Mode == config.RenderBrowser {
		opts := []render.BrowserOption{
			render.WithUserDataDir(filepath.Join(config.XDGCacheDir(), "browser")),
			render.WithBrowserUserAgent(r.cfg.UserAgent),
			render.WithSettleWait(r.cfg.Render.Wait),
			render.WithClickTimeout(r.cfg.Timeout),
			render.WithHeadless(!r.showBrowser),
			render.WithBrowserSelectors(selectors...),
			render.WithBrowserLogger(r.logger),
		}
		if r.cfg.Render.BrowserBin != "" {
			opts = append(opts, render.WithBrowserBin(r.cfg.Render.BrowserBin))
		}
		if proxyAddr != "" {
			opts = append(opts, render.WithBrowserProxy("socks5://"+proxyAddr))
		}
		return render.NewBrowser(opts...)
	}

	return render.NewStatic(client,
		render.WithUserAgent(r.cfg.UserAgent),
		render.WithSelectors(selectors...),
		render.WithStaticLogger(r.logger),
	)
}

// progressPrinter prints one line per finished download.
func progressPrinter(w io.Writer) download.ProgressFunc {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	skip := color.New(color.FgYellow)

	return func(done, total int, o model.DownloadOutcome) {
		name := filepath.Base(o.Task.TargetPath)
		prefix := fmt.Sprintf("[%d/%d] ", done, total)

		switch o.Status {
		case model.StatusSuccess:
			ok.Fprintf(w, "%s%-7s %s\n", prefix, o.Status, name) //nolint:errcheck // progress output
		case model.StatusSkipped:
			skip.Fprintf(w, "%s%-7s %s (exists)\n", prefix, o.Status, name) //nolint:errcheck // progress output
		default:
			reason := ""
			if o.Err != nil {
				reason = o.Err.Error()
			}
			bad.Fprintf(w, "%s%-7s %s: %s\n", prefix, o.Status, name, reason) //nolint:errcheck // progress output
		}
	}
}
