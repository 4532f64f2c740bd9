package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tour-booker/client"
	"tour-booker/config"
	"tour-booker/logger"
)

// fieldFlags collects repeated -set name=value pairs in order.
type fieldFlags [][2]string

func (f *fieldFlags) String() string {
	parts := make([]string, len(*f))
	for i, kv := range *f {
		parts[i] = kv[0] + "=" + kv[1]
	}
	return strings.Join(parts, ",")
}

func (f *fieldFlags) Set(v string) error {
	name, value, ok := strings.Cut(v, "=")
	if !ok || name == "" {
		return fmt.Errorf("want name=value, got %q", v)
	}
	*f = append(*f, [2]string{name, value})
	return nil
}

func main() {
	var fields fieldFlags
	page := flag.String("page", "book-tour.html", "booking page holding the form")
	at := flag.String("at", "", "fire time (RFC3339); submit immediately when empty")
	out := flag.String("out", "", "write the page after submission to this file")
	confirm := flag.Bool("confirm", false, "wait for Enter after each alert")
	flag.Var(&fields, "set", "fill a form field, name=value (repeatable)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, log, cfg, *page, *at, *out, *confirm, fields); err != nil {
		log.Fatal().Err(err).Msg("booking run failed")
	}
}

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config, pagePath, at, outPath string, confirm bool, fields fieldFlags) error {
	var target time.Time
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		target = t
	}

	pg, err := client.LoadPageFile(pagePath)
	if err != nil {
		return err
	}
	form, err := pg.Form(cfg.FormSelector)
	if err != nil {
		return err
	}
	success, err := pg.SuccessMessage()
	if err != nil {
		return err
	}
	for _, kv := range fields {
		if err := form.Fill(kv[0], kv[1]); err != nil {
			return err
		}
	}
	if bad := form.InvalidFields(); len(bad) > 0 {
		log.Warn().Strs("fields", bad).Msg("form does not pass validation")
	}

	fm := client.NewFingerprintManager()
	if cfg.UserAgentFile != "" {
		n, err := fm.LoadUserAgents(cfg.UserAgentFile)
		if err != nil {
			return err
		}
		log.Info().Int("count", n).Str("file", cfg.UserAgentFile).Msg("loaded user agents")
	}

	proxies := client.NewProxyPool()
	if cfg.ProxyFile != "" {
		n, err := proxies.LoadProxies(cfg.ProxyFile)
		if err != nil {
			return err
		}
		log.Info().Int("count", n).Str("file", cfg.ProxyFile).Msg("loaded proxies")
	}

	c, err := newClient(log, cfg, fm, proxies)
	if err != nil {
		return err
	}

	notifier := client.NewConsoleNotifier(os.Stdout, nil)
	if confirm {
		notifier.In = os.Stdin
	}

	h := client.NewHandler(c, success, notifier,
		client.WithEndpoint(cfg.Endpoint),
		client.WithLogger(log),
	)

	if !target.IsZero() {
		sched := client.NewScheduler()
		log.Info().Time("at", target).Msg("waiting for fire time")
		drift, err := sched.SleepUntil(ctx, target)
		if err != nil {
			return err
		}
		sched.LogDrift(log, drift)
	}

	outcome := h.Submit(ctx, client.NewSubmitEvent(form))

	entry := client.NewSubmissionLog(h.Endpoint(), pagePath, client.Describe(c.ProxyURL()), outcome, form.SubmitButton(), success)
	entry.TargetTime = target
	client.PrintSubmissionLog(os.Stdout, entry)

	if cfg.LogFile != "" {
		if err := client.WriteStructuredLog(entry, cfg.LogFile); err != nil {
			log.Error().Err(err).Str("file", cfg.LogFile).Msg("could not write structured log")
		}
	}

	if outPath != "" {
		html, err := pg.HTML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, []byte(html), 0o644); err != nil {
			return err
		}
		log.Info().Str("file", outPath).Msg("wrote page")
	}
	return nil
}

// newClient builds the booking client on the sticky proxy, rotating past
// entries the transport cannot use. An empty pool goes direct.
func newClient(log zerolog.Logger, cfg *config.Config, fm *client.FingerprintManager, proxies *client.ProxyPool) (*client.Client, error) {
	attempts := max(proxies.Len(), 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		proxyURL := proxies.Sticky()
		c, err := client.NewClient(client.ClientOptions{
			Timeout:      cfg.Timeout,
			ProxyURL:     proxyURL,
			Fingerprint:  cfg.Fingerprint,
			Fingerprints: fm,
		})
		if err == nil {
			return c, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("proxy", client.Describe(proxyURL)).Msg("skipping unusable proxy")
		proxies.RotateSticky()
	}
	return nil, fmt.Errorf("no usable proxy: %w", lastErr)
}
