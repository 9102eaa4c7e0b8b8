package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"repfinds.local/internal/app/linkconv"
	"repfinds.local/internal/app/linkconv/fetch"
	"repfinds.local/internal/platform/config"
	"repfinds.local/internal/platform/db"
	"repfinds.local/internal/platform/logging"
	"repfinds.local/internal/platform/migrate"
)

func setupLogging(w io.Writer, level string) {
	logging.Setup(w, config.ParseLevel(level), "text", "")
}

func loadCatalog(cfg config.Config) (*linkconv.Catalog, error) {
	return linkconv.LoadCatalogFile(cfg.AgentCatalogFile, cfg.ShortlinkBase)
}

type convertOptions struct {
	agent       string
	stdin       bool
	offline     bool
	concurrency int
	timeout     time.Duration
}

// perInputTimeout 给批量里的每一条单独加超时
type perInputTimeout struct {
	conv    *linkconv.Converter
	timeout time.Duration
}

func (p perInputTimeout) ConvertLink(ctx context.Context, input, agent string) linkconv.ConversionResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.conv.ConvertLink(ctx, input, agent)
}

func runConvert(cmd *cobra.Command, args []string, opts convertOptions) error {
	cfg := config.Load()
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	inputs := args
	if opts.stdin {
		lines, err := readLines(cmd.InOrStdin())
		if err != nil {
			return err
		}
		inputs = append(inputs, lines...)
	}
	if len(inputs) == 0 {
		return errors.New("no input links")
	}

	var fetcher linkconv.Fetcher
	if !opts.offline && cfg.FetchEnabled {
		fetcher = fetch.New(fetch.Options{
			Timeout:      cfg.FetchTimeout,
			UserAgent:    cfg.FetchUserAgent,
			MaxBody:      cfg.FetchMaxBody,
			MaxRedirects: cfg.FetchMaxRedirects,
		})
	}
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.ConvertTimeout
	}
	conv := perInputTimeout{conv: linkconv.NewConverter(catalog, fetcher), timeout: timeout}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	results := linkconv.ConvertBatch(ctx, conv, inputs, opts.agent, opts.concurrency)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// readLines 跳过空行和 # 开头的注释
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return out, nil
}

type generateOptions struct {
	agent    string
	platform string
	id       string
	code     string
	compact  bool
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	cfg := config.Load()
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	mp := linkconv.ParseMarketplace(opts.platform)
	if !mp.Valid() {
		return fmt.Errorf("unknown platform %q", opts.platform)
	}
	pid := linkconv.SanitizeProductID(opts.id)
	if pid == "" {
		return fmt.Errorf("invalid product id %q", opts.id)
	}
	gen := linkconv.NewGenerator(catalog)
	out := cmd.OutOrStdout()

	if opts.agent == "" {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, l := range gen.AllAgentLinks(string(mp), pid, "") {
			fmt.Fprintf(tw, "%s\t%s\n", l.Agent, l.Link)
		}
		return tw.Flush()
	}
	if !linkconv.KnownAgent(opts.agent) {
		return fmt.Errorf("unknown agent %q", opts.agent)
	}

	if opts.compact {
		codec, err := linkconv.NewCompactCodec(cfg.CompactAlphabet)
		if err != nil {
			return err
		}
		code, err := codec.Encode(opts.agent, mp, pid)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, catalog.ShortlinkBase+"/s/"+code)
		return nil
	}

	link, ok := gen.GenerateAgentLink(opts.agent, string(mp), pid, "", opts.code)
	if !ok {
		return fmt.Errorf("unknown agent %q", opts.agent)
	}
	fmt.Fprintln(out, link)
	return nil
}

func runAgents(cmd *cobra.Command) error {
	catalog, err := loadCatalog(config.Load())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tCODE\tHOSTS")
	for _, a := range linkconv.NewGenerator(catalog).Agents() {
		code := a.AffiliateCode
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Key, a.Name, code, strings.Join(a.Hosts, ","))
	}
	return tw.Flush()
}

func runResolve(cmd *cobra.Command, marketplace, item string) error {
	catalog, err := loadCatalog(config.Load())
	if err != nil {
		return err
	}
	res, err := linkconv.NewConverter(catalog, nil).ResolveMarketplaceAndID(marketplace, item)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}

func runMigrateUp(cmd *cobra.Command, dir string, dryRun bool) error {
	cfg := config.Load()
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	pool, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	res, err := migrate.Up(ctx, pool, migrate.Options{Dir: dir, DryRun: dryRun})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "migrations dir: %s\n", res.Dir)
	for _, f := range res.AppliedFiles {
		fmt.Fprintf(out, "applied  %s\n", f)
	}
	for _, f := range res.PendingFiles {
		fmt.Fprintf(out, "pending  %s\n", f)
	}
	fmt.Fprintf(out, "%d already applied\n", len(res.SkippedFiles))
	return nil
}
