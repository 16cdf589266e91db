// pmcharvest fetches PubMed Central articles as JATS XML and converts
// them into structured JSON artifacts.
//
// Exactly one input mode must be given:
//
//	pmcharvest --pmcids=PMC7181753,PMC3539614
//	pmcharvest --pmids=32169119 --api-key=$API_KEY
//	pmcharvest --dois=10.1038/s41586-020-2012-7
//	pmcharvest --id-file=ids.txt --workers=4
//	pmcharvest --dir=./dumps --output-dir=./out
//	pmcharvest --files=a.xml,b.xml --format=stream
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
	"github.com/pmcharvest/pmcharvest/internal/batch"
	"github.com/pmcharvest/pmcharvest/internal/build"
	"github.com/pmcharvest/pmcharvest/internal/config"
	"github.com/pmcharvest/pmcharvest/internal/domain"
	"github.com/pmcharvest/pmcharvest/internal/ids"
	"github.com/pmcharvest/pmcharvest/internal/ratelimit"
	"github.com/pmcharvest/pmcharvest/internal/retry"
	"github.com/pmcharvest/pmcharvest/internal/serialize"
	"github.com/pmcharvest/pmcharvest/pkg/entrez"
	"github.com/pmcharvest/pmcharvest/pkg/idconv"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitAllFailed = 3
	exitBadOutput = 4

	defaultOutDir = "./pmc_output"
	formatPerItem = "per-item"
	formatStream  = "stream"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		pmcids    = flag.String("pmcids", "", "comma-separated PMCIDs to fetch (PMC prefix optional)")
		pmids     = flag.String("pmids", "", "comma-separated PMIDs to resolve and fetch")
		dois      = flag.String("dois", "", "comma-separated DOIs to resolve and fetch")
		idFile    = flag.String("id-file", "", "file with one identifier per line (PMCID, PMID, or DOI)")
		dir       = flag.String("dir", "", "directory of local JATS XML files to convert")
		files     = flag.String("files", "", "comma-separated local JATS XML files to convert")
		outputDir = flag.String("output-dir", defaultOutDir, "directory for artifacts and summary.json")
		workers   = flag.Int("workers", 0, "concurrent workers (default WORKERS env or 10)")
		format    = flag.String("format", formatPerItem, "artifact layout: per-item or stream")
		apiKey    = flag.String("api-key", "", "NCBI API key (default API_KEY env)")
		timeout   = flag.Int("timeout", 0, "per-request timeout in seconds (default TIMEOUT env or 60)")
		retries   = flag.Int("retries", 0, "attempts per article (default RETRIES env or 3)")
		cacheDir  = flag.String("cache-dir", "", "optional cache for fetched XML")
		verbose   = flag.Bool("verbose", false, "debug logging")
		quiet     = flag.Bool("quiet", false, "errors only")
	)
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	switch {
	case *verbose:
		log.SetLevel(logrus.DebugLevel)
	case *quiet:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	modes := 0
	for _, m := range []string{*pmcids, *pmids, *dois, *idFile, *dir, *files} {
		if m != "" {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of --pmcids, --pmids, --dois, --id-file, --dir, --files is required")
		flag.Usage()
		return exitUsage
	}
	if *format != formatPerItem && *format != formatStream {
		fmt.Fprintf(os.Stderr, "unknown --format %q\n", *format)
		return exitUsage
	}

	cfg := config.Load()
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *timeout > 0 {
		cfg.Timeout = time.Duration(*timeout) * time.Second
	}
	if *retries > 0 {
		cfg.Retries = *retries
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		return exitUsage
	}

	if err := ensureWritable(*outputDir); err != nil {
		log.WithError(err).Errorf("output dir %s is not writable", *outputDir)
		return exitBadOutput
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &harvester{
		cfg:       cfg,
		log:       log,
		outputDir: *outputDir,
		stream:    *format == formatStream,
	}
	switch {
	case *pmcids != "":
		app.inputKind = ids.PMCID
	case *pmids != "":
		app.inputKind = ids.PMID
	case *dois != "":
		app.inputKind = ids.DOI
	}

	limiter := ratelimit.New(cfg.RateLimit())
	emails := ratelimit.NewEmailPool(cfg.Emails)
	httpTimeout := cfg.Timeout
	networkMode := *dir == "" && *files == ""

	if networkMode {
		fetcher := entrez.NewClient(
			entrez.WithAPIKey(cfg.APIKey),
			entrez.WithLimiter(limiter),
			entrez.WithEmailPool(emails),
			entrez.WithLogger(log),
			entrez.WithCacheDir(*cacheDir),
			entrez.WithHTTPClient(httpClient(httpTimeout)),
		)
		app.builder = &build.Builder{
			Fetcher:  fetcher,
			Retry:    retry.Default(cfg.Retries),
			Log:      log,
			Validate: true,
		}
		app.resolver = idconv.NewClient(
			idconv.WithLimiter(limiter),
			idconv.WithEmailPool(emails),
			idconv.WithLogger(log),
			idconv.WithHTTPClient(httpClient(httpTimeout)),
		)
	} else {
		app.builder = &build.Builder{Log: log, Validate: true}
	}

	items, err := collectItems(*pmcids, *pmids, *dois, *idFile, *dir, *files)
	if err != nil {
		log.WithError(err).Error("could not assemble work list")
		if apperr.Is(err, apperr.UnsupportedInput) || apperr.Is(err, apperr.NotFound) {
			return exitUsage
		}
		return exitFailure
	}
	items = batch.Dedupe(items)
	if len(items) == 0 {
		log.Error("no work to do")
		return exitUsage
	}
	log.WithField("items", len(items)).Info("starting batch")

	runner := &batch.Runner{Workers: cfg.Workers, Log: log}
	outcome, runErr := runner.Run(ctx, items, app.process)

	if _, err := outcome.Summary.WriteFile(*outputDir); err != nil {
		log.WithError(err).Error("could not write summary.json")
	}
	log.WithFields(logrus.Fields{
		"successful": outcome.Summary.Successful,
		"failed":     outcome.Summary.Failed,
		"elapsed":    fmt.Sprintf("%.1fs", outcome.Summary.ElapsedSeconds),
	}).Info("batch finished")

	if runErr != nil && apperr.Is(runErr, apperr.ConfigError) {
		return exitUsage
	}
	if networkMode && outcome.Summary.Successful == 0 && outcome.Summary.Failed > 0 {
		return exitAllFailed
	}
	if outcome.Summary.Failed > 0 || runErr != nil {
		return exitFailure
	}
	return exitOK
}

// harvester carries the per-run pipeline state shared by workers.
type harvester struct {
	cfg       *config.Config
	log       logrus.FieldLogger
	builder   *build.Builder
	resolver  *idconv.Client
	outputDir string

	// inputKind is the identifier type of the chosen input mode.
	// Unknown means mixed id-file input, classified per line.
	inputKind ids.Kind

	stream   bool
	streamMu sync.Mutex

	resolveMu sync.Mutex
	resolved  map[string]string // original id -> numeric PMCID
}

// process handles one batch item end to end.
func (h *harvester) process(ctx context.Context, item batch.Item) (string, int, error) {
	var (
		doc      *domain.Document
		attempts int
		err      error
	)
	if item.Path != "" {
		attempts = 1
		doc, err = h.builder.FromFile(item.Path)
	} else {
		pmcid, rerr := h.resolve(ctx, item.ID)
		if rerr != nil {
			return "", 1, rerr
		}
		doc, attempts, err = h.builder.FromID(ctx, pmcid)
	}
	if err != nil {
		return "", attempts, err
	}

	if h.stream {
		h.streamMu.Lock()
		defer h.streamMu.Unlock()
		if err := serialize.WriteStream(os.Stdout, doc); err != nil {
			return "", attempts, err
		}
		return "", attempts, nil
	}
	var path string
	if doc.PMCID == "" && item.Path != "" {
		// No PMC identifier anywhere; name the artifact after the source
		// file so id-less inputs in one batch cannot overwrite each other.
		name := strings.TrimSuffix(filepath.Base(item.Path), filepath.Ext(item.Path)) + ".json"
		path, err = serialize.WriteFileAs(h.outputDir, name, doc)
	} else {
		path, err = serialize.WriteFile(h.outputDir, doc)
	}
	if err != nil {
		return "", attempts, err
	}
	return path, attempts, nil
}

// resolve maps one input identifier to a numeric PMCID, calling the ID
// converter for PMIDs and DOIs. The input mode decides how bare digits
// are read; id-file input falls back to shape classification, where
// digits mean PMCID. Results are memoized per run.
func (h *harvester) resolve(ctx context.Context, id string) (string, error) {
	kind := h.inputKind
	if kind == ids.Unknown {
		kind = ids.Classify(id)
	}
	switch kind {
	case ids.PMCID:
		return ids.NormalizePMCID(id)
	case ids.PMID, ids.DOI:
		h.resolveMu.Lock()
		if pmcid, ok := h.resolved[id]; ok {
			h.resolveMu.Unlock()
			return pmcid, nil
		}
		h.resolveMu.Unlock()
		if h.resolver == nil {
			return "", apperr.New(apperr.ConfigError, "main.resolve", "no ID converter in local mode")
		}
		pmcid, err := h.resolver.PMCIDFor(ctx, id)
		if err != nil {
			return "", err
		}
		h.resolveMu.Lock()
		if h.resolved == nil {
			h.resolved = map[string]string{}
		}
		h.resolved[id] = pmcid
		h.resolveMu.Unlock()
		return pmcid, nil
	default:
		return "", apperr.New(apperr.UnsupportedInput, "main.resolve", "unrecognized identifier %q", id)
	}
}

// collectItems turns the chosen input mode into a work list. Remote
// items carry the identifier as given; ledger entries use that form.
func collectItems(pmcids, pmids, dois, idFile, dir, files string) ([]batch.Item, error) {
	switch {
	case pmcids != "":
		return idItems(splitList(pmcids), ids.PMCID), nil
	case pmids != "":
		return idItems(splitList(pmids), ids.PMID), nil
	case dois != "":
		return idItems(splitList(dois), ids.DOI), nil
	case idFile != "":
		lines, err := readLines(idFile)
		if err != nil {
			return nil, err
		}
		return idItems(lines, ids.Unknown), nil
	case dir != "":
		paths, err := build.WalkDirectory(dir)
		if err != nil {
			return nil, err
		}
		return pathItems(paths), nil
	default:
		return pathItems(splitList(files)), nil
	}
}

// idItems builds remote work items. PMCIDs are canonicalized up front so
// Dedupe collapses differently spelled duplicates before any fetching;
// the spelling the user gave survives in Item.ID for the ledger.
func idItems(list []string, kind ids.Kind) []batch.Item {
	out := make([]batch.Item, 0, len(list))
	for _, id := range list {
		it := batch.Item{ID: id}
		k := kind
		if k == ids.Unknown {
			k = ids.Classify(id)
		}
		if k == ids.PMCID {
			if canon, err := ids.NormalizePMCID(id); err == nil {
				it.Canon = canon
			}
		}
		out = append(out, it)
	}
	return out
}

func pathItems(paths []string) []batch.Item {
	out := make([]batch.Item, 0, len(paths))
	for _, p := range paths {
		out = append(out, batch.Item{Path: p})
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.NotFound, "main.idfile", err)
		}
		return nil, apperr.Wrap(apperr.IOFailed, "main.idfile", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// ensureWritable creates the output directory if needed and probes it
// with a throwaway file, so permission problems surface before any
// network traffic.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".pmcharvest-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
