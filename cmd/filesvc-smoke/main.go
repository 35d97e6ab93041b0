package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"filesvc/pkg/client"
	"filesvc/pkg/models"
)

const (
	defaultServerURL        = "http://127.0.0.1:8080"
	defaultFileSize         = 1024
	defaultMultiPassCount   = 10
	defaultParallelInfo     = 10
	defaultFullPassParallel = 10
	defaultHTTPTimeout      = 2 * time.Minute
	defaultUploadLimit      = 20 * 1024 * 1024

	opUpload   = "upload"
	opInfo     = "info"
	opDownload = "download"
)

type config struct {
	serverURL          string
	fileSize           int
	uploadLimit        int64
	multiPassCount     int
	parallelInfoCount  int
	fullPassConcurrent int
	httpTimeout        time.Duration

	runHealth       bool
	runSinglePass   bool
	runMultiPass    bool
	runParallelInfo bool
	runFullParallel bool
	runLimit        bool

	showSummary bool
}

type tester struct {
	cfg    config
	client *client.Client
	report *report
}

// opTotals accumulates every call of one client operation.
type opTotals struct {
	calls   int
	failed  int
	bytes   int64
	elapsed time.Duration
}

type stepResult struct {
	name    string
	elapsed time.Duration
	err     error
}

// report collects per-operation totals and step outcomes across goroutines.
type report struct {
	mu    sync.Mutex
	ops   map[string]*opTotals
	steps []stepResult
}

func main() {
	cfg := parseFlags()
	t := newTester(cfg)

	if err := t.run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "filesvc-smoke failed: %v\n", err)
		if cfg.showSummary {
			t.report.print(os.Stdout)
		}
		os.Exit(1)
	}

	fmt.Println("\nAll selected smoke steps completed successfully")
	if cfg.showSummary {
		t.report.print(os.Stdout)
	}
}

func parseFlags() config {
	server := flag.String("server", defaultServerURL, "File service base URL")
	size := flag.Int("size", defaultFileSize, "Test file size in bytes")
	limit := flag.Int64("limit", defaultUploadLimit, "Upload limit the server is expected to enforce")
	timeout := flag.Duration("http-timeout", defaultHTTPTimeout, "HTTP client timeout")
	multi := flag.Int("passes", defaultMultiPassCount, "Number of sequential passes (step 3)")
	parallelInfo := flag.Int("parallel-info", defaultParallelInfo, "Number of parallel info requests (step 4)")
	fullParallel := flag.Int("parallel-full", defaultFullPassParallel, "Number of concurrent full passes (step 5)")

	runAll := flag.Bool("all", false, "Run every step")
	step1 := flag.Bool("step1", false, "Run Step 1: Health check")
	step2 := flag.Bool("step2", false, "Run Step 2: Single pass")
	step3 := flag.Bool("step3", false, "Run Step 3: Multiple sequential passes")
	step4 := flag.Bool("step4", false, "Run Step 4: Parallel info requests for one file")
	step5 := flag.Bool("step5", false, "Run Step 5: Full passes in parallel")
	step6 := flag.Bool("step6", false, "Run Step 6: Upload limit (sends limit and limit+1 bytes)")
	noSummary := flag.Bool("no-summary", false, "Disable the metrics summary")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nBy default steps 1-5 run. Step 6 only runs when selected or with -all.\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	anyStep := *step1 || *step2 || *step3 || *step4 || *step5 || *step6
	cfg := config{
		serverURL:          strings.TrimRight(*server, "/"),
		fileSize:           *size,
		uploadLimit:        *limit,
		multiPassCount:     *multi,
		parallelInfoCount:  *parallelInfo,
		fullPassConcurrent: *fullParallel,
		httpTimeout:        *timeout,

		runHealth:       *runAll || *step1 || !anyStep,
		runSinglePass:   *runAll || *step2 || !anyStep,
		runMultiPass:    *runAll || *step3 || !anyStep,
		runParallelInfo: *runAll || *step4 || !anyStep,
		runFullParallel: *runAll || *step5 || !anyStep,
		runLimit:        *runAll || *step6,

		showSummary: !*noSummary,
	}

	if cfg.serverURL == "" {
		cfg.serverURL = defaultServerURL
	}
	if cfg.fileSize <= 0 || int64(cfg.fileSize) > cfg.uploadLimit {
		fmt.Fprintf(os.Stderr, "invalid file size: %d (limit %d)\n", cfg.fileSize, cfg.uploadLimit)
		os.Exit(1)
	}
	if cfg.multiPassCount <= 0 {
		cfg.multiPassCount = defaultMultiPassCount
	}
	if cfg.parallelInfoCount <= 0 {
		cfg.parallelInfoCount = defaultParallelInfo
	}
	if cfg.fullPassConcurrent <= 0 {
		cfg.fullPassConcurrent = defaultFullPassParallel
	}
	return cfg
}

func newTester(cfg config) *tester {
	return &tester{
		cfg:    cfg,
		client: client.New(cfg.serverURL, client.Options{Timeout: cfg.httpTimeout}),
		report: &report{ops: make(map[string]*opTotals)},
	}
}

// track times fn and adds the result to the totals of op.
func (r *report) track(op string, fn func() (int64, error)) error {
	start := time.Now()
	n, err := fn()
	elapsed := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()
	totals, ok := r.ops[op]
	if !ok {
		totals = &opTotals{}
		r.ops[op] = totals
	}
	totals.calls++
	totals.elapsed += elapsed
	if err != nil {
		totals.failed++
		return err
	}
	totals.bytes += n
	return nil
}

func (r *report) step(name string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, stepResult{name: name, elapsed: elapsed, err: err})
}

func (r *report) print(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(w, "\nSummary")
	var total time.Duration
	for _, step := range r.steps {
		total += step.elapsed
		status := "ok"
		if step.err != nil {
			status = "FAILED: " + step.err.Error()
		}
		fmt.Fprintf(w, "  %-40s %8s  %s\n", step.name, step.elapsed.Round(time.Millisecond), status)
	}

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	slices.Sort(names)

	var moved int64
	for _, name := range names {
		totals := r.ops[name]
		moved += totals.bytes
		avg := totals.elapsed / time.Duration(totals.calls)
		fmt.Fprintf(w, "  %-8s calls=%d failed=%d bytes=%s avg=%s\n",
			name, totals.calls, totals.failed, humanize.IBytes(uint64(totals.bytes)), avg.Round(time.Microsecond))
	}

	if total > 0 && moved > 0 {
		fmt.Fprintf(w, "  throughput %s/s over %s\n",
			humanize.IBytes(uint64(float64(moved)/total.Seconds())), total.Round(time.Millisecond))
	}
}

type testStep struct {
	name      string
	shouldRun bool
	runFunc   func(context.Context) error
}

func (t *tester) run(ctx context.Context) error {
	steps := []testStep{
		{"Step 1: Health check", t.cfg.runHealth, t.runHealthStep},
		{"Step 2: Single pass", t.cfg.runSinglePass, t.runSinglePassStep},
		{fmt.Sprintf("Step 3: %d sequential passes", t.cfg.multiPassCount), t.cfg.runMultiPass, t.runMultiPassStep},
		{fmt.Sprintf("Step 4: %d parallel info requests", t.cfg.parallelInfoCount), t.cfg.runParallelInfo, t.runParallelInfoStep},
		{fmt.Sprintf("Step 5: %d full passes in parallel", t.cfg.fullPassConcurrent), t.cfg.runFullParallel, t.runFullParallelStep},
		{"Step 6: Upload limit", t.cfg.runLimit, t.runLimitStep},
	}

	stepsRun := 0
	for _, step := range steps {
		if !step.shouldRun {
			continue
		}
		fmt.Printf("\n%s\n", step.name)
		start := time.Now()
		err := step.runFunc(ctx)
		t.report.step(step.name, time.Since(start), err)
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		fmt.Printf("  done\n")
		stepsRun++
	}

	if stepsRun == 0 {
		return errors.New("no steps selected")
	}
	return nil
}

func (t *tester) runHealthStep(ctx context.Context) error {
	return t.client.Health(ctx)
}

func (t *tester) runSinglePassStep(ctx context.Context) error {
	uploaded, err := t.performPass(ctx)
	if err != nil {
		return err
	}
	return t.verifyListed(ctx, uploaded.ID)
}

func (t *tester) runMultiPassStep(ctx context.Context) error {
	for i := 1; i <= t.cfg.multiPassCount; i++ {
		fmt.Printf("  Pass %d/%d...\n", i, t.cfg.multiPassCount)
		if _, err := t.performPass(ctx); err != nil {
			return fmt.Errorf("pass %d: %w", i, err)
		}
	}
	return nil
}

func (t *tester) runParallelInfoStep(ctx context.Context) error {
	uploaded, err := t.performPass(ctx)
	if err != nil {
		return err
	}
	return runParallel(ctx, t.cfg.parallelInfoCount, func(ctx context.Context) error {
		return t.fetchInfo(ctx, uploaded)
	})
}

func (t *tester) runFullParallelStep(ctx context.Context) error {
	return runParallel(ctx, t.cfg.fullPassConcurrent, func(ctx context.Context) error {
		_, err := t.performPass(ctx)
		return err
	})
}

func (t *tester) runLimitStep(ctx context.Context) error {
	atLimit := make([]byte, t.cfg.uploadLimit)
	if _, err := t.uploadFile(ctx, "smoke-limit.bin", atLimit); err != nil {
		return fmt.Errorf("upload of exactly %d bytes rejected: %w", t.cfg.uploadLimit, err)
	}

	overLimit := make([]byte, t.cfg.uploadLimit+1)
	_, err := t.uploadFile(ctx, "smoke-over-limit.bin", overLimit)
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("upload of %d bytes: expected 400, got %v", t.cfg.uploadLimit+1, err)
	}
	fmt.Printf("  over-limit upload rejected: %s\n", statusErr.Message)
	return nil
}

// performPass uploads random data then checks its info and bytes.
func (t *tester) performPass(ctx context.Context) (models.FileResponse, error) {
	data := make([]byte, t.cfg.fileSize)
	if _, err := rand.Read(data); err != nil {
		return models.FileResponse{}, fmt.Errorf("generate random data: %w", err)
	}

	name := fmt.Sprintf("smoke-%d.bin", time.Now().UnixNano())
	uploaded, err := t.uploadFile(ctx, name, data)
	if err != nil {
		return models.FileResponse{}, err
	}
	if uploaded.Name != name || uploaded.Size != int64(len(data)) {
		return models.FileResponse{}, fmt.Errorf("upload response mismatch: %+v", uploaded)
	}

	if err := t.fetchInfo(ctx, uploaded); err != nil {
		return models.FileResponse{}, err
	}
	if err := t.verifyDownload(ctx, uploaded.ID, data); err != nil {
		return models.FileResponse{}, err
	}
	return uploaded, nil
}

func (t *tester) uploadFile(ctx context.Context, name string, data []byte) (models.FileResponse, error) {
	var uploaded models.FileResponse
	err := t.report.track(opUpload, func() (int64, error) {
		var err error
		uploaded, err = t.client.Upload(ctx, name, bytes.NewReader(data))
		return int64(len(data)), err
	})
	if err != nil {
		return models.FileResponse{}, fmt.Errorf("upload failed: %w", err)
	}
	return uploaded, nil
}

func (t *tester) fetchInfo(ctx context.Context, expected models.FileResponse) error {
	return t.report.track(opInfo, func() (int64, error) {
		info, err := t.client.Info(ctx, expected.ID)
		if err == nil && info != expected {
			err = fmt.Errorf("info mismatch: expected %+v, got %+v", expected, info)
		}
		return 0, err
	})
}

func (t *tester) verifyDownload(ctx context.Context, id string, expected []byte) error {
	return t.report.track(opDownload, func() (int64, error) {
		var buf bytes.Buffer
		n, err := t.client.Download(ctx, id, &buf)
		if err == nil && !bytes.Equal(buf.Bytes(), expected) {
			err = errors.New("downloaded data mismatch")
		}
		return n, err
	})
}

func (t *tester) verifyListed(ctx context.Context, id string) error {
	files, err := t.client.List(ctx)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	for _, file := range files {
		if file.ID == id {
			return nil
		}
	}
	return fmt.Errorf("file %s missing from listing", id)
}

// runParallel starts count copies of fn and returns the first failure.
func runParallel(ctx context.Context, count int, fn func(context.Context) error) error {
	group, ctx := errgroup.WithContext(ctx)
	for range count {
		group.Go(func() error { return fn(ctx) })
	}
	return group.Wait()
}
