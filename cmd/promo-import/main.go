package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/nuestra-carne/internal/domain/promotion"
	"github.com/xenking/nuestra-carne/internal/storage/jsonfile"
	"github.com/xenking/nuestra-carne/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
	numWriters    = 4
)

var defaultValue = decimal.NewFromInt(10)

// stats counts import outcomes across all files.
type stats struct {
	read       atomic.Int64
	malformed  atomic.Int64
	duplicates atomic.Int64
	created    atomic.Int64
}

// dedup remembers every code seen so far. The bloom filter answers most
// lookups; positives are confirmed against the exact set.
type dedup struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newDedup(capacity uint) *dedup {
	return &dedup{
		filter: bloom.NewWithEstimates(capacity, bloomFPR),
		seen:   make(map[string]struct{}),
	}
}

// firstSeen records code and reports whether it was new.
func (d *dedup) firstSeen(code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filter.TestString(code) {
		if _, ok := d.seen[code]; ok {
			return false
		}
	}
	d.filter.AddString(code)
	d.seen[code] = struct{}{}
	return true
}

func main() {
	var (
		pattern     string
		driver      string
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&pattern, "files", "import/promociones*.gz", "glob of gzip'd code files")
	flag.StringVar(&driver, "driver", "jsonfile", "target storage driver: jsonfile or postgres")
	flag.StringVar(&dataDir, "data-dir", "data", "target directory for the jsonfile driver")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, driver, dataDir, databaseURL); err != nil {
		slog.Error("promotion import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promotion import completed successfully")
}

func openRepository(ctx context.Context, driver, dataDir, databaseURL string) (promotion.Repository, func(), error) {
	switch driver {
	case "jsonfile":
		s, err := jsonfile.Open(dataDir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open data dir")
		}
		return s.Promotions(), func() {}, nil
	case "postgres":
		if databaseURL == "" {
			return nil, nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		slog.Info("connecting to database")
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to database")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewPromotionRepository(pool), pool.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown driver %q", driver)
	}
}

func run(ctx context.Context, pattern, driver, dataDir, databaseURL string) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrapf(err, "glob %s", pattern)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", pattern)
	}

	repo, done, err := openRepository(ctx, driver, dataDir, databaseURL)
	if err != nil {
		return err
	}
	defer done()

	st, err := importFiles(ctx, promotion.NewService(repo), repo, files)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int64("read", st.read.Load()),
		slog.Int64("created", st.created.Load()),
		slog.Int64("duplicates", st.duplicates.Load()),
		slog.Int64("malformed", st.malformed.Load()),
	)
	return nil
}

// importFiles streams every file concurrently and creates the first
// occurrence of each code not already stored.
func importFiles(ctx context.Context, svc *promotion.Service, repo promotion.Repository, files []string) (*stats, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list existing promotions")
	}
	seen := newDedup(bloomCapacity)
	for _, p := range existing {
		seen.firstSeen(p.Code)
	}
	slog.Info("loaded existing codes", slog.Int("count", len(existing)))

	st := &stats{}
	drafts := make(chan promotion.Draft, 1024)

	g, ctx := errgroup.WithContext(ctx)
	var readers sync.WaitGroup
	for i, f := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			return readFile(ctx, i, f, seen, st, drafts)
		})
	}
	g.Go(func() error {
		readers.Wait()
		close(drafts)
		return nil
	})
	for range numWriters {
		g.Go(func() error {
			return writeDrafts(ctx, svc, drafts, st)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

func readFile(ctx context.Context, idx int, path string, seen *dedup, st *stats, out chan<- promotion.Draft) error {
	var count int64
	err := streamGzFile(ctx, path, func(line string) error {
		d, ok, err := parseLine(line)
		if err != nil {
			st.malformed.Add(1)
			slog.Warn("skipping malformed line", slog.String("file", path), slog.String("error", err.Error()))
			return nil
		}
		if !ok {
			return nil
		}
		st.read.Add(1)
		count++
		if count%progressEvery == 0 {
			slog.Info("read progress", slog.Int("file", idx+1), slog.Int64("codes", count))
		}
		if !seen.firstSeen(d.Code) {
			st.duplicates.Add(1)
			return nil
		}
		select {
		case out <- d:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return errors.Wrapf(err, "read file %d", idx+1)
	}
	slog.Info("file complete", slog.Int("file", idx+1), slog.Int64("codes", count))
	return nil
}

func writeDrafts(ctx context.Context, svc *promotion.Service, in <-chan promotion.Draft, st *stats) error {
	for d := range in {
		if _, err := svc.Create(ctx, d); err != nil {
			if errors.Is(err, promotion.ErrDuplicateCode) {
				st.duplicates.Add(1)
				continue
			}
			return errors.Wrapf(err, "create promotion %s", d.Code)
		}
		st.created.Add(1)
	}
	return nil
}

// parseLine reads "CODE[,tipo,valor,montoMinimo]". Blank lines and lines
// starting with # are skipped with ok=false.
func parseLine(line string) (d promotion.Draft, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return d, false, nil
	}
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	d.Code = promotion.NormalizeCode(fields[0])
	if d.Code == "" {
		return d, false, errors.Errorf("empty code in %q", line)
	}
	d.Name = d.Code
	d.Kind = promotion.KindPercentage
	d.Value = defaultValue

	if len(fields) > 1 && fields[1] != "" {
		d.Kind = promotion.Kind(strings.ToLower(fields[1]))
		if !d.Kind.Valid() {
			return d, false, errors.Errorf("unknown kind %q for %s", fields[1], d.Code)
		}
	}
	if len(fields) > 2 && fields[2] != "" {
		if d.Value, err = decimal.NewFromString(fields[2]); err != nil {
			return d, false, errors.Wrapf(err, "parse value for %s", d.Code)
		}
	}
	if len(fields) > 3 && fields[3] != "" {
		if d.MinimumOrderAmount, err = decimal.NewFromString(fields[3]); err != nil {
			return d, false, errors.Wrapf(err, "parse minimum for %s", d.Code)
		}
	}
	if len(fields) > 4 {
		return d, false, errors.Errorf("too many fields in %q", line)
	}
	d.Description = describe(d)
	return d, true, nil
}

func describe(d promotion.Draft) string {
	if d.Kind == promotion.KindFixedAmount {
		return "Descuento de $" + d.Value.StringFixed(2)
	}
	return d.Value.String() + "% de descuento"
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
