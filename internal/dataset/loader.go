package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// LoadOptions names the two source tables. A ".zst" suffix marks a
// zstd-compressed file.
type LoadOptions struct {
	EventsPath string
	ParksPath  string
	Logger     *slog.Logger
}

// Load reads both tables concurrently and joins them. Any failure is fatal
// for the caller: there is no partial table.
func Load(ctx context.Context, opts LoadOptions) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		events []Event
		parks  map[string]*Park
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = readFile(opts.EventsPath, ReadEvents)
		return err
	})
	g.Go(func() error {
		var err error
		parks, err = readFile(opts.ParksPath, ReadParks)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := Merge(events, parks)
	logger.Info("dataset loaded",
		"events_path", opts.EventsPath,
		"parks_path", opts.ParksPath,
		"scenarios", table.Len(),
		"parks", len(parks),
		"unmatched_parks", table.Unmatched(),
	)
	if table.Len() == 0 {
		return nil, fmt.Errorf("dataset: %s contains no events", opts.EventsPath)
	}
	return table, nil
}

func readFile[T any](path string, parse func(string, io.Reader) (T, error)) (T, error) {
	var zero T
	if path == "" {
		return zero, fmt.Errorf("dataset: path must not be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return zero, fmt.Errorf("dataset: zstd reader for %s: %w", path, err)
		}
		defer dec.Close()
		rd = dec
	}

	return parse(path, rd)
}
