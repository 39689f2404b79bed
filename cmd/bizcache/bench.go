package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/bizcache/store"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Replay a read-heavy workload against the store and print cache statistics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		requests, _ := cmd.Flags().GetInt("requests")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		users, _ := cmd.Flags().GetInt("users")

		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		logger := newLogger(instanceProfile)

		storeInstance, cleanup, err := openStore(cmd.Context(), instanceProfile, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := runBench(cmd.Context(), storeInstance, benchOptions{
			Requests:    requests,
			Concurrency: concurrency,
			Users:       users,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d requests in %s (%d failed)\n", result.Requests, result.Elapsed.Round(time.Millisecond), result.Failed)
		fmt.Fprintln(cmd.OutOrStdout(), storeInstance.Cache().String())
		return nil
	},
}

func init() {
	benchCmd.Flags().Int("requests", 10000, "number of reads")
	benchCmd.Flags().Int("concurrency", 16, "number of concurrent readers")
	benchCmd.Flags().Int("users", 50, "number of distinct users whose preferences are read")
}

type benchOptions struct {
	Requests    int
	Concurrency int
	Users       int
}

type benchResult struct {
	Requests int
	Failed   int64
	Elapsed  time.Duration
}

// runBench mixes listing, product and preferences reads. Every product is
// also looked up by slug so that misses are cached too.
func runBench(ctx context.Context, s *store.Store, opts benchOptions) (*benchResult, error) {
	if opts.Requests <= 0 || opts.Concurrency <= 0 || opts.Users <= 0 {
		return nil, errors.New("requests, concurrency and users must be positive")
	}

	products, err := s.ListActiveProducts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list products")
	}

	var failed atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := 0; i < opts.Requests; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := benchRead(gctx, s, products, opts.Users); err != nil {
				failed.Add(1)
				slog.Debug("bench read failed", "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &benchResult{
		Requests: opts.Requests,
		Failed:   failed.Load(),
		Elapsed:  time.Since(start),
	}, ctx.Err()
}

func benchRead(ctx context.Context, s *store.Store, products []*store.Product, users int) error {
	switch n := rand.IntN(10); {
	case n < 3:
		_, err := s.ListActiveProducts(ctx)
		return err
	case n < 6 && len(products) > 0:
		product := products[rand.IntN(len(products))]
		_, err := s.GetProductByID(ctx, product.ID)
		return err
	case n < 8:
		slug := fmt.Sprintf("missing-%d", rand.IntN(10))
		if len(products) > 0 && n == 6 {
			slug = products[rand.IntN(len(products))].Slug
		}
		_, err := s.GetProductBySlug(ctx, slug)
		return err
	default:
		_, err := s.GetUserPreferences(ctx, int64(rand.IntN(users)+1))
		return err
	}
}
