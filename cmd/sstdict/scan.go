// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pebblekv/sstdict/internal/rate"
	"github.com/pebblekv/sstdict/objstorage"
	"github.com/pebblekv/sstdict/sstable/block"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var scanConfig struct {
	rateLimit  float64
	compaction bool
}

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "read and decompress every data block of a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	var wrap func(objstorage.Readable) objstorage.Readable
	if r := scanConfig.rateLimit; r > 0 {
		limiter := rate.NewLimiter(r, r)
		wrap = func(f objstorage.Readable) objstorage.Readable {
			return objstorage.NewRateLimitedReadable(f, limiter)
		}
	}
	t, err := openTable(ctx, args[0], wrap)
	if err != nil {
		return err
	}
	defer t.Close()

	workers := max(concurrency, 1)
	var stats block.ReadStats
	var bytes, fills atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			rh := t.NewReadHandle()
			defer rh.Close()
			if scanConfig.compaction {
				rh.SetupForCompaction()
			}
			env := block.ReadEnv{Stats: &stats}
			// Each worker reads a contiguous range of blocks.
			lo := w * t.NumDataBlocks() / workers
			hi := (w + 1) * t.NumDataBlocks() / workers
			for i := lo; i < hi; i++ {
				h, err := t.ReadDataBlock(gctx, env, rh, i, false /* noIO */, nil)
				if err != nil {
					return err
				}
				bytes.Add(int64(len(h.BlockData())))
				h.Release()
			}
			if pb, ok := rh.(*objstorage.PrefetchBuffer); ok {
				fills.Add(pb.Stats().Fills)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	tbl := tablewriter.NewWriter(out)
	tbl.SetHeader([]string{"Blocks", "Bytes", "Elapsed", "MB/s", "Readahead fills", "Read stats"})
	tbl.Append([]string{
		fmt.Sprint(t.NumDataBlocks()),
		fmt.Sprint(bytes.Load()),
		elapsed.Round(time.Millisecond).String(),
		fmt.Sprintf("%.1f", float64(bytes.Load())/(1<<20)/elapsed.Seconds()),
		fmt.Sprint(fills.Load()),
		stats.String(),
	})
	tbl.Render()
	return printCacheMetrics(out, t.cache)
}
