// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/fifo"
	"github.com/cockroachdb/errors"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/pebblekv/sstdict/sstable/block"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	minLatency = 10 * time.Nanosecond
	maxLatency = 10 * time.Second

	plotWidth  = 60
	plotHeight = 10
)

var benchConfig = struct {
	duration           time.Duration
	maxConcurrentLoads int
	dictOnly           bool
}{
	duration: 10 * time.Second,
}

var benchCmd = &cobra.Command{
	Use:   "bench <file>",
	Short: "benchmark concurrent dictionary retrieval and data block reads",
	Args:  cobra.ExactArgs(1),
	RunE:  runBench,
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

func newLoadBlockSema(n int) *fifo.Semaphore {
	return fifo.NewSemaphore(int64(n))
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	t, err := openTable(ctx, args[0], nil)
	if err != nil {
		return err
	}
	defer t.Close()
	if benchConfig.dictOnly && t.DictionaryReader() == nil {
		return errors.Errorf("%s has no compression dictionary", args[0])
	}
	if t.NumDataBlocks() == 0 {
		return errors.Errorf("%s has no data blocks", args[0])
	}

	workers := max(concurrency, 1)
	hists := make([]*hdrhistogram.Histogram, workers)
	start := time.Now()
	deadline := start.Add(benchConfig.duration)
	var ops atomic.Int64
	done := make(chan struct{})
	samples := make(chan []int64, 1)
	go sampleOps(&ops, benchConfig.duration/plotWidth, done, samples)

	g, gctx := errgroup.WithContext(ctx)
	for w := range hists {
		hist := newHistogram()
		hists[w] = hist
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(0, uint64(w)))
			for time.Now().Before(deadline) {
				start := time.Now()
				if err := benchOp(gctx, t, rng); err != nil {
					return err
				}
				if err := hist.RecordValue(time.Since(start).Nanoseconds()); err != nil {
					return err
				}
				ops.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	close(done)
	cumulative := <-samples
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := newHistogram()
	for _, h := range hists {
		total.Merge(h)
	}
	op := "read-block"
	if benchConfig.dictOnly {
		op = "get-dict"
	}
	out := cmd.OutOrStdout()
	tbl := tablewriter.NewWriter(out)
	tbl.SetHeader([]string{"Op", "Policy", "Ops", "Ops/sec", "Avg(ms)", "P50(ms)", "P95(ms)", "P99(ms)", "PMax(ms)"})
	ms := func(ns int64) string { return fmt.Sprintf("%.3f", time.Duration(ns).Seconds()*1000) }
	tbl.Append([]string{
		op,
		dictPolicy(t),
		fmt.Sprint(total.TotalCount()),
		fmt.Sprintf("%.0f", float64(total.TotalCount())/elapsed.Seconds()),
		ms(int64(total.Mean())),
		ms(total.ValueAtQuantile(50)),
		ms(total.ValueAtQuantile(95)),
		ms(total.ValueAtQuantile(99)),
		ms(total.Max()),
	})
	tbl.Render()
	if plot := plotOpsPerSec(cumulative, benchConfig.duration/plotWidth); plot != "" {
		fmt.Fprintf(out, "\nops/sec\n%s\n\n", plot)
	}
	return printCacheMetrics(out, t.cache)
}

// sampleOps records the value of ops every interval until done is closed,
// then sends the samples.
func sampleOps(ops *atomic.Int64, interval time.Duration, done <-chan struct{}, samples chan<- []int64) {
	var values []int64
	defer func() { samples <- values }()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			values = append(values, ops.Load())
		case <-done:
			return
		}
	}
}

// plotOpsPerSec plots the per-second rate between consecutive cumulative
// samples taken every interval.
func plotOpsPerSec(cumulative []int64, interval time.Duration) string {
	if len(cumulative) < 2 {
		return ""
	}
	rates := make([]float64, len(cumulative))
	var prev int64
	for i, v := range cumulative {
		rates[i] = float64(v-prev) / interval.Seconds()
		prev = v
	}
	return asciigraph.Plot(rates, asciigraph.Height(plotHeight))
}

func benchOp(ctx context.Context, t *table, rng *rand.Rand) error {
	if benchConfig.dictOnly {
		d, err := t.DictionaryReader().GetOrReadDictionary(ctx, block.NoReadEnv, nil, false /* noIO */, nil)
		if err != nil {
			return err
		}
		d.Release()
		return nil
	}
	h, err := t.ReadDataBlock(ctx, block.NoReadEnv, nil, rng.IntN(t.NumDataBlocks()), false /* noIO */, nil)
	if err != nil {
		return err
	}
	h.Release()
	return nil
}
