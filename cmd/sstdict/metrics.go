// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/pebblekv/sstdict/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// printCacheMetrics writes the block cache metrics, as exported to
// Prometheus, in tabular form.
func printCacheMetrics(w io.Writer, c *cache.Cache) error {
	if c == nil {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(cache.NewCollector("sstdict", c)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Metric", "Value"})
	tbl.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			}
			tbl.Append([]string{mf.GetName(), fmt.Sprintf("%.0f", v)})
		}
	}
	tbl.Render()
	return nil
}
