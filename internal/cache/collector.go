// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import "github.com/prometheus/client_golang/prometheus"

// Collector exports the metrics of a Cache to Prometheus.
type Collector struct {
	cache *Cache

	size   *prometheus.Desc
	count  *prometheus.Desc
	hits   *prometheus.Desc
	misses *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector reporting the metrics of c under the given
// namespace.
func NewCollector(namespace string, c *Cache) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "block_cache", n)
	}
	return &Collector{
		cache:  c,
		size:   prometheus.NewDesc(name("size_bytes"), "Bytes in use by the block cache.", nil, nil),
		count:  prometheus.NewDesc(name("blocks"), "Number of blocks in the block cache.", nil, nil),
		hits:   prometheus.NewDesc(name("hits_total"), "Block cache hits.", nil, nil),
		misses: prometheus.NewDesc(name("misses_total"), "Block cache misses.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.count
	ch <- c.hits
	ch <- c.misses
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.cache.Metrics()
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(m.Size))
	ch <- prometheus.MustNewConstMetric(c.count, prometheus.GaugeValue, float64(m.Count))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(m.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(m.Misses))
}
