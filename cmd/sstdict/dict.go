// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/pebblekv/sstdict/internal/base"
	"github.com/pebblekv/sstdict/sstable/block"
	"github.com/spf13/cobra"
)

var dictCmd = &cobra.Command{
	Use:   "dict <file>",
	Short: "describe a table's compression dictionary and how the reader holds it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDict,
}

func runDict(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	t, err := openTable(ctx, args[0], nil)
	if err != nil {
		return err
	}
	defer t.Close()

	out := cmd.OutOrStdout()
	tbl := tablewriter.NewWriter(out)
	tbl.SetHeader([]string{"Property", "Value"})
	tbl.SetAlignment(tablewriter.ALIGN_LEFT)
	footer := t.Footer()
	tbl.Append([]string{"data blocks", fmt.Sprint(t.NumDataBlocks())})
	tbl.Append([]string{"checksum", footer.ChecksumType.String()})
	tbl.Append([]string{"dictionary block", footer.DictionaryHandle.String()})
	tbl.Append([]string{"definitely zstd", fmt.Sprint(footer.BlocksDefinitelyZstd)})

	dr := t.DictionaryReader()
	if dr == nil {
		tbl.Append([]string{"dictionary", "none"})
		tbl.Render()
		return nil
	}
	tbl.Append([]string{"policy", dictPolicy(t)})
	tbl.Append([]string{"reader memory", fmt.Sprint(t.ApproximateMemoryUsage())})

	// Check residency before reading, so that the read below doesn't
	// mask a lazily read dictionary.
	resident := "yes"
	if h, err := dr.GetOrReadDictionaryBlock(ctx, block.NoReadEnv, nil, true /* noIO */, nil); err != nil {
		if !base.IsCacheMissNoIO(err) {
			return err
		}
		resident = "no"
	} else {
		h.Release()
	}
	tbl.Append([]string{"resident before read", resident})

	var lc block.LookupContext
	d, err := dr.GetOrReadDictionary(ctx, block.NoReadEnv, nil, false /* noIO */, &lc)
	if err != nil {
		return errors.Wrap(err, "reading dictionary")
	}
	tbl.Append([]string{"dictionary size", fmt.Sprint(len(d.Data))})
	tbl.Append([]string{"dictionary holder", d.Holder().String()})
	source := "held by reader"
	if lc.NumLookups > 0 {
		source = "read from file"
		if lc.CacheHit {
			source = "block cache"
		}
	}
	tbl.Append([]string{"served from", source})
	d.Release()
	tbl.Render()

	return printCacheMetrics(out, t.cache)
}
