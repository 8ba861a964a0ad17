// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	cacheSize   int64
	prefetch    bool
	pin         bool
	verbose     bool
	concurrency int
)

var rootCmd = &cobra.Command{
	Use:   "sstdict [command] (flags)",
	Short: "table compression dictionary introspection and benchmarking tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		writeCmd,
		dictCmd,
		scanCmd,
		benchCmd,
	)

	for _, cmd := range []*cobra.Command{dictCmd, scanCmd, benchCmd} {
		cmd.Flags().Int64Var(
			&cacheSize, "cache", 64<<20, "block cache size in bytes (0 disables the cache)")
		cmd.Flags().BoolVar(
			&prefetch, "prefetch-dict", false, "read the compression dictionary when the table is opened")
		cmd.Flags().BoolVar(
			&pin, "pin-dict", false, "hold the compression dictionary for the lifetime of the reader")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "log dictionary read errors and slow reads")
	}
	for _, cmd := range []*cobra.Command{scanCmd, benchCmd} {
		cmd.Flags().IntVarP(
			&concurrency, "concurrency", "c", 1, "number of concurrent readers")
	}

	writeCmd.Flags().IntVar(
		&writeConfig.blocks, "blocks", writeConfig.blocks, "number of data blocks to write")
	writeCmd.Flags().IntVar(
		&writeConfig.blockSize, "block-size", writeConfig.blockSize, "uncompressed size of each data block")
	writeCmd.Flags().IntVar(
		&writeConfig.dictSize, "dict-size", writeConfig.dictSize,
		"size of the compression dictionary sampled from the data (0 writes no dictionary)")
	writeCmd.Flags().StringVar(
		&writeConfig.compression, "compression", writeConfig.compression,
		"compression setting (NoCompression, Snappy, ZSTD1, ZSTD3, MinLZ1, MinLZ2)")
	writeCmd.Flags().StringVar(
		&writeConfig.checksum, "checksum", writeConfig.checksum, "checksum type (crc32c, xxhash64)")
	writeCmd.Flags().Uint64Var(
		&writeConfig.seed, "seed", 1, "random seed for the generated data")

	scanCmd.Flags().Float64Var(
		&scanConfig.rateLimit, "rate", 0, "limit on bytes read from the file per second (0 means unlimited)")
	scanCmd.Flags().BoolVar(
		&scanConfig.compaction, "compaction", false, "read the file the way a compaction does")

	benchCmd.Flags().DurationVarP(
		&benchConfig.duration, "duration", "d", benchConfig.duration, "the duration to run")
	benchCmd.Flags().IntVar(
		&benchConfig.maxConcurrentLoads, "max-concurrent-loads", 0,
		"maximum number of block loads in flight (0 means unlimited)")
	benchCmd.Flags().BoolVar(
		&benchConfig.dictOnly, "dict-only", false,
		"only retrieve the compression dictionary instead of reading data blocks")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
