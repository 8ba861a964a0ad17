// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/compression"
	"github.com/pebblekv/sstdict/sstable"
	"github.com/pebblekv/sstdict/sstable/block"
	"github.com/spf13/cobra"
)

var writeConfig = struct {
	blocks      int
	blockSize   int
	dictSize    int
	compression string
	checksum    string
	seed        uint64
}{
	blocks:      1000,
	blockSize:   32 << 10,
	dictSize:    16 << 10,
	compression: compression.ZstdLevel3.String(),
	checksum:    "crc32c",
}

var writeCmd = &cobra.Command{
	Use:   "write <file>",
	Short: "write a table of generated records, compressed with a sampled dictionary",
	Args:  cobra.ExactArgs(1),
	RunE:  runWrite,
}

// recordGenerator produces records that share structure and vocabulary, so
// that a dictionary sampled from some of them helps compress the others.
type recordGenerator struct {
	rng *rand.Rand
	n   int
}

var (
	regions = []string{"us-east1", "us-west2", "europe-west1", "asia-southeast1"}
	plans   = []string{"free", "standard", "premium", "enterprise"}
	events  = []string{"login", "logout", "purchase", "refund", "page_view", "search"}
)

func (g *recordGenerator) appendRecord(buf []byte) []byte {
	g.n++
	return fmt.Appendf(buf,
		`{"id":%d,"user":"user-%06d","region":%q,"plan":%q,"event":%q,"amount":%d.%02d,"ts":%d}`+"\n",
		g.n, g.rng.IntN(1000000), regions[g.rng.IntN(len(regions))], plans[g.rng.IntN(len(plans))],
		events[g.rng.IntN(len(events))], g.rng.IntN(1000), g.rng.IntN(100), 1700000000+g.n)
}

func (g *recordGenerator) block(size int) []byte {
	var buf []byte
	for len(buf) < size {
		buf = g.appendRecord(buf)
	}
	return buf
}

// sampleDictionary builds a raw content dictionary of up to size bytes from
// freshly generated records.
func sampleDictionary(g *recordGenerator, size int) []byte {
	if size <= 0 {
		return nil
	}
	return g.block(size)[:size]
}

func parseChecksum(s string) (block.ChecksumType, error) {
	for _, c := range []block.ChecksumType{block.ChecksumTypeCRC32c, block.ChecksumTypeXXHash64} {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}
	return 0, errors.Errorf("unknown checksum type %q", s)
}

func runWrite(cmd *cobra.Command, args []string) error {
	setting, ok := compression.ParseSetting(writeConfig.compression)
	if !ok {
		return errors.Errorf("unknown compression setting %q", writeConfig.compression)
	}
	checksum, err := parseChecksum(writeConfig.checksum)
	if err != nil {
		return err
	}
	g := &recordGenerator{rng: rand.New(rand.NewPCG(0, writeConfig.seed))}
	dict := sampleDictionary(g, writeConfig.dictSize)

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	w, err := sstable.NewWriter(bw, sstable.WriterOptions{
		Compression: &setting,
		Dictionary:  dict,
		Checksum:    checksum,
	})
	if err != nil {
		return errors.CombineErrors(err, f.Close())
	}
	for i := 0; i < writeConfig.blocks; i++ {
		if err := w.AddBlock(g.block(writeConfig.blockSize)); err != nil {
			return errors.CombineErrors(err, f.Close())
		}
	}
	if err := w.Close(); err != nil {
		return errors.CombineErrors(err, f.Close())
	}
	if err := bw.Flush(); err != nil {
		return errors.CombineErrors(err, f.Close())
	}
	if err := f.Sync(); err != nil {
		return errors.CombineErrors(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}

	meta, err := w.Metadata()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "wrote %s: %d blocks, %d bytes (%d uncompressed, ratio %.2f)\n",
		args[0], meta.NumDataBlocks, meta.Size, meta.DataBytes, float64(meta.DataBytes)/float64(meta.Size))
	fmt.Fprintf(&buf, "footer: %s\n", meta.Footer)
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
