// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/pebblekv/sstdict/internal/compression"
	"github.com/pebblekv/sstdict/sstable/block"
)

// WriterMetadata holds info about a finished table.
type WriterMetadata struct {
	Size          uint64
	NumDataBlocks int
	// DataBytes is the total size of the data blocks before compression.
	DataBytes uint64
	Footer    Footer
}

// Writer is a table writer. Data blocks are added with AddBlock; Close
// writes the dictionary, index and footer.
type Writer struct {
	w      io.Writer
	opts   WriterOptions
	err    error
	offset uint64

	compressor  compression.Compressor
	checksummer block.Checksummer
	buf         []byte

	dataBlocks []block.Handle
	allZstd    bool
	meta       WriterMetadata
}

// NewWriter returns a new table writer for the file. Closing the writer
// does not close the file.
func NewWriter(w io.Writer, o WriterOptions) (*Writer, error) {
	o = o.ensureDefaults()
	tw := &Writer{
		w:           w,
		opts:        o,
		checksummer: block.Checksummer{Type: o.Checksum},
		allZstd:     true,
	}
	if len(o.Dictionary) > 0 && o.Compression.Algorithm == compression.Zstd {
		c, err := compression.GetZstdDictCompressor(int(o.Compression.Level), o.Dictionary)
		if err != nil {
			return nil, err
		}
		tw.compressor = c
	} else {
		tw.compressor = compression.GetCompressor(*o.Compression)
	}
	return tw, nil
}

// AddBlock compresses and writes a data block. data is not retained.
func (w *Writer) AddBlock(data []byte) error {
	if w.err != nil {
		return w.err
	}
	if len(data) == 0 {
		return errors.New("sstdict: empty data block")
	}
	pb := block.CompressAndChecksum(&w.buf, data, w.compressor, &w.checksummer)
	if pb.Indicator() != block.ZstdCompressionIndicator {
		w.allZstd = false
	}
	bh, err := w.writeBlock(pb)
	if err != nil {
		return err
	}
	w.dataBlocks = append(w.dataBlocks, bh)
	w.meta.DataBytes += uint64(len(data))
	return nil
}

func (w *Writer) writeBlock(pb block.PhysicalBlock) (block.Handle, error) {
	bh := block.Handle{Offset: w.offset, Length: uint64(pb.LengthWithoutTrailer())}
	n, err := pb.WriteTo(w.w)
	if err != nil {
		w.err = err
		return block.Handle{}, err
	}
	w.offset += uint64(n)
	return bh, nil
}

// writeRawBlock writes an uncompressed block.
func (w *Writer) writeRawBlock(data []byte) (block.Handle, error) {
	pb := block.CompressAndChecksum(&w.buf, data, compression.GetCompressor(compression.None), &w.checksummer)
	return w.writeBlock(pb)
}

// Close finishes writing the table. The Writer must not be used after Close.
func (w *Writer) Close() (err error) {
	defer func() {
		if w.compressor != nil {
			w.compressor.Close()
			w.compressor = nil
		}
		if w.err == nil {
			w.err = errors.New("sstdict: writer is closed")
		}
	}()
	if w.err != nil {
		return w.err
	}

	var f Footer
	f.ChecksumType = w.opts.Checksum
	f.BlocksDefinitelyZstd = w.allZstd && len(w.dataBlocks) > 0
	if len(w.opts.Dictionary) > 0 {
		if f.DictionaryHandle, err = w.writeRawBlock(w.opts.Dictionary); err != nil {
			return err
		}
	}

	var index []byte
	var tmp [2 * 10]byte
	for _, bh := range w.dataBlocks {
		n := bh.EncodeVarints(tmp[:])
		index = append(index, tmp[:n]...)
	}
	if f.IndexHandle, err = w.writeRawBlock(index); err != nil {
		return err
	}

	footer := f.encode(nil)
	if _, err := w.w.Write(footer); err != nil {
		w.err = err
		return err
	}
	w.offset += uint64(len(footer))

	w.meta.Size = w.offset
	w.meta.NumDataBlocks = len(w.dataBlocks)
	w.meta.Footer = f
	return nil
}

// Metadata returns the metadata for the finished table. Only valid after
// the writer has been closed successfully.
func (w *Writer) Metadata() (*WriterMetadata, error) {
	if w.meta.Size == 0 {
		return nil, errors.New("sstdict: writer is not closed")
	}
	return &w.meta, nil
}
