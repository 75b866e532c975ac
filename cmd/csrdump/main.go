// Copyright (C) 2021 the compute-runtime authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// csrdump prints the disassembly of a dumped command buffer.
//
// Usage:
//
//	csrdump [flags] [file]
//
// With no file argument the buffer is read from stdin.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/hongbolv/compute-runtime/core/data/endian"
	"github.com/hongbolv/compute-runtime/core/log"
	"github.com/hongbolv/compute-runtime/driver/cmds"
)

var verbose = flag.Bool("verbose", false, "enable debug logging")

func main() {
	flag.Parse()
	if *verbose {
		log.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "csrdump:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var in io.Reader = os.Stdin
	if path := flag.Arg(0); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	log.D(ctx, "read command buffer", "bytes", len(data))

	br := bytes.NewReader(data)
	r := endian.Reader(br, endian.Little)
	for {
		offset := len(data) - br.Len()
		c, err := cmds.Decode(r)
		if errors.Cause(err) == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "at offset 0x%x", offset)
		}
		fmt.Printf("%08x  %v\n", offset, c)
	}
}
