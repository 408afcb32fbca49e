package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arbendium/zip"
)

func buildDumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [archive.zip] [entry-name]",
		Short: "Print the decompressed contents of one entry",
		Long: `Prints an entry's decompressed, validated bytes to stdout.

If the entry's compression method is neither stored nor deflate, this
package offers no decompression path, so dump falls back to printing raw
compressed bytes and asks interactively how many bytes to print, since
their length carries no further meaning without decompressing.`,
		Args: cobra.ExactArgs(2),
		RunE: runDump,
	}
}

func runDump(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	archive, err := zip.OpenArchive(f, info.Size())
	if err != nil {
		return fmt.Errorf("zipdump: %w", err)
	}

	var target *zip.Entry
	it := archive.Iterator()
	for it.Next() {
		if it.Entry().Name == args[1] {
			target = it.Entry()
			break
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("zipdump: %w", err)
	}
	if target == nil {
		return fmt.Errorf("zipdump: no such entry: %s", args[1])
	}

	switch target.Method {
	case zip.Store, zip.Deflate:
		r, err := target.Open()
		if err != nil {
			return fmt.Errorf("zipdump: %w", err)
		}
		_, err = io.Copy(os.Stdout, r)
		return err
	default:
		return dumpRawInteractive(target)
	}
}

// dumpRawInteractive handles an entry whose compression method this
// package cannot decode: it prints the compressed byte count and asks the
// operator how many raw bytes to print, mirroring the reader's inability
// to infer a meaningful length for an unsupported method without
// decompressing it.
func dumpRawInteractive(e *zip.Entry) error {
	fmt.Fprintf(os.Stderr, "entry %q uses unsupported compression method %d (%d compressed bytes available)\n",
		e.Name, e.Method, e.CompressedSize)
	fmt.Fprint(os.Stderr, "how many raw bytes to print? ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return fmt.Errorf("zipdump: invalid byte count: %w", err)
	}
	if n > e.CompressedSize {
		n = e.CompressedSize
	}

	r, err := e.OpenRange(0, n)
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, r)
	return err
}
