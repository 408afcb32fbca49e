package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arbendium/zip"
)

func buildListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [archive.zip]",
		Short: "Print every entry in the central directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
}

func runList(_ *cobra.Command, args []string) error {
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

	it := archive.Iterator()
	for it.Next() {
		e := it.Entry()
		fmt.Printf("%10d %10d %08x  %-8s  %s  %s\n",
			e.CompressedSize, e.UncompressedSize, e.CRC32,
			methodName(e.Method), e.Modified.Format("2006-01-02 15:04:05"), e.Name)
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("zipdump: %w", err)
	}
	if archive.Comment != "" {
		fmt.Printf("comment: %s\n", archive.Comment)
	}
	return nil
}

func methodName(method uint16) string {
	switch method {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	default:
		return fmt.Sprintf("0x%02x", method)
	}
}
