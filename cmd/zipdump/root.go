package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func buildRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "zipdump",
		Version: version,
		Short:   "Inspect ZIP archive records without extracting them",
		Long: `zipdump opens a ZIP archive and pretty-prints the records it finds: every
central directory entry, the archive comment, and (optionally) the
decompressed bytes of a chosen entry.

Commands:
  list   Print every entry in the central directory
  dump   Print the decompressed contents of one entry

Examples:
  zipdump list archive.zip
  zipdump dump archive.zip path/inside/archive.txt`,
	}

	return cmd
}
