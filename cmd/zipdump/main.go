package main

import "os"

func main() {
	rootCmd := buildRootCommand()
	rootCmd.AddCommand(buildListCommand())
	rootCmd.AddCommand(buildDumpCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
