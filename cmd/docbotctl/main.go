// docbotctl administers the provider-side context cache out of the request
// path: the serving process only ever reads the cache it resolves at startup.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chapterhouse/docbot/cmd/docbotctl/cachecmder"
)

func main() {
	root := &cobra.Command{
		Use:           "docbotctl",
		Short:         "Administer the docbot context cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(cachecmder.NewCacheCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
