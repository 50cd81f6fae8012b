package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/render"
)

// searchSamples caps how many matching names are listed per search term.
const searchSamples = 3

func newCmdDirectory(a *app) *cobra.Command {
	var (
		limit  int
		search []string
		fresh  bool
		export exportFlags
	)
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Show directory statistics, a sample of spaces and search results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fetch := a.client.FetchDirectory
			if fresh {
				fetch = a.client.FetchDirectoryFresh
			}
			dir, err := fetch(ctx)
			if err != nil {
				return fmt.Errorf("load directory: %w", err)
			}

			fmt.Fprintf(out, "Found %d hackerspaces in the directory.\n", dir.Len())
			if n := len(dir.Rejected); n > 0 {
				fmt.Fprintf(out, "Skipped %d entries without a usable http(s) URL.\n", n)
			}
			fmt.Fprintf(out, "Fetched at %s\n\n", dir.FetchedAt.Format("2006-01-02 15:04:05 UTC"))

			if err := render.DirectoryTable(out, dir.Head(limit)); err != nil {
				return err
			}

			if len(search) > 0 {
				fmt.Fprintln(out, "\nSearch:")
			}
			for _, term := range search {
				matches := dir.Search(term)
				fmt.Fprintf(out, "  %q: %d spaces\n", term, len(matches))
				for i, m := range matches {
					if i == searchSamples {
						fmt.Fprintf(out, "    ... and %d more\n", len(matches)-searchSamples)
						break
					}
					fmt.Fprintf(out, "    - %s\n", m.Name)
				}
			}

			if export.enabled() {
				return export.write(out, dir, nil)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to list (0 = all)")
	cmd.Flags().StringSliceVar(&search, "search", []string{"hack", "lab", "space", "maker"}, "case-insensitive name search terms")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "bypass the directory cache")
	export.register(cmd)
	return cmd
}
