package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apptaxonomy "github.com/bryanwahyu/webtaxon/internal/application/taxonomy"
	"github.com/bryanwahyu/webtaxon/internal/domain/taxonomy"
	"github.com/bryanwahyu/webtaxon/internal/ioformats"
)

func newTreeCmd(c *cli) *cobra.Command {
	var (
		input  string
		out    string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the taxonomy tree built from history",
		Long: `Aggregates history into the taxonomy tree and prints it as JSON.
History comes from --db, or from an NDJSON dump given with --input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" && c.dbPath == "" {
				return errors.New("tree needs --db or --input")
			}

			ctx := cmd.Context()
			svc := &apptaxonomy.Service{}
			var (
				tree *taxonomy.Tree
				err  error
			)
			if input != "" {
				f, ferr := os.Open(input)
				if ferr != nil {
					return ferr
				}
				entries, rerr := ioformats.ReadHistory(f)
				f.Close()
				if rerr != nil {
					return rerr
				}
				tree, err = svc.TreeOf(entries)
			} else {
				history, closeHistory, herr := c.openHistory(ctx)
				if herr != nil {
					return herr
				}
				defer closeHistory()
				svc.History = history
				tree, err = svc.Tree(ctx)
			}
			if err != nil {
				return fmt.Errorf("build tree: %w", err)
			}

			w, closeOut, err := output(cmd, out)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			if pretty {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(tree); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "NDJSON history dump")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON")
	return cmd
}
