package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/role-annotator/annotation/fileutils"
	"github.com/theimaginaryfoundation/role-annotator/annotation/store"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count complete and failed dialogues in the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := a.load(cmd)
			if err != nil {
				return err
			}
			outPath, err := cfg.OutputPath()
			if err != nil {
				return err
			}
			if cfg.DSN == "" && !fileutils.FileExists(a.fs, outPath) {
				fmt.Fprintln(a.stdout, outPath)
				fmt.Fprintln(a.stdout, "  no results")
				return nil
			}
			ctx := cmd.Context()
			st, closeStore, err := a.openStore(ctx, cfg, outPath)
			if err != nil {
				return err
			}
			defer closeStore()

			records, err := st.Load(ctx)
			if err != nil {
				return fmt.Errorf("load results: %w", err)
			}
			s := store.Summarize(records)

			fmt.Fprintln(a.stdout, outPath)
			fmt.Fprintf(a.stdout, "  records:  %d\n", s.Records)
			fmt.Fprintf(a.stdout, "  complete: %d dialogues\n", s.Complete)
			fmt.Fprintf(a.stdout, "  failed:   %d dialogues", len(s.Failed))
			if len(s.Failed) > 0 {
				ids := make([]string, len(s.Failed))
				for i, id := range s.Failed {
					ids[i] = strconv.Itoa(id)
				}
				fmt.Fprintf(a.stdout, " (%s)", strings.Join(ids, ", "))
			}
			fmt.Fprintln(a.stdout)
			return nil
		},
	}
}
