package main

import (
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"messages"},
	Short:   "List recent dispatches",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openOneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		recs, err := a.History().Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, recs)
		}
		if len(recs) == 0 {
			printf(out, "no messages yet\n")
			return nil
		}
		for _, r := range recs {
			printf(out, "%s  %-9s  %s/%s  %s\n", r.SentAt.Local().Format(time.DateTime), r.Status, r.MainCategory, r.SubCategory, r.TitleUsed)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dispatch counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openOneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		st, err := a.History().Stats(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, st)
		}
		printf(out, "total: %d\ntoday: %d\nsession connected: %s\n", st.Total, st.Today, yesNo(st.IsConnected))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of records")
}
