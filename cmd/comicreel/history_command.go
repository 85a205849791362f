package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"comicreel/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dbPath := strings.TrimSpace(cfg.Paths.HistoryDB)
			if dbPath == "" {
				return errors.New("history is disabled; set [paths] history_db in the configuration")
			}
			store, err := history.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open history database: %w", err)
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), history.ListOptions{
				Limit:      limit,
				FailedOnly: failedOnly,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No conversions recorded yet.")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.FinishedAt.Local().Format("2006-01-02 15:04"),
					rec.Title,
					string(rec.Status),
					strconv.Itoa(rec.PagesEncoded),
					historyDetail(rec),
				})
			}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(out, renderTable([]string{"Finished", "Title", "Status", "Pages", "Result"}, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of conversions to show")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed conversions")
	return cmd
}

func historyDetail(rec history.Record) string {
	if rec.Status == history.StatusFailed {
		return rec.ErrorMessage
	}
	return rec.OutputPath
}
