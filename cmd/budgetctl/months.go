package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budget/internal/core"
)

func monthsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "months",
		Short: "List a user's months with their totals, newest first",
		RunE:  runMonths,
	}
	cmd.Flags().String("user", "", "user id")
	return cmd
}

func runMonths(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	cfg, res, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer res.Close()

	months, err := res.Syncer.LoadAllMonths(cmd.Context(), user)
	if err != nil {
		return err
	}
	if len(months) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No months for %s\n", user)
		return nil
	}
	loc := core.LocaleFor(cfg.Locale)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tLABEL\tINCOME\tEXPENSES\tBALANCE\tCLOSED")
	for i := range months {
		t := core.CalculateTotals(&months[i])
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			months[i].ID,
			months[i].Label,
			core.FormatMoney(t.Income, loc),
			core.FormatMoney(t.TotalExpenses, loc),
			core.FormatMoney(t.Balance, loc),
			months[i].Closed)
	}
	return w.Flush()
}

func totalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Show the totals and category breakdown of one month",
		RunE:  runTotals,
	}
	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("month", "", "month id (YYYY-MM)")
	return cmd
}

func runTotals(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	monthID, _ := cmd.Flags().GetString("month")
	if _, _, err := core.ParseMonthID(monthID); err != nil {
		return err
	}
	cfg, res, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer res.Close()

	months, err := res.Syncer.LoadAllMonths(cmd.Context(), user)
	if err != nil {
		return err
	}
	loc := core.LocaleFor(cfg.Locale)
	for i := range months {
		if months[i].ID != monthID {
			continue
		}
		m := &months[i]
		t := core.CalculateTotals(m)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s (%s)\n", m.Label, m.ID)
		fmt.Fprintf(w, "Income\t%s\n", core.FormatMoney(t.Income, loc))
		fmt.Fprintf(w, "Fixed\t%s\n", core.FormatMoney(t.Fixed, loc))
		fmt.Fprintf(w, "Variable\t%s\n", core.FormatMoney(t.Variable, loc))
		fmt.Fprintf(w, "Total expenses\t%s\n", core.FormatMoney(t.TotalExpenses, loc))
		fmt.Fprintf(w, "Balance\t%s\n", core.FormatMoney(t.Balance, loc))
		for _, c := range core.CategoryBreakdown(m) {
			name := c.Name
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(w, "  %s\t%s\n", name, core.FormatMoney(c.Amount, loc))
		}
		return w.Flush()
	}
	return fmt.Errorf("month %s not found for %s", monthID, user)
}

func savingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "savings",
		Short: "Show accumulated savings over closed months",
		RunE:  runSavings,
	}
	cmd.Flags().String("user", "", "user id")
	return cmd
}

func runSavings(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	cfg, res, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer res.Close()

	months, err := res.Syncer.LoadAllMonths(cmd.Context(), user)
	if err != nil {
		return err
	}
	savings := core.CalculateAccumulatedSavings(months)
	fmt.Fprintln(cmd.OutOrStdout(), core.FormatMoney(savings, core.LocaleFor(cfg.Locale)))
	return nil
}
