package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/backofhouse/tally/internal/cli"
	"github.com/backofhouse/tally/internal/model"
	"github.com/backofhouse/tally/internal/rule"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
		Long:  `List, create, edit, and delete the rules that categorize bank transactions and POS sales.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(showRuleCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(editRuleCmd())
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(toggleRuleCmd("enable", "Enable a rule", true, false))
	cmd.AddCommand(toggleRuleCmd("disable", "Disable a rule", false, false))
	cmd.AddCommand(autoRuleCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.GetAllRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No rules found. Use 'tally rules add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tNAME\tSCOPE\tPRIORITY\tTARGET\tACTIVE\tAUTO\tAPPLIED")
			for i := range rules {
				r := &rules[i]
				target := "split"
				if !r.IsSplit() {
					target = fmt.Sprintf("category %d", *r.DirectCategoryID)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%d\n",
					r.ID, r.Name, r.Scope, r.Priority, target,
					yesNo(r.Active), yesNo(r.AutoApply), r.Stats.ApplyCount)
			}
			return nil
		},
	}
}

func showRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show one rule in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			r, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Rule %d: %s", r.ID, r.Name)))
			fmt.Printf("  Scope:     %s\n", r.Scope)
			fmt.Printf("  Priority:  %d\n", r.Priority)
			fmt.Printf("  Active:    %s\n", yesNo(r.Active))
			fmt.Printf("  Auto:      %s\n", yesNo(r.AutoApply))
			fmt.Printf("  Applied:   %d times\n", r.Stats.ApplyCount)
			if r.Stats.LastAppliedAt != nil {
				fmt.Printf("  Last used: %s\n", r.Stats.LastAppliedAt.Format("2006-01-02 15:04"))
			}

			fmt.Println("  Conditions:")
			for _, line := range describeConditions(r.Conditions) {
				fmt.Printf("    - %s\n", line)
			}

			if r.IsSplit() {
				fmt.Println("  Split:")
				for _, spec := range r.SplitSpecs {
					switch {
					case spec.Percentage != nil:
						fmt.Printf("    - category %d: %s%% %s\n", spec.CategoryID, *spec.Percentage, spec.Label)
					case spec.FixedAmount != nil:
						fmt.Printf("    - category %d: %s %s\n", spec.CategoryID, formatAmount(*spec.FixedAmount), spec.Label)
					}
				}
			} else {
				fmt.Printf("  Target:    category %d\n", *r.DirectCategoryID)
			}
			return nil
		},
	}
}

func addRuleCmd() *cobra.Command {
	var (
		scope       string
		pattern     string
		matchType   string
		supplier    string
		posCategory string
		txnType     string
		minAmount   int64
		maxAmount   int64
		categoryID  int64
		priority    int
		autoApply   bool
		splits      []string
		checkOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a new rule",
		Long: `Create a categorization rule. The rule targets either a single
category (--category) or a split (repeated --split flags).

Examples:
  # Direct categorization on a text match
  tally rules add "Sysco produce" --scope bank --pattern SYSCO --category 3

  # 70/30 split of a combo item
  tally rules add "Burger combo" --scope pos --pattern "Combo #4" --match exact \
    --split "3=70%:food" --split "5=30%:beverage"

Amounts are in minor units (cents) and compare against the absolute value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			newRule := &model.Rule{
				Name:      args[0],
				Scope:     model.RuleScope(scope),
				Priority:  priority,
				Active:    true,
				AutoApply: autoApply,
			}

			if pattern != "" {
				newRule.Conditions.Text = &model.TextCondition{
					Value:     pattern,
					MatchType: model.MatchType(matchType),
				}
			}
			if supplier != "" {
				newRule.Conditions.SupplierID = &supplier
			}
			if posCategory != "" {
				newRule.Conditions.PosCategory = &posCategory
			}
			if txnType != "" {
				t := model.TransactionType(txnType)
				newRule.Conditions.TransactionType = &t
			}
			if cmd.Flags().Changed("min-amount") {
				newRule.Conditions.AmountMin = &minAmount
			}
			if cmd.Flags().Changed("max-amount") {
				newRule.Conditions.AmountMax = &maxAmount
			}

			if categoryID != 0 {
				newRule.DirectCategoryID = &categoryID
			}
			for _, s := range splits {
				spec, err := parseSplitSpec(s)
				if err != nil {
					return err
				}
				newRule.SplitSpecs = append(newRule.SplitSpecs, spec)
			}

			if checkOnly {
				violations := eng.CheckRule(newRule)
				if len(violations) == 0 {
					fmt.Println(cli.SuccessStyle.Render("✓ Rule passes the safety guard"))
					return nil
				}
				fmt.Println(cli.WarningStyle.Render("Rule would be rejected:"))
				for _, v := range violations {
					fmt.Printf("  - %s\n", v.Reason)
				}
				return nil
			}

			if err := eng.CreateRule(ctx, newRule); err != nil {
				var violation *rule.GuardViolation
				if errors.As(err, &violation) {
					fmt.Println(cli.ErrorStyle.Render("Rule rejected by the safety guard:"))
					fmt.Printf("  %s\n", violation.Reason)
					if violation.OffendingValue != "" {
						fmt.Printf("  offending value: %q\n", violation.OffendingValue)
					}
					return fmt.Errorf("rule not created")
				}
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Created rule %d: %s", newRule.ID, newRule.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "bank", "rule scope (bank, pos, both)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "text pattern to match against descriptions")
	cmd.Flags().StringVar(&matchType, "match", "contains", "match type (exact, contains, starts_with, ends_with, regex)")
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier id condition")
	cmd.Flags().StringVar(&posCategory, "pos-category", "", "POS category condition")
	cmd.Flags().StringVar(&txnType, "type", "", "transaction type condition (debit, credit, any)")
	cmd.Flags().Int64Var(&minAmount, "min-amount", 0, "minimum absolute amount in minor units")
	cmd.Flags().Int64Var(&maxAmount, "max-amount", 0, "maximum absolute amount in minor units")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "direct target category id")
	cmd.Flags().IntVar(&priority, "priority", 0, "rule priority (higher wins)")
	cmd.Flags().BoolVar(&autoApply, "auto", false, "apply automatically to newly ingested records")
	cmd.Flags().StringArrayVar(&splits, "split", nil, `split leg, "<category-id>=<pct>%[:label]" or "<category-id>=<minor-units>[:label]"`)
	cmd.Flags().BoolVar(&checkOnly, "check", false, "run the safety guard without creating the rule")

	return cmd
}

func editRuleCmd() *cobra.Command {
	var (
		name     string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "edit <rule-id>",
		Short: "Edit a rule's name or priority",
		Long: `Edit a rule. The updated rule passes the same safety guard as
creation, so an edit can never broaden a rule past it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			r, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("name") {
				r.Name = name
			}
			if cmd.Flags().Changed("priority") {
				r.Priority = priority
			}

			if err := eng.UpdateRule(ctx, r); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Updated rule %d", id)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new rule name")
	cmd.Flags().IntVar(&priority, "priority", 0, "new rule priority")

	return cmd
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Long:  `Delete a rule. Records it already categorized keep their categories.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.DeleteRule(ctx, id); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Deleted rule %d", id)))
			return nil
		},
	}
}

func toggleRuleCmd(use, short string, active, autoApply bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if autoApply {
				err = eng.SetRuleAutoApply(ctx, id, active)
			} else {
				err = eng.SetRuleActive(ctx, id, active)
			}
			if err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Rule %d %sd", id, use)))
			return nil
		},
	}
}

func autoRuleCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "auto <rule-id>",
		Short: "Toggle auto-apply for a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := eng.SetRuleAutoApply(ctx, id, !off); err != nil {
				return err
			}

			state := "on"
			if off {
				state = "off"
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Auto-apply %s for rule %d", state, id)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "turn auto-apply off instead of on")
	return cmd
}

func describeConditions(c model.Conditions) []string {
	var lines []string
	if c.Text != nil {
		lines = append(lines, fmt.Sprintf("description %s %q", strings.ReplaceAll(string(c.Text.MatchType), "_", " "), c.Text.Value))
	}
	if c.AmountMin != nil || c.AmountMax != nil {
		lower, upper := "any", "any"
		if c.AmountMin != nil {
			lower = formatAmount(*c.AmountMin)
		}
		if c.AmountMax != nil {
			upper = formatAmount(*c.AmountMax)
		}
		lines = append(lines, fmt.Sprintf("abs(amount) between %s and %s", lower, upper))
	}
	if c.SupplierID != nil {
		lines = append(lines, fmt.Sprintf("supplier %s", *c.SupplierID))
	}
	if c.TransactionType != nil {
		lines = append(lines, fmt.Sprintf("type %s", *c.TransactionType))
	}
	if c.PosCategory != nil {
		lines = append(lines, fmt.Sprintf("POS category %q", *c.PosCategory))
	}
	if len(lines) == 0 {
		lines = append(lines, "(none)")
	}
	return lines
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
