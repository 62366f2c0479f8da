package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
	"wheel-trader/internal/trading"
)

// addTradingCommands adds order and portfolio commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newDryRunCmd(app))
	rootCmd.AddCommand(newExecuteCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
	rootCmd.AddCommand(newCancelCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
}

func addOrderFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("price", 0, "reference stock price (default: from the scan document)")
	cmd.Flags().Float64("premium", 0, "limit credit per share (default: wheel.min_premium)")
	cmd.Flags().Int("qty", 1, "number of contracts")
}

func tradeRequest(cmd *cobra.Command, ticker string) trading.TradeRequest {
	price, _ := cmd.Flags().GetFloat64("price")
	premium, _ := cmd.Flags().GetFloat64("premium")
	qty, _ := cmd.Flags().GetInt("qty")
	return trading.TradeRequest{
		Ticker:   ticker,
		Price:    price,
		Premium:  premium,
		Quantity: qty,
		ScanPath: flagScan(cmd),
	}
}

func newDryRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dryrun <ticker>",
		Short: "Validate the best cash-secured put with the brokerage",
		Long: `Pick the best cash-secured put for the ticker and send it to the
brokerage's dry-run endpoint. Nothing is placed.`,
		Example: `  wheel dryrun SOFI
  wheel dryrun F --price 12.40 --premium 0.35`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			plan, result, err := app.Pipeline().DryRunCSP(cmd.Context(), tradeRequest(cmd, args[0]))
			if plan == nil {
				return err
			}

			if output.IsJSON() {
				out := map[string]interface{}{"plan": plan, "result": result}
				if err != nil {
					out["error"] = err.Error()
				}
				if jerr := output.JSON(out); jerr != nil {
					return jerr
				}
				return err
			}

			printPlan(output, plan)
			output.Println()
			output.Bold("Dry-run order:")
			if jerr := output.JSON(plan.Order); jerr != nil {
				return jerr
			}
			output.Println()
			if err != nil {
				output.Error("Dry-run error: %v", err)
				return err
			}
			output.Bold("Dry-run result:")
			printOrderResult(output, result)
			return nil
		},
	}
	addOrderFlags(cmd)
	return cmd
}

func newExecuteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <ticker>",
		Short: "Submit the best cash-secured put (requires --confirm)",
		Long: `Pick the best cash-secured put for the ticker and submit it as a Day limit
order. Without --confirm nothing is sent. Blocked when
security.read_only_mode is on.`,
		Example: `  wheel execute SOFI --confirm
  wheel execute F --premium 0.40 --confirm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			confirmed, _ := cmd.Flags().GetBool("confirm")

			if !output.IsJSON() && confirmed {
				output.Dim("Submitting order...")
			}
			plan, result, err := app.Pipeline().ExecuteCSP(cmd.Context(), tradeRequest(cmd, args[0]), confirmed)
			if errors.Is(err, errors.ErrConfirmationRequired) {
				return confirmationWarning(output, "submit the order")
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"plan": plan, "result": result})
			}
			printPlan(output, plan)
			output.Println()
			output.Success("✅ Order submitted: #%s (%s)", result.Order.ID, result.Order.Status)
			printOrderResult(output, result)
			return nil
		},
	}
	addOrderFlags(cmd)
	cmd.Flags().Bool("confirm", false, "actually submit the order")
	return cmd
}

func newCloseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <option-symbol>",
		Short: "Buy to close a short option (requires --confirm)",
		Example: `  wheel close "F     260320P00013000" --price 0.10 --confirm
  wheel close "SOFI  260227C00010000" --price 0.05 --qty 2 --confirm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			price, _ := cmd.Flags().GetFloat64("price")
			qty, _ := cmd.Flags().GetInt("qty")
			confirmed, _ := cmd.Flags().GetBool("confirm")

			order, result, err := app.Pipeline().Close(cmd.Context(), trading.CloseRequest{
				OptionSymbol: args[0],
				Price:        price,
				Quantity:     qty,
			}, confirmed)
			if errors.Is(err, errors.ErrConfirmationRequired) {
				if !output.IsJSON() {
					printOrderPreview(output, order)
				}
				return confirmationWarning(output, "close the position")
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"order": order, "result": result})
			}
			printOrderPreview(output, order)
			output.Success("✅ Close order submitted: #%s (%s)", result.Order.ID, result.Order.Status)
			return nil
		},
	}
	cmd.Flags().Float64("price", 0, "limit debit per share")
	cmd.Flags().Int("qty", 1, "number of contracts")
	cmd.Flags().Bool("confirm", false, "actually submit the order")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newCancelCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a live order (requires --confirm)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			confirmed, _ := cmd.Flags().GetBool("confirm")

			err := app.Pipeline().Cancel(cmd.Context(), args[0], confirmed)
			if errors.Is(err, errors.ErrConfirmationRequired) {
				return confirmationWarning(output, "cancel order #"+strings.TrimSpace(args[0]))
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"order_id": strings.TrimSpace(args[0]), "cancelled": true})
			}
			output.Success("✓ Order #%s cancelled", strings.TrimSpace(args[0]))
			return nil
		},
	}
	cmd.Flags().Bool("confirm", false, "actually cancel the order")
	return cmd
}

func newPositionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show open positions and live orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			report, err := app.Pipeline().Positions(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			output.Section("WHEEL POSITIONS")
			printPortfolio(output, report)
			output.Rule()
			return nil
		},
	}
}

// confirmationWarning explains that nothing was sent. It is not an error.
func confirmationWarning(output *Output, action string) error {
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"submitted": false,
			"reason":    "add --confirm to " + action,
		})
	}
	output.Warning("⚠️  Add --confirm to actually %s", action)
	return nil
}

func printPlan(output *Output, plan *trading.TradePlan) {
	best := plan.Best
	output.Bold("%s: best CSP (stock %s)", plan.Ticker, FormatUSD(plan.Price))
	output.Printf("  Strike:      %s put\n", FormatStrike(best.Strike))
	output.Printf("  Expiry:      %s (%d DTE)\n", best.ExpirationDate, best.DaysToExpiration)
	output.Printf("  Cash needed: %s\n", FormatUSD(best.CashRequired))
	output.Printf("  Option:      %s\n", best.OptionSymbol)
	output.Printf("  Limit:       %s credit\n", FormatUSD(plan.Premium))
	if plan.Breakeven != nil {
		output.Printf("  Breakeven:   %s\n", FormatUSD(*plan.Breakeven))
	}
	if len(plan.Alternatives) > 1 {
		strikes := make([]string, 0, len(plan.Alternatives)-1)
		for _, alt := range plan.Alternatives[1:] {
			strikes = append(strikes, fmt.Sprintf("%s %s", FormatStrike(alt.Strike), alt.ExpirationDate))
		}
		output.Dim("  Alternatives: %s", strings.Join(strikes, ", "))
	}
}

func printOrderPreview(output *Output, order *models.Order) {
	if order == nil || len(order.Legs) == 0 {
		return
	}
	leg := order.Legs[0]
	output.Bold("Order Preview")
	output.Printf("  Action:   %s\n", leg.Action)
	output.Printf("  Option:   %s\n", leg.Symbol)
	output.Printf("  Quantity: %d\n", leg.Quantity)
	output.Printf("  Limit:    $%s %s (%s)\n", order.Price, order.PriceEffect, order.TimeInForce)
	output.Println()
}

func printOrderResult(output *Output, result *models.OrderResult) {
	if result == nil {
		return
	}
	if len(result.Raw) > 0 {
		output.RawJSON(result.Raw)
	} else {
		raw, err := json.Marshal(result)
		if err == nil {
			output.RawJSON(raw)
		}
	}
	for _, w := range result.Warnings {
		output.Warning("⚠ %s: %s", w.Code, w.Message)
	}
}

func printPortfolio(output *Output, report *trading.PortfolioReport) {
	if report == nil {
		return
	}
	if len(report.Positions) == 0 {
		output.Println("No open positions.")
	} else {
		printWheelLegs(output, report.Summary)
	}
	output.Println()
	output.Printf("Live orders: %d\n", len(report.Orders))
	printOrderLines(output, report.Orders)
}

func printWheelLegs(output *Output, summary *trading.PositionSummary) {
	if summary == nil {
		return
	}
	table := NewTable(output, "Symbol", "Leg", ">Qty", ">Strike", ">Exp", ">DTE", ">Collateral")
	for _, d := range summary.Positions {
		pos := d.Position
		qty := fmt.Sprintf("%s%.0f", directionSign(pos.QuantityDirection), pos.Quantity.Float64())
		strike, exp, dte, collateral := "-", "-", "-", "-"
		if d.Strike > 0 {
			strike = FormatStrike(d.Strike)
		}
		if d.Expiration != nil {
			exp = d.Expiration.String()
			dte = fmt.Sprintf("%d", d.DaysToExpiry)
			if d.ExpiringSoon() {
				dte = output.Yellow(dte)
			}
		}
		if d.Collateral > 0 {
			collateral = FormatWholeUSD(d.Collateral)
		}
		table.AddRow(pos.Symbol, string(d.Leg), qty, strike, exp, dte, collateral)
	}
	table.Render()

	output.Println()
	output.Printf("Short puts %d | Covered calls %d | Share lots %d | Collateral %s\n",
		summary.ShortPuts, summary.ShortCalls, summary.ShareLots, FormatUSD(summary.Collateral))
	if summary.ExpiringSoon > 0 {
		output.Warning("%d option(s) expire within %d days", summary.ExpiringSoon, trading.ExpiringSoonDays)
		for _, d := range summary.Positions {
			if d.ExpiringSoon() && d.CloseCommand != "" {
				output.Dim("  wheel %s", d.CloseCommand)
			}
		}
	}
}

func directionSign(direction string) string {
	if strings.EqualFold(direction, "Short") {
		return "-"
	}
	return ""
}

// printPositionLines prints one line per position.
func printPositionLines(output *Output, positions []models.Position) {
	if len(positions) == 0 {
		output.Println("  No open positions.")
		return
	}
	for _, p := range positions {
		dir := "LONG"
		if strings.EqualFold(p.QuantityDirection, "Short") {
			dir = "SOLD"
		}
		pnl := ""
		if gain := p.RealizedDayGain.Float64(); gain != 0 {
			pnl = " | P&L: " + output.FormatPnL(gain)
		}
		output.Printf("  %s | %s x%.0f | %s%s\n", p.Symbol, dir, p.Quantity.Float64(), p.InstrumentType, pnl)
	}
}

// printOrderLines prints one line per live order.
func printOrderLines(output *Output, orders []models.LiveOrder) {
	for _, o := range orders {
		legs := make([]string, 0, len(o.Legs))
		for _, l := range o.Legs {
			legs = append(legs, fmt.Sprintf("%s %s", l.Action, l.Symbol))
		}
		output.Printf("  #%s | %s %s | %s | %s\n", o.ID, o.OrderType, FormatUSD(o.Price.Float64()), o.Status, strings.Join(legs, ", "))
	}
}
