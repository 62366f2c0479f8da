package cli

import (
	"time"

	"github.com/spf13/cobra"

	"wheel-trader/internal/trading"
)

// addAuthCommands adds session and account overview commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify Tastytrade credentials",
		Long: `Open a Tastytrade session with the configured credentials and show when
it expires. Credentials come from credentials.toml, .env or the
TASTYTRADE_USERNAME / TASTYTRADE_PASSWORD environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			session, err := app.Pipeline().Login(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"environment": app.Config.Environment(),
					"username":    session.Username,
					"expires_at":  session.ExpiresAt,
				})
			}

			output.Success("✓ Logged in to Tastytrade (%s)", app.Config.Environment())
			if session.Username != "" {
				output.Printf("  User:    %s\n", session.Username)
			}
			if !session.ExpiresAt.IsZero() {
				output.Printf("  Expires: %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account balances, positions and live orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			report, err := app.Pipeline().Status(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"environment": app.Config.Environment(),
					"account":     app.Config.Credentials.Tastytrade.AccountNumber,
					"balance":     report.Balance,
					"positions":   report.Positions,
					"orders":      report.Orders,
					"errors":      statusErrors(report),
				})
			}

			output.Section("ACCOUNT STATUS")
			output.Printf("  Environment: %s\n", app.Config.Environment())
			output.Printf("  Account:     %s\n", orDash(app.Config.Credentials.Tastytrade.AccountNumber))
			output.Println()

			output.Bold("Balances")
			if report.BalanceErr != nil {
				output.Error("  Error: %v", report.BalanceErr)
			} else if b := report.Balance; b != nil {
				output.Printf("  Cash:                %s\n", FormatUSD(b.CashBalance.Float64()))
				output.Printf("  Net liquidating:     %s\n", FormatUSD(b.NetLiquidatingValue.Float64()))
				output.Printf("  Equity buying power: %s\n", FormatUSD(b.EquityBuyingPower.Float64()))
				output.Printf("  Option buying power: %s\n", FormatUSD(b.DerivativeBuyingPower.Float64()))
			}
			output.Println()

			output.Bold("Positions")
			if report.PositionsErr != nil {
				output.Error("  Error: %v", report.PositionsErr)
			} else {
				printPositionLines(output, report.Positions)
			}
			output.Println()

			output.Bold("Live orders")
			if report.OrdersErr != nil {
				output.Error("  Error: %v", report.OrdersErr)
			} else {
				printOrderLines(output, report.Orders)
			}
			output.Rule()
			return nil
		},
	}
}

func statusErrors(report *trading.StatusReport) map[string]string {
	out := make(map[string]string)
	if report.BalanceErr != nil {
		out["balance"] = report.BalanceErr.Error()
	}
	if report.PositionsErr != nil {
		out["positions"] = report.PositionsErr.Error()
	}
	if report.OrdersErr != nil {
		out["orders"] = report.OrdersErr.Error()
	}
	return out
}
