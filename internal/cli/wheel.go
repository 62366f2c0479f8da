package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"wheel-trader/internal/models"
	"wheel-trader/internal/trading"
)

// addWheelCommands adds the read-only screening and chain lookup commands.
func addWheelCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCandidatesCmd(app))
	rootCmd.AddCommand(newEnrichCmd(app))
	rootCmd.AddCommand(newSummaryCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newCallsCmd(app))
}

// candidateJSON is one row of the candidates envelope.
type candidateJSON struct {
	Ticker       string                   `json:"ticker"`
	Name         string                   `json:"name"`
	Price        float64                  `json:"price"`
	PctFromATH   float64                  `json:"pct_from_ath"`
	RSI          float64                  `json:"rsi"`
	Upside       float64                  `json:"upside"`
	Rating       string                   `json:"rating"`
	Signal       string                   `json:"signal"`
	AIAssessment string                   `json:"ai_assessment"`
	WheelScore   int                      `json:"wheel_score"`
	CSP          *models.OptionCandidate  `json:"csp"`
	Alternatives []models.OptionCandidate `json:"alternatives,omitempty"`
}

// candidatesEnvelope is the JSON document consumed by dashboards.
type candidatesEnvelope struct {
	Timestamp  time.Time       `json:"timestamp"`
	Budget     float64         `json:"budget"`
	DTERange   [2]int          `json:"dte_range"`
	Scan       string          `json:"scan,omitempty"`
	Passed     int             `json:"passed"`
	Candidates []candidateJSON `json:"candidates"`
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) envelope(report *trading.CandidateReport) candidatesEnvelope {
	w := a.Config.Wheel
	env := candidatesEnvelope{
		Timestamp:  a.now().UTC(),
		Budget:     w.Budget,
		DTERange:   [2]int{w.MinDTE, w.MaxDTE},
		Candidates: []candidateJSON{},
	}
	if report != nil {
		env.Scan = report.ScanPath
		env.Passed = report.Passed
	}
	return env
}

func toCandidateJSON(s models.StockCandidate) candidateJSON {
	return candidateJSON{
		Ticker:       s.Ticker,
		Name:         s.Name,
		Price:        s.Price.Float64(),
		PctFromATH:   s.PctFromATH.Float64(),
		RSI:          s.RSI.Float64(),
		Upside:       s.Upside.Float64(),
		Rating:       s.Rating,
		Signal:       s.Signal,
		AIAssessment: s.AIAssessment,
		WheelScore:   s.WheelScore,
	}
}

func enrichedJSON(r trading.EnrichResult) candidateJSON {
	c := toCandidateJSON(r.Stock)
	c.CSP = r.Best
	c.Alternatives = r.Alternatives
	return c
}

// flagScan and flagTop read the persistent pipeline flags.
func flagScan(cmd *cobra.Command) string {
	scan, _ := cmd.Flags().GetString("scan")
	return scan
}

func flagTop(cmd *cobra.Command) int {
	top, _ := cmd.Flags().GetInt("top")
	return top
}

func newCandidatesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "Screen and score the scan document",
		Long: `Merge the configured scan categories, apply the wheel filters (price,
RSI, drop from all-time high, exclusions) and rank the survivors by wheel
score. No brokerage calls are made.`,
		Example: `  wheel candidates
  wheel candidates --top 5 --json
  wheel candidates --scan ./scans/scan_2026-02-20.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			report, err := app.Pipeline().Candidates(cmd.Context(), flagScan(cmd), flagTop(cmd))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				env := app.envelope(report)
				for _, s := range report.Candidates {
					env.Candidates = append(env.Candidates, toCandidateJSON(s))
				}
				return output.JSON(env)
			}

			printCandidates(output, app, report.Candidates)
			return nil
		},
	}
}

func newEnrichCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Attach the best cash-secured put to the top candidates",
		Long: `Screen the scan document, then fetch the option chain of each of the top
candidates and pick the best cash-secured put inside the DTE window and
budget. Tickers whose chain cannot be fetched, or that have no affordable
put, are left out of the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit := flagTop(cmd)
			if limit <= 0 {
				limit = app.Config.Wheel.EnrichTop
			}

			p := app.Pipeline()
			report, err := p.Candidates(cmd.Context(), flagScan(cmd), limit)
			if err != nil {
				return err
			}
			if !output.IsJSON() {
				output.Dim("⏳ Fetching option chains for %d candidates...", len(report.Candidates))
			}
			results, err := p.Enrich(cmd.Context(), report.Candidates)
			if err != nil {
				return err
			}
			enriched := trading.Enriched(results)

			if output.IsJSON() {
				env := app.envelope(report)
				for _, r := range enriched {
					env.Candidates = append(env.Candidates, enrichedJSON(r))
				}
				return output.JSON(env)
			}

			printEnriched(output, app, enriched)
			return nil
		},
	}
}

func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Scan header, candidates, enrichment and positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, app)
		},
	}
}

func runSummary(cmd *cobra.Command, app *App) error {
	output := NewOutput(cmd)
	report, err := app.Pipeline().Summary(cmd.Context(), flagScan(cmd), flagTop(cmd))
	if err != nil {
		return err
	}

	if output.IsJSON() {
		env := app.envelope(report.CandidateReport)
		for _, r := range trading.Enriched(report.Enriched) {
			env.Candidates = append(env.Candidates, enrichedJSON(r))
		}
		out := map[string]interface{}{
			"scan":       env.Scan,
			"candidates": env,
			"portfolio":  report.Portfolio,
		}
		if report.PortfolioErr != nil {
			out["portfolio_error"] = report.PortfolioErr.Error()
		}
		return output.JSON(out)
	}

	doc := report.Scan
	output.Info("📊 Scan: %s", filepath.Base(report.ScanPath))
	output.Printf("   %d stocks | QQQ 30d: %s\n\n", doc.TotalStocks, FormatSignedPercent(doc.QQQReturn30d))
	output.Bold("🎯 %d stocks pass wheel criteria", report.Passed)
	output.Println()

	printCandidates(output, app, report.Candidates)
	output.Println()

	if len(report.Enriched) > 0 {
		printEnriched(output, app, trading.Enriched(report.Enriched))
		output.Println()
	}

	output.Section("WHEEL POSITIONS")
	if report.PortfolioErr != nil {
		output.Error("Error: %v", report.PortfolioErr)
	} else {
		printPortfolio(output, report.Portfolio)
	}
	output.Rule()
	return nil
}

func newScanCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [SYMBOL...]",
		Short: "Find cash-secured puts straight from option chains",
		Long: `Look up cash-secured puts for each symbol without a scan document. The
stock price is approximated by the middle strike of the nearest expiration
and cash is capped at the smaller of equity buying power and the budget.`,
		Example: `  wheel scan
  wheel scan SOFI F PLTR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			report, err := app.Pipeline().ScanSymbols(cmd.Context(), args)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				type row struct {
					trading.SymbolScan
					Error string `json:"error,omitempty"`
				}
				rows := make([]row, 0, len(report.Results))
				for _, r := range report.Results {
					out := row{SymbolScan: r}
					if r.Err != nil {
						out.Error = r.Err.Error()
					}
					rows = append(rows, out)
				}
				return output.JSON(map[string]interface{}{
					"cash_cap": report.CashCap,
					"results":  rows,
				})
			}

			output.Section("CSP SCAN")
			output.Printf("Cash cap %s | %d-%d DTE\n", FormatUSD(report.CashCap), app.Config.Wheel.MinDTE, app.Config.Wheel.MaxDTE)
			if report.BalanceErr != nil {
				output.Warning("Balance unavailable (%v); using budget", report.BalanceErr)
			}
			output.Println()

			for _, r := range report.Results {
				switch {
				case r.Err != nil:
					output.Printf("%s  %s\n", output.BoldText(r.Symbol), output.Red(r.Err.Error()))
				case len(r.Candidates) == 0:
					output.Printf("%s  ~%s  %s\n", output.BoldText(r.Symbol), FormatWholeUSD(r.Price), output.DimText("no puts within cash cap"))
				default:
					output.Printf("%s  ~%s  %s\n", output.BoldText(r.Symbol), FormatWholeUSD(r.Price), output.DimText(Truncate(r.Name, 32)))
					printOptionTable(output, r.Candidates, true)
				}
				output.Println()
			}
			output.Rule()
			return nil
		},
	}
}

func newCallsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calls <ticker>",
		Short: "Find covered calls for shares you hold",
		Long: `List covered-call strikes above the current price. Shares default to the
long equity position in the account; the price comes from --price, the
scan document, or the middle strike of the chain.`,
		Example: `  wheel calls SOFI
  wheel calls F --shares 200 --price 12.40`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			shares, _ := cmd.Flags().GetInt("shares")
			price, _ := cmd.Flags().GetFloat64("price")

			report, err := app.Pipeline().CoveredCalls(cmd.Context(), trading.CallsRequest{
				Ticker:   args[0],
				Shares:   shares,
				Price:    price,
				ScanPath: flagScan(cmd),
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(report)
			}

			output.Section("COVERED CALLS")
			output.Printf("%s  %s (%s) | %d shares\n\n", output.BoldText(report.Ticker), FormatUSD(report.Price), report.PriceSource, report.Shares)
			if len(report.Candidates) == 0 {
				output.Println("No call strikes above the current price in the DTE window.")
			} else {
				printOptionTable(output, report.Candidates, false)
			}
			output.Rule()
			return nil
		},
	}

	cmd.Flags().Int("shares", 0, "shares held (default: from account positions)")
	cmd.Flags().Float64("price", 0, "current stock price (default: from scan or chain)")
	return cmd
}

func printCandidates(output *Output, app *App, candidates []models.StockCandidate) {
	output.Section("WHEEL CANDIDATES")
	w := app.Config.Wheel
	output.Printf("%s budget | %d-%d DTE\n\n", FormatWholeUSD(w.Budget), w.MinDTE, w.MaxDTE)

	if len(candidates) == 0 {
		output.Println("No candidates match criteria.")
		return
	}

	table := NewTable(output, "Ticker", ">Price", ">%ATH", ">RSI", ">Upside", ">Score", ">Rating", ">Signal", "AI")
	for _, c := range candidates {
		table.AddRow(
			c.Ticker,
			FormatWholeUSD(c.Price.Float64()),
			FormatPercent(c.PctFromATH.Float64()),
			strconv.Itoa(int(c.RSI.Float64()+0.5)),
			fmt.Sprintf("+%.0f%%", c.Upside.Float64()),
			strconv.Itoa(c.WheelScore),
			orDash(c.Rating),
			orDash(c.Signal),
			Truncate(c.AIAssessment, 40),
		)
	}
	table.Render()
}

func printEnriched(output *Output, app *App, results []trading.EnrichResult) {
	output.Section("WHEEL CANDIDATES + CSP")
	w := app.Config.Wheel
	output.Printf("%s budget | %d-%d DTE\n\n", FormatWholeUSD(w.Budget), w.MinDTE, w.MaxDTE)

	if len(results) == 0 {
		output.Println("No candidates have a put within budget.")
		return
	}

	table := NewTable(output, "Ticker", ">Price", ">%ATH", ">RSI", ">Score", ">Rating", ">Strike", ">Exp", ">DTE", ">Cash", "AI")
	for _, r := range results {
		s, best := r.Stock, r.Best
		table.AddRow(
			s.Ticker,
			FormatWholeUSD(s.Price.Float64()),
			FormatPercent(s.PctFromATH.Float64()),
			strconv.Itoa(int(s.RSI.Float64()+0.5)),
			strconv.Itoa(s.WheelScore),
			orDash(s.Rating),
			FormatStrike(best.Strike),
			best.ExpirationDate.String(),
			strconv.Itoa(best.DaysToExpiration),
			FormatWholeUSD(best.CashRequired),
			Truncate(s.AIAssessment, 40),
		)
	}
	table.Render()
}

// printOptionTable renders option candidates; cash is shown for puts.
func printOptionTable(output *Output, candidates []models.OptionCandidate, withCash bool) {
	headers := []string{">Strike", ">Exp", ">DTE", "Option"}
	if withCash {
		headers = append(headers, ">Cash")
	}
	table := NewTable(output, headers...)
	for _, c := range candidates {
		row := []string{
			FormatStrike(c.Strike),
			c.ExpirationDate.String(),
			strconv.Itoa(c.DaysToExpiration),
			c.OptionSymbol,
		}
		if withCash {
			row = append(row, FormatWholeUSD(c.CashRequired))
		}
		table.AddRow(row...)
	}
	table.Render()
}
