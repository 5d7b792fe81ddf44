package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iho/beanbank/internal/adapter/http/dto"
	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

type options struct {
	baseURL        string
	timeout        time.Duration
	jsonOutput     bool
	idempotencyKey string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "beanbank",
		Short:         "BeanBank CLI tool",
		Long:          `A command line interface for interacting with the BeanBank API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the BeanBank API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print raw JSON instead of tables")
	rootCmd.PersistentFlags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency-Key sent with mutating requests")

	rootCmd.AddCommand(
		stateCmd(opts),
		leaderboardCmd(opts),
		bookCmd(opts),
		transferCmd(opts),
		orderCmd(opts),
		ledgerCmd(opts),
	)

	return rootCmd
}

func (o *options) client() *apiClient {
	c := newAPIClient(o.baseURL, o.timeout)
	c.idempotencyKey = o.idempotencyKey
	return c
}

func stateCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show accounts, treasury and activity counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var state usecase.StateSnapshot
			path := "/api/v1/state?transactions=" + strconv.Itoa(limit)
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &state); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, state)
			}

			if err := renderAccounts(out, state.Accounts); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nseq %d | %d transactions | %d open orders | %d bets | %d dares\n",
				state.Seq, len(state.Transactions), len(state.Orders), len(state.Bets), len(state.Dares))
			fmt.Fprintf(out, "escrowed %s BEAN, %s BEANCOIN | residual %s BEAN\n",
				formatAmount(state.Treasury.Escrowed[domain.TokenBean]),
				formatAmount(state.Treasury.Escrowed[domain.TokenBeanCoin]),
				formatAmount(state.Treasury.Residual))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "transactions", 20, "Number of recent transactions to fetch")
	return cmd
}

func leaderboardCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the richest accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.AccountsResponse
			path := "/api/v1/leaderboard?limit=" + strconv.Itoa(limit)
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, resp)
			}

			table := tablewriter.NewWriter(out)
			table.Header("#", "User", "Section", "Beans", "BeanCoins")
			for i, acc := range resp.Users {
				if err := table.Append(
					strconv.Itoa(i+1),
					acc.Username,
					acc.Section,
					formatAmount(acc.Beans),
					formatAmount(acc.BeanCoins),
				); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of accounts to show")
	return cmd
}

func bookCmd(opts *options) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Show BeanCoin order book depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.OrderBookResponse
			path := "/api/v1/market/book?depth=" + strconv.Itoa(depth)
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, resp)
			}

			table := tablewriter.NewWriter(out)
			table.Header("Side", "Price", "Amount", "Orders")
			// asks worst first so the spread sits in the middle
			for i := len(resp.Asks) - 1; i >= 0; i-- {
				lvl := resp.Asks[i]
				if err := table.Append("ASK", formatAmount(lvl.Price), formatAmount(lvl.Amount), strconv.Itoa(lvl.Orders)); err != nil {
					return err
				}
			}
			for _, lvl := range resp.Bids {
				if err := table.Append("BID", formatAmount(lvl.Price), formatAmount(lvl.Amount), strconv.Itoa(lvl.Orders)); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 10, "Price levels per side")
	return cmd
}

func transferCmd(opts *options) *cobra.Command {
	var (
		from, to, token, amount, memo, category string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move funds between two users",
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := domain.ParseAmount(amount)
			if err != nil {
				return err
			}
			body := map[string]any{
				"fromUserId":  from,
				"toUserId":    to,
				"token":       token,
				"amount":      units,
				"description": memo,
				"category":    category,
			}

			var tx domain.Transaction
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/transfers", body, &tx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, tx)
			}
			fmt.Fprintf(out, "transaction %s: %s -> %s %s %s\n",
				tx.ID, tx.From, tx.To, formatAmount(tx.Amount), tx.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Sender user id")
	cmd.Flags().StringVar(&to, "to", "", "Recipient user id")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to move")
	cmd.Flags().StringVar(&token, "token", string(domain.TokenBean), "Token (BEAN or BEANCOIN)")
	cmd.Flags().StringVar(&memo, "memo", "", "Description")
	cmd.Flags().StringVar(&category, "category", "", "Category")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func orderCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "BeanCoin market orders",
	}
	cmd.AddCommand(orderSubmitCmd(opts), orderCancelCmd(opts))
	return cmd
}

func orderSubmitCmd(opts *options) *cobra.Command {
	var user, side, kind, amount, price string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a limit or market order",
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := domain.ParseAmount(amount)
			if err != nil {
				return err
			}
			body := map[string]any{
				"userId": user,
				"side":   side,
				"type":   kind,
				"amount": units,
			}
			if price != "" {
				p, err := domain.ParseAmount(price)
				if err != nil {
					return fmt.Errorf("price: %w", err)
				}
				body["price"] = p
			}

			var res usecase.SubmitResult
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/orders", body, &res); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, res)
			}

			fmt.Fprintf(out, "order %s %s: filled %s, remaining %s\n",
				res.OrderID, res.Status, formatAmount(res.Filled), formatAmount(res.Remaining))
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			if len(res.Trades) == 0 {
				return nil
			}

			table := tablewriter.NewWriter(out)
			table.Header("Maker", "Taker", "Side", "Price", "Amount")
			for _, tr := range res.Trades {
				if err := table.Append(tr.MakerID, tr.TakerID, string(tr.TakerSide), formatAmount(tr.Price), formatAmount(tr.Amount)); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Owner user id")
	cmd.Flags().StringVar(&side, "side", "", "BUY or SELL")
	cmd.Flags().StringVar(&kind, "type", string(domain.KindLimit), "LIMIT or MARKET")
	cmd.Flags().StringVar(&amount, "amount", "", "BeanCoin amount")
	cmd.Flags().StringVar(&price, "price", "", "Limit price in beans")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func orderCancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a resting order and refund its escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res usecase.CancelResult
			path := "/api/v1/orders/" + url.PathEscape(args[0])
			if err := opts.client().do(cmd.Context(), http.MethodDelete, path, nil, &res); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "order %s %s: refunded %s %s\n", args[0], res.Status, formatAmount(res.Refund), res.Token)
			return nil
		},
	}
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConsistency(cmd, opts)
		},
	}

	cmd.AddCommand(consistencyCmd)
	return cmd
}

// checkConsistency fails when the report is inconsistent. The API answers
// 500 with the full report in that case.
func checkConsistency(cmd *cobra.Command, opts *options) error {
	status, body, err := opts.client().request(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil)
	if err != nil {
		return err
	}

	var report dto.ConsistencyResponse
	if err := json.Unmarshal(body, &report); err != nil || report.Tokens == nil {
		return decodeAPIError(status, body)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		table := tablewriter.NewWriter(out)
		table.Header("Token", "Users", "Escrowed", "Supply", "Minted", "Entry sum")
		for _, tr := range report.Tokens {
			if err := table.Append(
				string(tr.Token),
				formatAmount(tr.UserBalances),
				formatAmount(tr.Escrowed),
				formatAmount(tr.Supply),
				formatAmount(tr.Minted),
				formatAmount(tr.EntrySum),
			); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		for _, issue := range report.Issues {
			fmt.Fprintf(out, "issue: %s\n", issue)
		}
	}

	if !report.Consistent {
		return fmt.Errorf("consistency check FAILED: %d issue(s) across %d transactions", len(report.Issues), report.TransactionCount)
	}
	if !opts.jsonOutput {
		fmt.Fprintf(out, "Consistency check PASSED (%d transactions)\n", report.TransactionCount)
	}
	return nil
}

func renderAccounts(out io.Writer, accounts []*domain.Account) error {
	table := tablewriter.NewWriter(out)
	table.Header("ID", "User", "Section", "Beans", "BeanCoins")
	for _, acc := range accounts {
		if err := table.Append(acc.ID, acc.Username, acc.Section, formatAmount(acc.Beans), formatAmount(acc.BeanCoins)); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatAmount(v int64) string {
	return strconv.FormatInt(v, 10)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
