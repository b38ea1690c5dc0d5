package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devlongs/trade-guardian/internal/assess"
	"github.com/devlongs/trade-guardian/internal/dex/guardian"
	"github.com/devlongs/trade-guardian/internal/dex/uniswapv2"
	"github.com/devlongs/trade-guardian/internal/handlers"
	"github.com/devlongs/trade-guardian/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "guardian",
		Short:        "Pre-trade price impact and slippage guard for constant-product pools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")
	root.PersistentFlags().Bool("no-advisor", false, "skip advisory text generation")
	root.PersistentFlags().Bool("no-exact", false, "skip the integer base-unit check")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Assess a single trade",
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().String("sell", "ETH", "asset to sell")
	analyzeCmd.Flags().String("buy", "USDC", "asset to buy")
	analyzeCmd.Flags().Float64("amount", 1, "amount of the sell asset")
	analyzeCmd.Flags().Bool("calldata", false, "also print guardian contract calldata and expected return data")
	root.AddCommand(analyzeCmd)

	ladderCmd := &cobra.Command{
		Use:   "ladder",
		Short: "Assess several trade sizes against one pool snapshot",
		RunE:  runLadder,
	}
	ladderCmd.Flags().String("sell", "ETH", "asset to sell")
	ladderCmd.Flags().String("buy", "USDC", "asset to buy")
	ladderCmd.Flags().Float64Slice("sizes", []float64{1, 10, 100, 1000}, "trade sizes (comma-separated)")
	ladderCmd.Flags().Bool("max-safe", false, "also report the largest size that stays Safe")
	root.AddCommand(ladderCmd)

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "List known tokens",
		RunE:  runTokens,
	}
	root.AddCommand(tokensCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", ":8080", "listen address")
	root.AddCommand(serveCmd)

	return root
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sell, _ := cmd.Flags().GetString("sell")
	buy, _ := cmd.Flags().GetString("buy")
	amount, _ := cmd.Flags().GetFloat64("amount")

	result, err := a.assessor.Assess(ctx, assess.Request{Sell: sell, Buy: buy, Amount: amount})
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if withCalldata, _ := cmd.Flags().GetBool("calldata"); withCalldata {
		return printCalldata(cmd.OutOrStdout(), a, result)
	}
	return nil
}

// printCalldata emits the analyzeTrade call for the assessed trade and the
// return data the contract should produce for it
func printCalldata(w io.Writer, a *app, result *types.Assessment) error {
	registry := a.assessor.Provider().Registry()
	decIn := registry.Resolve(result.Sell).Decimals
	decOut := registry.Resolve(result.Buy).Decimals

	amountIn, err := uniswapv2.ToBaseUnits(result.Amount, decIn)
	if err != nil {
		return err
	}
	reserveIn, err := uniswapv2.ToBaseUnits(result.Reserves.Reserve0, decIn)
	if err != nil {
		return err
	}
	reserveOut, err := uniswapv2.ToBaseUnits(result.Reserves.Reserve1, decOut)
	if err != nil {
		return err
	}

	calldata, err := guardian.PackAnalyzeTrade(amountIn, reserveIn, reserveOut)
	if err != nil {
		return err
	}
	res, err := uniswapv2.AnalyzeTrade(amountIn, reserveIn, reserveOut, uniswapv2.ContractFee, uniswapv2.DefaultSafeBps)
	if err != nil {
		return err
	}
	returnData, err := guardian.EncodeResult(guardian.FromResult(res))
	if err != nil {
		return err
	}

	return printJSON(w, map[string]any{
		"calldata":       hexutil.Encode(calldata),
		"expectedReturn": hexutil.Encode(returnData),
		"impactBps":      res.ImpactBps,
		"isSafe":         res.Safe,
	})
}

func runLadder(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sell, _ := cmd.Flags().GetString("sell")
	buy, _ := cmd.Flags().GetString("buy")
	sizes, _ := cmd.Flags().GetFloat64Slice("sizes")

	steps, err := a.assessor.Ladder(ctx, sell, buy, sizes)
	if err != nil {
		return err
	}
	a.logger.LogLadder(types.PairName(sell, buy), steps)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AMOUNT\tOUTPUT\tIMPACT %\tSLIPPAGE %\tHEALTH\tMAX SIZE")
	for _, s := range steps {
		fmt.Fprintf(tw, "%g\t%.6f\t%.4f\t%.4f\t%s\t%.4f\n",
			s.Amount, s.Analysis.ExpectedOutput, s.Analysis.PriceImpact, s.Analysis.Slippage,
			s.Analysis.Health, s.Analysis.MaxRecommendedSize)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if maxSafe, _ := cmd.Flags().GetBool("max-safe"); maxSafe {
		step, err := a.assessor.MaxSafeSize(ctx, sell, buy)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nLargest Safe size: %.6f %s (%.4f%% impact)\n", step.Amount, sell, step.Analysis.PriceImpact)
	}
	return nil
}

func runTokens(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tNAME\tDECIMALS\tPRICE USD\tCLASS")
	for _, t := range a.assessor.Provider().Registry().All() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%g\t%s\n", t.Symbol, t.Name, t.Decimals, t.PriceUSD, t.Class)
	}
	return tw.Flush()
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      handlers.NewHandler(a.assessor).Router(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting Trade Guardian API...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var statsC <-chan time.Time
	if a.cfg.Server.StatsInterval > 0 {
		statsTicker := time.NewTicker(a.cfg.Server.StatsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("serve: %w", err)
			}
			return nil

		case <-statsC:
			a.logger.LogStats()

		case <-ctx.Done():
			log.Info().Msg("Shutting down API...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			a.logger.LogStats()
			log.Info().Msg("Trade Guardian stopped")
			return nil
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
