package cli

import (
	"fmt"
	"io"

	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/syncengine"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type normalizeOptions struct {
	price    string
	regime   string
	official string
	parallel string
}

func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &normalizeOptions{}

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Convert a published price to canonical USD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.price, "price", "", "published price (required)")
	cmd.Flags().StringVar(&opts.regime, "regime", string(domain.RegimeOfficialUSD), "quoting regime: official_usd|parallel_usd|local_currency")
	cmd.Flags().StringVar(&opts.official, "official", "6.96", "official exchange rate")
	cmd.Flags().StringVar(&opts.parallel, "parallel", "10.5", "parallel exchange rate")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func runNormalize(rootOpts *RootOptions, opts *normalizeOptions, cmd *cobra.Command) error {
	price, err := parseDecimalFlag("price", opts.price)
	if err != nil {
		return err
	}
	official, err := parseDecimalFlag("official", opts.official)
	if err != nil {
		return err
	}
	parallel, err := parseDecimalFlag("parallel", opts.parallel)
	if err != nil {
		return err
	}
	regime, err := domain.ParseQuotingRegime(opts.regime)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --regime", err)
	}

	preview := domain.PricePreview{
		CanonicalPriceUSD: syncengine.Normalize(price, regime, official, parallel),
		OfficialRate:      official,
		ParallelRate:      parallel,
	}

	return rootOpts.printer(cmd).Print(preview, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s -> %s USD (official %s, parallel %s)\n",
			price, regime, preview.CanonicalPriceUSD, official, parallel)
	})
}

func parseDecimalFlag(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s %q", name, value), err)
	}
	return d, nil
}
