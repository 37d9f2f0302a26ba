package cli

import (
	"fmt"
	"io"
	"time"

	"property-sync-service/internal/configs"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/syncengine"

	"github.com/spf13/cobra"
)

type validateOptions struct {
	recordPath string
	policyPath string
	today      string
	confirmed  bool
	official   string
	parallel   string
}

// ValidateOutput - результат проверки и решение для формы
type ValidateOutput struct {
	CanonicalPriceUSD string                  `json:"canonical_price_usd"`
	Result            domain.ValidationResult `json:"validation"`
	Decision          string                  `json:"decision"`
}

func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run plausibility checks on a record",
		Long: `Recomputes the canonical price from the given rates and runs the plausibility
checks. Exits with 1 when the record has hard errors, or warnings without --confirmed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.recordPath, "record", "", "record JSON file (required)")
	cmd.Flags().StringVar(&opts.policyPath, "policy", "", "policy YAML file (thresholds, service area)")
	cmd.Flags().StringVar(&opts.today, "today", "", "reference date YYYY-MM-DD for the delivery date check (default: now)")
	cmd.Flags().BoolVar(&opts.confirmed, "confirmed", false, "treat warnings as confirmed")
	cmd.Flags().StringVar(&opts.official, "official", "6.96", "official exchange rate")
	cmd.Flags().StringVar(&opts.parallel, "parallel", "10.5", "parallel exchange rate")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}

func runValidate(rootOpts *RootOptions, opts *validateOptions, cmd *cobra.Command) error {
	policy, err := configs.LoadPolicy(opts.policyPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load policy", err)
	}

	var rec domain.PropertyRecord
	if err := readJSONFile(opts.recordPath, &rec); err != nil {
		return err
	}

	rates, err := ratesFromFlags(opts.official, opts.parallel)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if opts.today != "" {
		now, err = time.Parse(time.DateOnly, opts.today)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --today", err)
		}
	}

	rec = syncengine.Recompute(rec, rates)
	result := syncengine.NewValidator(policy.ValidatorConfig()).Validate(rec, now)
	decision := syncengine.Gate(result, opts.confirmed)

	out := ValidateOutput{
		CanonicalPriceUSD: rec.CanonicalPriceUSD.String(),
		Result:            result,
		Decision:          decision.String(),
	}
	if out.Result.Errors == nil {
		out.Result.Errors = []string{}
	}
	if out.Result.Warnings == nil {
		out.Result.Warnings = []string{}
	}

	err = rootOpts.printer(cmd).Print(out, func(w io.Writer) {
		fmt.Fprintf(w, "canonical price: %s USD\n", out.CanonicalPriceUSD)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "error:   %s\n", e)
		}
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warn)
		}
		fmt.Fprintf(w, "decision: %s\n", decision)
	})
	if err != nil {
		return err
	}

	if decision != syncengine.GateProceed {
		return NewExitError(ExitFailure, "record cannot be saved as is: "+decision.String())
	}
	return nil
}

func ratesFromFlags(official, parallel string) (domain.Rates, error) {
	o, err := parseDecimalFlag("official", official)
	if err != nil {
		return domain.Rates{}, err
	}
	p, err := parseDecimalFlag("parallel", parallel)
	if err != nil {
		return domain.Rates{}, err
	}
	return domain.Rates{Official: o, Parallel: p, Source: "cli"}, nil
}
