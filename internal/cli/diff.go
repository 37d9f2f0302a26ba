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

type diffOptions struct {
	previousPath string
	proposedPath string
	actorID      string
	actorName    string
	exempt       []string
	editor       string
	policyPath   string
	at           string
}

// DiffOutput - изменения и то, что из них попадет в журнал и блокировки
type DiffOutput struct {
	Changes      []domain.ChangeRecord `json:"changes"`
	AuditEntries []domain.ChangeRecord `json:"audit_entries"`
	Locks        domain.LockMap        `json:"locks"`
}

func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show changes between two versions of a record and the resulting locks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.previousPath, "previous", "", "stored record JSON (required)")
	cmd.Flags().StringVar(&opts.proposedPath, "proposed", "", "edited record JSON (required)")
	cmd.Flags().StringVar(&opts.actorID, "actor-id", "", "editor account id (required)")
	cmd.Flags().StringVar(&opts.actorName, "actor-name", "", "editor display name")
	cmd.Flags().StringSliceVar(&opts.exempt, "exempt", nil, "fields excluded from audit and locks")
	cmd.Flags().StringVar(&opts.editor, "editor", "", "apply the exemptions of this editor policy (admin|broker)")
	cmd.Flags().StringVar(&opts.policyPath, "policy", "", "policy YAML file")
	cmd.Flags().StringVar(&opts.at, "at", "", "change timestamp, RFC3339 (default: now)")
	_ = cmd.MarkFlagRequired("previous")
	_ = cmd.MarkFlagRequired("proposed")
	_ = cmd.MarkFlagRequired("actor-id")

	return cmd
}

func runDiff(rootOpts *RootOptions, opts *diffOptions, cmd *cobra.Command) error {
	var previous, proposed domain.PropertyRecord
	if err := readJSONFile(opts.previousPath, &previous); err != nil {
		return err
	}
	if err := readJSONFile(opts.proposedPath, &proposed); err != nil {
		return err
	}

	exempt := domain.NewFieldSet()
	for _, name := range opts.exempt {
		f, err := domain.ParseFieldName(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --exempt", err)
		}
		exempt[f] = struct{}{}
	}

	if opts.editor != "" {
		policy, err := configs.LoadPolicy(opts.policyPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load policy", err)
		}
		editorPolicy, err := policy.EditorPolicy(domain.Editor(opts.editor))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --editor", err)
		}
		exempt = exempt.Union(syncengine.ExemptFields(proposed, editorPolicy))
	}

	at := time.Now().UTC()
	if opts.at != "" {
		parsed, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
		at = parsed.UTC()
	}
	actorName := opts.actorName
	if actorName == "" {
		actorName = opts.actorID
	}

	changes := syncengine.Diff(previous, proposed, domain.ChangeMeta{ActorID: opts.actorID, ActorName: actorName, Timestamp: at})
	ledger := syncengine.ApplyChanges(changes, exempt, syncengine.WithLockExempt(syncengine.DriftingFields(proposed)))

	out := DiffOutput{
		Changes:      nonNilChanges(changes),
		AuditEntries: nonNilChanges(ledger.NewAuditEntries),
		Locks:        ledger.NewLocks,
	}

	return rootOpts.printer(cmd).Print(out, func(w io.Writer) {
		if len(changes) == 0 {
			fmt.Fprintln(w, "no changes")
			return
		}
		for _, c := range changes {
			marker := " "
			if ledger.NewLocks.IsLocked(c.Field) {
				marker = "L"
			} else if exempt.Has(c.Field) {
				marker = "-"
			}
			fmt.Fprintf(w, "%s %-26s %v -> %v\n", marker, c.Field, c.PreviousValue, c.NewValue)
		}
		fmt.Fprintf(w, "%d change(s), %d audit entr(ies), %d new lock(s)\n",
			len(changes), len(ledger.NewAuditEntries), len(ledger.NewLocks))
	})
}

func nonNilChanges(in []domain.ChangeRecord) []domain.ChangeRecord {
	if in == nil {
		return []domain.ChangeRecord{}
	}
	return in
}
