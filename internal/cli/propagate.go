package cli

import (
	"fmt"
	"io"

	sqlite_adapter "property-sync-service/internal/adapters/sqlite"
	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/syncengine"
	"property-sync-service/internal/core/usecase"

	"github.com/spf13/cobra"
)

type propagateOptions struct {
	fieldsPath string
	childPaths []string
	dbPath     string
	parentID   string
	actorID    string
	actorName  string
}

func NewPropagateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &propagateOptions{}

	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Propagate project attributes to child units, skipping locked fields",
		Long: `Without --db the command only plans: it reads child records from --child files and
reports which fields would be written or skipped. With --db and --parent it applies the
propagation to a local SQLite store and records audit entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropagate(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.fieldsPath, "fields", "", `JSON object {"field": value} (required)`)
	cmd.Flags().StringSliceVar(&opts.childPaths, "child", nil, "child record JSON file (repeatable, plan mode)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite store to apply the propagation to")
	cmd.Flags().StringVar(&opts.parentID, "parent", "", "project record id (apply mode)")
	cmd.Flags().StringVar(&opts.actorID, "actor-id", "", "author of the audit entries (default: system)")
	cmd.Flags().StringVar(&opts.actorName, "actor-name", "", "author display name")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func runPropagate(rootOpts *RootOptions, opts *propagateOptions, cmd *cobra.Command) error {
	var raw map[string]any
	if err := readJSONFile(opts.fieldsPath, &raw); err != nil {
		return err
	}
	fields, err := domain.FieldValuesFromMap(raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --fields", err)
	}
	if err := syncengine.CheckPropagatable(fields); err != nil {
		return WrapExitError(ExitCommandError, "invalid --fields", err)
	}

	var summary domain.PropagationSummary
	if opts.dbPath != "" {
		if opts.parentID == "" {
			return NewExitError(ExitCommandError, "--parent is required with --db")
		}
		applied, err := applyPropagation(rootOpts, opts, cmd, fields)
		if err != nil {
			return err
		}
		summary = *applied
	} else {
		if len(opts.childPaths) == 0 {
			return NewExitError(ExitCommandError, "either --child files or --db with --parent are required")
		}
		children := make([]domain.ChildLocks, 0, len(opts.childPaths))
		for _, path := range opts.childPaths {
			var child domain.PropertyRecord
			if err := readJSONFile(path, &child); err != nil {
				return err
			}
			children = append(children, domain.ChildLocks{ChildID: child.ID, Locks: child.LockedFields})
		}
		summary = syncengine.PlanPropagation(fields, children)
	}

	err = rootOpts.printer(cmd).Print(summary, func(w io.Writer) {
		for _, child := range summary.Children {
			if child.Error != "" {
				fmt.Fprintf(w, "%s: failed: %s\n", child.ChildID, child.Error)
				continue
			}
			fmt.Fprintf(w, "%s: written %v, skipped %v\n", child.ChildID, child.Written, child.Skipped)
		}
		fmt.Fprintln(w, summary.Message())
	})
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", summary.Failed))
	}
	return nil
}

func applyPropagation(rootOpts *RootOptions, opts *propagateOptions, cmd *cobra.Command, fields []domain.FieldValue) (*domain.PropagationSummary, error) {
	ctx := contextkeys.ContextWithLogger(cmd.Context(), rootOpts.logger(cmd))

	store, err := sqlite_adapter.Open(ctx, opts.dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer store.Close()

	summary, err := usecase.NewPropagateProjectUseCase(store, nil).Propagate(ctx, domain.PropagateCommand{
		ParentID: domain.RecordID(opts.parentID),
		Fields:   fields,
		Actor:    domain.Actor{ID: opts.actorID, Name: opts.actorName},
	})
	if err != nil {
		return nil, WrapExitError(ExitFailure, "propagation failed", err)
	}
	return summary, nil
}
