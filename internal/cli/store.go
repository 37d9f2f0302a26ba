package cli

import (
	"context"
	"fmt"
	"io"

	sqlite_adapter "property-sync-service/internal/adapters/sqlite"
	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/usecase"

	"github.com/spf13/cobra"
)

type storeOptions struct {
	dbPath string
}

// NewStoreCommand - локальное SQLite-хранилище записей, тот же порт, что и у postgres
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &storeOptions{}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Read and write records in a local SQLite store",
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "property-sync.db", "SQLite database file")

	cmd.AddCommand(newStoreGetCommand(rootOpts, opts))
	cmd.AddCommand(newStoreSaveCommand(rootOpts, opts))
	cmd.AddCommand(newStoreAuditCommand(rootOpts, opts))

	return cmd
}

func (o *storeOptions) open(ctx context.Context) (*sqlite_adapter.SQLiteRecordStorageAdapter, error) {
	store, err := sqlite_adapter.Open(ctx, o.dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store "+o.dbPath, err)
	}
	return store, nil
}

func newStoreGetCommand(rootOpts *RootOptions, opts *storeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <record-id>",
		Short: "Print a stored record with its locks and audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextkeys.ContextWithLogger(cmd.Context(), rootOpts.logger(cmd))
			store, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.LoadRecord(ctx, domain.RecordID(args[0]))
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load record", err)
			}

			return rootOpts.printer(cmd).Print(rec, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s\n", rec.ID, rec.Title)
				fmt.Fprintf(w, "  price: %s %s (canonical %s USD)\n", rec.PublishedPrice, rec.QuotingRegime, rec.CanonicalPriceUSD)
				fmt.Fprintf(w, "  updated_at: %s\n", rec.UpdatedAt.Format("2006-01-02T15:04:05.000000Z07:00"))
				for _, f := range lockedFieldsSorted(rec.LockedFields) {
					lock := rec.LockedFields[f]
					fmt.Fprintf(w, "  locked %s by %s at %s\n", f, lock.ActorID, lock.Timestamp.Format("2006-01-02 15:04"))
				}
				fmt.Fprintf(w, "  audit entries: %d\n", len(rec.AuditLog))
			})
		},
	}
}

func newStoreSaveCommand(rootOpts *RootOptions, opts *storeOptions) *cobra.Command {
	var recordPath, official, parallel string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Insert or replace a record (import; no audit, locks untouched)",
		Long: `Imports a record file. Fields locked by manual edits keep their stored values
and the canonical price is recomputed from the given rates; the file's
canonical_price_usd is ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec domain.PropertyRecord
			if err := readJSONFile(recordPath, &rec); err != nil {
				return err
			}
			if rec.ID == "" {
				return NewExitError(ExitCommandError, "record id is empty")
			}
			rates, err := ratesFromFlags(official, parallel)
			if err != nil {
				return err
			}

			ctx := contextkeys.ContextWithLogger(cmd.Context(), rootOpts.logger(cmd))
			store, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			importer := usecase.NewImportRecordUseCase(store, usecase.NewRatesUseCase(nil, nil, nil, rates))
			saved, err := importer.Import(ctx, rec)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to save record", err)
			}

			return rootOpts.printer(cmd).Print(saved, func(w io.Writer) {
				fmt.Fprintf(w, "saved %s (updated_at %s)\n", saved.ID, saved.UpdatedAt.Format("2006-01-02T15:04:05.000000Z07:00"))
				for _, f := range lockedFieldsSorted(saved.LockedFields) {
					fmt.Fprintf(w, "  kept locked %s\n", f)
				}
			})
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "record JSON file (required)")
	cmd.Flags().StringVar(&official, "official", "6.96", "official exchange rate")
	cmd.Flags().StringVar(&parallel, "parallel", "10.5", "parallel exchange rate")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}

func newStoreAuditCommand(rootOpts *RootOptions, opts *storeOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "audit <record-id>",
		Short: "Print the audit log of a record, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextkeys.ContextWithLogger(cmd.Context(), rootOpts.logger(cmd))
			store, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.GetAuditLog(ctx, domain.RecordID(args[0]), limit, offset)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read audit log", err)
			}

			return rootOpts.printer(cmd).Print(nonNilChanges(entries), func(w io.Writer) {
				for _, e := range entries {
					fmt.Fprintf(w, "%s  %-26s %v -> %v  (%s)\n",
						e.Timestamp.Format("2006-01-02 15:04"), e.Field, e.PreviousValue, e.NewValue, e.ActorID)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}

func lockedFieldsSorted(locks domain.LockMap) []domain.FieldName {
	fields := make([]domain.FieldName, 0, len(locks))
	for f := range locks {
		fields = append(fields, f)
	}
	domain.SortFields(fields)
	return fields
}
