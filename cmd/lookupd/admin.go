package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refdata-io/lookupd"
	"github.com/refdata-io/lookupd/internal/config"
)

// withApp wires the dependency graph for a one-shot admin command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func newCreateTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-tables",
		Short: "Initialize primary storage for every entity type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Ping(ctx); err != nil {
					return err
				}
				for _, desc := range lookupd.Descriptors() {
					a.logger.Info("table ready", "table", desc.Table)
				}
				return nil
			})
		},
	}
}

func newDropTablesCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop-tables",
		Short: "Delete every record from primary storage and the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop tables without --yes")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				for _, desc := range lookupd.Descriptors() {
					records, err := a.store.Scan(ctx, desc.Table, lookupd.ScanOptions{})
					if err != nil {
						return err
					}
					for _, rec := range records {
						if err := a.store.Delete(ctx, desc.Table, rec.ID()); err != nil {
							return err
						}
						if err := a.index.Remove(ctx, desc.Index, rec.ID()); err != nil {
							a.logger.Warn("index cleanup failed", "id", rec.ID(), "error", err)
						}
					}
					a.logger.Info("table dropped", "table", desc.Table, "records", len(records))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the drop")
	return cmd
}

func newInitIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-index",
		Short: "Rebuild the search index from primary storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reports, err := a.reindexer.RebuildAll(ctx)
				for _, r := range reports {
					fmt.Printf("%s: indexed %d, failed %d (%s)\n", r.Resource, r.Indexed, r.Failed, r.Duration)
				}
				return err
			})
		},
	}
}

// seedFile maps table names to record sets, e.g.
//
//	{"countries": [{"name": "Norway", "countryCode": "NO"}]}
type seedFile map[string][]lookupd.Record

func newLoadDataCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "load-data",
		Short: "Create records from a JSON seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var seed seedFile
			if err := json.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				for _, svc := range a.services {
					desc := svc.Descriptor()
					for _, input := range seed[desc.Table] {
						rec, err := svc.Create(ctx, input)
						if err != nil {
							if lookupd.IsConflict(err) {
								a.logger.Warn("skipping duplicate seed record", "table", desc.Table, "error", err)
								continue
							}
							return err
						}
						a.logger.Info("seeded", "table", desc.Table, "id", rec.ID())
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "seed.json", "seed file path")
	return cmd
}

func newCleanDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean-data",
		Short: "Permanently remove soft-deleted records from both stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				for _, desc := range lookupd.Descriptors() {
					records, err := a.store.Scan(ctx, desc.Table, lookupd.ScanOptions{})
					if err != nil {
						return err
					}
					removed := 0
					for _, rec := range records {
						if !rec.IsDeleted() {
							continue
						}
						if _, err := a.coordinator.Destroy(ctx, desc, rec); err != nil {
							return err
						}
						removed++
					}
					a.logger.Info("cleaned", "table", desc.Table, "removed", removed)
				}
				return nil
			})
		},
	}
}
