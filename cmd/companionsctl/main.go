// Command companionsctl is the operations CLI: bulk-loads the KBO open data,
// loads registry code labels and runs one-off reconciliations without going
// through the job queue.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/loader"
	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/importer"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/nbb"
	finstore "github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/config"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/logger"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/postgres"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

func main() {
	root := &cobra.Command{
		Use:   "companionsctl",
		Short: "Operations CLI for the companions backend",
	}
	root.AddCommand(loadCompaniesCmd())
	root.AddCommand(loadCodesCmd())
	root.AddCommand(reconcileCmd())
	root.AddCommand(normalizeNumbersCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (config.Config, *sql.DB, *companystore.Postgres, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, err
	}
	db, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return cfg, nil, nil, err
	}
	return cfg, db, companystore.NewPostgres(db), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadCompaniesCmd() *cobra.Command {
	var dir, baseURL string
	cmd := &cobra.Command{
		Use:   "load-companies",
		Short: "Apply a KBO open-data dump set from a directory or base URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (dir == "") == (baseURL == "") {
				return errors.New("exactly one of --dir or --url is required")
			}
			ctx, stop := signalContext()
			defer stop()

			cfg, db, companies, err := setup(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			log := logger.New(cfg.Server.Env)

			var source loader.FileSource
			if dir != "" {
				source = loader.NewDirSource(dir)
			} else {
				source = loader.NewHTTPSource(baseURL, nil)
			}
			return loader.New(source, companies, log).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "local directory holding the dump set")
	cmd.Flags().StringVar(&baseURL, "url", "", "base URL serving the dump set")
	return cmd
}

// kboCategories maps KBO code.csv categories onto the label categories the
// API resolves against. Categories absent from the map are stored lowercased,
// which is how the NBB mandate function table (Category "Mandate") ends up
// under the "mandate" category the account importer resolves against.
var kboCategories = map[string]string{
	"JuridicalForm":      "legal_form",
	"JuridicalSituation": "status",
	"TypeOfAddress":      "address_type",
}

func loadCodesCmd() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "load-codes <code.csv>",
		Short: "Load registry code labels (KBO code table or NBB mandate function table)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			_, db, companies, err := setup(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			labels, err := parseCodeTable(file, language)
			if err != nil {
				return err
			}
			if err := companies.UpsertLabels(ctx, labels); err != nil {
				return err
			}
			fmt.Printf("Loaded %d code labels.\n", len(labels))
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "NL", "label language to keep")
	return cmd
}

func parseCodeTable(r io.Reader, language string) ([]*models.CodeLabel, error) {
	reader := csv.NewReader(r)
	head, err := reader.Read()
	if err != nil {
		return nil, err
	}
	column := make(map[string]int, len(head))
	for idx, name := range head {
		column[strings.TrimSpace(name)] = idx
	}
	for _, required := range []string{"Category", "Code", "Language", "Description"} {
		if _, ok := column[required]; !ok {
			return nil, fmt.Errorf("code table misses column %s", required)
		}
	}

	var labels []*models.CodeLabel
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row[column["Language"]] != language {
			continue
		}
		category := row[column["Category"]]
		if mapped, ok := kboCategories[category]; ok {
			category = mapped
		} else {
			category = strings.ToLower(category)
		}
		labels = append(labels, &models.CodeLabel{
			Category: category,
			Code:     row[column["Code"]],
			Name:     row[column["Description"]],
		})
	}
	return labels, nil
}

func reconcileCmd() *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "reconcile <enterprise-number>",
		Short: "Reconcile one company's annual accounts with the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, db, companies, err := setup(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			log := logger.New(cfg.Server.Env)

			imp := importer.New(companies, finstore.NewPostgres(db), nbb.NewClient(cfg.NBB),
				finstore.NewSQLTxRunner(db), nil, log, rebuild)
			result, err := imp.Run(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Status: %s, imported %d filing(s).\n", result.Status, result.Imported)
			for _, ref := range result.Skipped {
				fmt.Printf("Skipped: %s\n", ref)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "delete stored accounts before resyncing")
	return cmd
}

func normalizeNumbersCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "normalize-numbers",
		Short: "Re-normalize every stored enterprise number to the canonical form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			_, db, companies, err := setup(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			all, err := companies.ListAll(ctx)
			if err != nil {
				return err
			}
			changed := 0
			for _, company := range all {
				normalized, err := vat.Parse(company.EnterpriseNumber.String())
				if err != nil {
					fmt.Printf("Unfixable number %q on company %s\n", company.EnterpriseNumber, company.ID)
					continue
				}
				if normalized == company.EnterpriseNumber {
					continue
				}
				changed++
				if dryRun {
					fmt.Printf("Would rewrite %q -> %q\n", company.EnterpriseNumber, normalized)
					continue
				}
				if err := companies.UpdateNumber(ctx, company.ID, normalized); err != nil {
					return fmt.Errorf("rewrite %s: %w", company.ID, err)
				}
			}
			fmt.Printf("Normalized %d number(s).\n", changed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	return cmd
}
