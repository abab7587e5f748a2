// Package loader ingests the KBO open-data CSV dumps. A dump set is four
// files applied in a fixed order so new companies exist before their names
// and addresses arrive; files missing from a set are skipped, the rest is
// still applied.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	"github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

const (
	fileEnterprises  = "enterprise_insert.csv"
	fileDeletes      = "enterprise_delete.csv"
	fileDenomination = "denomination_insert.csv"
	fileAddresses    = "address_insert.csv"

	// Official denomination; other types are abbreviations and translations.
	denominationTypeName = "001"

	batchSize = 1000

	kboDateLayout = "02/01/2006"
)

// filesInOrder is the processing order; fetching happens in parallel but
// application is strictly sequential.
var filesInOrder = []string{fileEnterprises, fileDeletes, fileDenomination, fileAddresses}

// enterpriseTypes admitted from the dump: 0 legacy, 2 legal person.
var enterpriseTypes = map[string]bool{"0": true, "2": true}

var parenthetical = regexp.MustCompile(`\s*\(.*?\)`)

// FileSource yields one named dump file. Open returns sentinel.ErrNotFound
// when the set does not contain the file.
type FileSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

type Loader struct {
	source FileSource
	store  store.Store
	logger *slog.Logger
}

func New(source FileSource, st store.Store, logger *slog.Logger) *Loader {
	return &Loader{source: source, store: st, logger: logger}
}

// Run fetches the dump set and applies it.
func (l *Loader) Run(ctx context.Context) error {
	var mu sync.Mutex
	contents := make(map[string][]byte, len(filesInOrder))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range filesInOrder {
		g.Go(func() error {
			reader, err := l.source.Open(gctx, name)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					l.logger.InfoContext(gctx, "dump file absent, skipping", slog.String("file", name))
					return nil
				}
				return fmt.Errorf("open %s: %w", name, err)
			}
			defer reader.Close()
			data, err := io.ReadAll(reader)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			mu.Lock()
			contents[name] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	steps := map[string]func(context.Context, *csv.Reader) error{
		fileEnterprises:  l.applyEnterprises,
		fileDeletes:      l.applyDeletes,
		fileDenomination: l.applyDenominations,
		fileAddresses:    l.applyAddresses,
	}
	for _, name := range filesInOrder {
		data, ok := contents[name]
		if !ok {
			continue
		}
		l.logger.InfoContext(ctx, "applying dump file", slog.String("file", name))
		if err := steps[name](ctx, csv.NewReader(bytes.NewReader(data))); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// record gives header-keyed access to one CSV row.
type record struct {
	header map[string]int
	fields []string
}

func (r record) get(column string) string {
	idx, ok := r.header[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return r.fields[idx]
}

func eachRecord(reader *csv.Reader, fn func(record) error) error {
	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	header := make(map[string]int, len(head))
	for idx, column := range head {
		header[strings.TrimSpace(column)] = idx
	}
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(record{header: header, fields: fields}); err != nil {
			return err
		}
	}
}

func (l *Loader) applyEnterprises(ctx context.Context, reader *csv.Reader) error {
	var batch []*models.Company
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.store.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err := eachRecord(reader, func(row record) error {
		if !enterpriseTypes[row.get("TypeOfEnterprise")] {
			return nil
		}
		number, err := vat.Parse(row.get("EnterpriseNumber"))
		if err != nil {
			l.logger.WarnContext(ctx, "skipping row with bad enterprise number",
				slog.String("raw", row.get("EnterpriseNumber")))
			return nil
		}
		batch = append(batch, &models.Company{
			EnterpriseNumber: number,
			StatusCode:       row.get("JuridicalSituation"),
			LegalFormCode:    row.get("JuridicalForm"),
			StartDate:        parseKBODate(row.get("StartDate")),
		})
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func (l *Loader) applyDeletes(ctx context.Context, reader *csv.Reader) error {
	return eachRecord(reader, func(row record) error {
		number, err := vat.Parse(row.get("EnterpriseNumber"))
		if err != nil {
			return nil
		}
		if err := l.store.Deactivate(ctx, number); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		return nil
	})
}

func (l *Loader) applyDenominations(ctx context.Context, reader *csv.Reader) error {
	names := make(map[vat.Number]string)
	err := eachRecord(reader, func(row record) error {
		if row.get("TypeOfDenomination") != denominationTypeName {
			return nil
		}
		number, err := vat.Parse(row.get("EntityNumber"))
		if err != nil {
			return nil
		}
		names[number] = row.get("Denomination")
		if len(names) >= batchSize {
			if err := l.store.RenameBatch(ctx, names); err != nil {
				return err
			}
			names = make(map[vat.Number]string)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}
	return l.store.RenameBatch(ctx, names)
}

func (l *Loader) applyAddresses(ctx context.Context, reader *csv.Reader) error {
	return eachRecord(reader, func(row record) error {
		number, err := vat.Parse(row.get("EntityNumber"))
		if err != nil {
			return nil
		}
		company, err := l.store.FindByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		return l.store.UpsertAddress(ctx, &models.Address{
			CompanyID:   company.ID,
			Type:        row.get("TypeOfAddress"),
			Street:      stripParenthetical(row.get("StreetNL")),
			HouseNumber: row.get("HouseNumber"),
			PostalCode:  row.get("Zipcode"),
			City:        stripParenthetical(row.get("MunicipalityNL")),
			Country:     row.get("CountryNL"),
		})
	})
}

// stripParenthetical drops the language variants KBO appends in parentheses.
func stripParenthetical(text string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(text, ""))
}

func parseKBODate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(kboDateLayout, raw)
	if err != nil {
		return nil
	}
	return &parsed
}
