package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-taxcalc/internal/calc"
	"github.com/noah-isme/backend-taxcalc/internal/common"
	"github.com/noah-isme/backend-taxcalc/internal/export"
	"github.com/noah-isme/backend-taxcalc/internal/obs"
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
	"github.com/noah-isme/backend-taxcalc/internal/templates"
	"github.com/noah-isme/backend-taxcalc/internal/validation"
)

func main() {
	in := flag.String("in", "-", "document JSON file, - for stdin")
	xlsxPath := flag.String("xlsx", "", "also write the calculated document as an .xlsx workbook")
	templatesPath := flag.String("templates", "", "JSON file holding an array of tax templates")
	currency := flag.Int("currency-precision", 2, "decimal places for currency fields")
	float := flag.Int("float-precision", 3, "decimal places for rates and quantities")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := obs.NewLogger("console", level).Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("component", "calc").Logger()

	if err := run(logger, options{
		in:        *in,
		xlsx:      *xlsxPath,
		templates: *templatesPath,
		precision: taxes.PrecisionTable{Currency: int32(*currency), Float: int32(*float)},
	}, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("calculation failed")
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Details != nil {
			details, _ := json.Marshal(appErr.Details)
			fmt.Fprintln(os.Stderr, string(details))
		}
		os.Exit(1)
	}
}

type options struct {
	in        string
	xlsx      string
	templates string
	precision taxes.PrecisionTable
}

func run(logger zerolog.Logger, opts options, out io.Writer) error {
	ctx := logger.WithContext(context.Background())
	validate := validation.New()

	var store templates.Store
	if opts.templates != "" {
		mem, err := loadTemplates(ctx, opts.templates, validate)
		if err != nil {
			return err
		}
		store = mem
	}

	svc := calc.NewService(calc.ServiceConfig{
		Templates: templates.NewService(store, validate),
		Validator: validate,
		Precision: opts.precision,
		Logger:    logger,
	})

	var req calc.Request
	if err := readJSON(opts.in, &req); err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	doc, err := svc.Calculate(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}

	if opts.xlsx == "" {
		return nil
	}
	f, err := export.Workbook(doc)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(opts.xlsx); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	logger.Info().Str("path", opts.xlsx).Msg("workbook written")
	return nil
}

// loadTemplates validates every template in path and keeps them in memory.
func loadTemplates(ctx context.Context, path string, validate *validator.Validate) (*templates.MemoryStore, error) {
	var list []templates.Template
	if err := readJSON(path, &list); err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	mem := templates.NewMemoryStore()
	svc := templates.NewService(mem, validate)
	for _, t := range list {
		if _, err := svc.Save(ctx, t); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
	}
	return mem, nil
}

func readJSON(path string, dst any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
