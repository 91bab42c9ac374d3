package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/config"
	"github.com/quotla/quotla-api/internal/export"
	"github.com/quotla/quotla-api/internal/fx"
	"github.com/quotla/quotla-api/internal/observability/logging"
)

type app struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout}
	if err := a.cli().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "quotactl:", err)
		os.Exit(1)
	}
}

func (a *app) cli() *cli.App {
	inFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "input JSON file (- for stdin)", Value: "-"}
	}
	outFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (- for stdout)", Value: "-"}
	}
	typeFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "type", Usage: "quote or invoice", Value: string(export.TypeQuote)}
	}

	return &cli.App{
		Name:  "quotactl",
		Usage: "compute, convert and export quotes and invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "optional YAML config file", EnvVars: []string{"QUOTLA_CONFIG"}},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			a.cfg = cfg
			// Logs go to stderr so stdout stays machine-readable.
			a.logger = logging.NewWithWriter(cfg.Log, os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "totals",
				Usage:  "recompute line amounts and totals of a quote or invoice",
				Flags:  []cli.Flag{inFlag(), outFlag(), typeFlag()},
				Action: a.totals,
			},
			{
				Name:  "convert",
				Usage: "convert an amount between currencies",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "amount", Required: true},
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
				},
				Action: a.convert,
			},
			{
				Name:   "rates",
				Usage:  "print the rate table for a base currency",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "base", Value: "USD"}},
				Action: a.rates,
			},
			{
				Name:   "reprice",
				Usage:  "convert a document's total into another currency and rescale its prices",
				Flags:  []cli.Flag{inFlag(), outFlag(), typeFlag(), &cli.StringFlag{Name: "to", Required: true}},
				Action: a.reprice,
			},
			{
				Name:   "to-invoice",
				Usage:  "turn a quote into a new draft invoice",
				Flags:  []cli.Flag{inFlag(), outFlag()},
				Action: a.toInvoice,
			},
			{
				Name:  "export",
				Usage: "render a quote or invoice as pdf, docx or json",
				Flags: []cli.Flag{
					inFlag(),
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file; defaults to <type>-<number>.<format>"},
					typeFlag(),
					&cli.StringFlag{Name: "format", Value: string(export.FormatPDF)},
					&cli.StringFlag{Name: "profile", Usage: "business profile JSON file"},
				},
				Action: a.export,
			},
		},
	}
}

func (a *app) fxService() *fx.Service {
	return fx.NewService(fx.NewHTTPProvider(a.cfg.FX, nil, a.logger), fx.NewRateCache(a.cfg.FX.CacheTTL), a.logger)
}

func (a *app) totals(c *cli.Context) error {
	out, err := editDocument(c, billing.Recalculate)
	if err != nil {
		return err
	}
	return a.writeJSON(c.String("out"), out)
}

func (a *app) convert(c *cli.Context) error {
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return fmt.Errorf("%w: amount %q: %v", billing.ErrInvalidInput, c.String("amount"), err)
	}
	conv, err := a.fxService().Convert(c.Context, amount, c.String("from"), c.String("to"))
	if err != nil {
		return err
	}
	return a.writeJSON("-", conv)
}

func (a *app) rates(c *cli.Context) error {
	res, err := a.fxService().GetRates(c.Context, c.String("base"))
	if err != nil {
		return err
	}
	return a.writeJSON("-", res)
}

func (a *app) reprice(c *cli.Context) error {
	var conv fx.Conversion
	out, err := editDocument(c, func(doc billing.Document) (billing.Document, error) {
		var err error
		conv, err = a.fxService().Convert(c.Context, doc.Total, string(doc.Currency), c.String("to"))
		if err != nil {
			return billing.Document{}, err
		}
		return billing.Reprice(doc, conv.To, conv.ConvertedAmount)
	})
	if err != nil {
		return err
	}
	if conv.Stale {
		a.logger.Warn("repriced with stale rates", slog.Time("fetchedAt", conv.Timestamp))
	}
	return a.writeJSON(c.String("out"), out)
}

// editDocument reads a quote or invoice according to --type, applies fn to its
// monetary part and returns the whole value, so status, dates and terms pass
// through untouched.
func editDocument(c *cli.Context, fn func(billing.Document) (billing.Document, error)) (any, error) {
	docType, err := export.ParseDocType(c.String("type"))
	if err != nil {
		return nil, err
	}
	if docType == export.TypeQuote {
		var q billing.Quote
		if err := readJSON(c.String("in"), &q); err != nil {
			return nil, err
		}
		if q.Document, err = fn(q.Document); err != nil {
			return nil, err
		}
		return q, nil
	}
	var inv billing.Invoice
	if err := readJSON(c.String("in"), &inv); err != nil {
		return nil, err
	}
	if inv.Document, err = fn(inv.Document); err != nil {
		return nil, err
	}
	return inv, nil
}

func (a *app) toInvoice(c *cli.Context) error {
	var q billing.Quote
	if err := readJSON(c.String("in"), &q); err != nil {
		return err
	}
	inv, err := billing.ToInvoice(q, billing.TransformOptions{})
	if err != nil {
		return err
	}
	return a.writeJSON(c.String("out"), inv)
}

func (a *app) export(c *cli.Context) error {
	docType, err := export.ParseDocType(c.String("type"))
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	req := export.Request{Type: docType, Format: format}
	if docType == export.TypeQuote {
		req.Quote = &billing.Quote{}
		err = readJSON(c.String("in"), req.Quote)
	} else {
		req.Invoice = &billing.Invoice{}
		err = readJSON(c.String("in"), req.Invoice)
	}
	if err != nil {
		return err
	}
	if p := c.String("profile"); p != "" {
		if err := readJSON(p, &req.Profile); err != nil {
			return err
		}
	}

	art, err := export.New(a.cfg.Export, a.logger).Export(c.Context, req)
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "" {
		out = art.Filename
	}
	if err := writeFile(out, art.Body); err != nil {
		return err
	}
	if out != "-" {
		a.logger.Info("exported", slog.String("file", out), slog.Int("bytes", len(art.Body)))
	}
	return nil
}

func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (a *app) writeJSON(path string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	body = append(body, '\n')
	if path == "-" {
		_, err = a.stdout.Write(body)
		return err
	}
	return writeFile(path, body)
}

func writeFile(path string, body []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
