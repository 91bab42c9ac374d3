package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// chromiumRenderer prints an HTML rendition of the view through headless
// Chromium. It needs a browser on the host; the gofpdf engine does not.
type chromiumRenderer struct {
	cfg  Config
	tmpl *template.Template
	now  func() time.Time
}

func newChromiumRenderer(cfg Config) *chromiumRenderer {
	return &chromiumRenderer{
		cfg:  cfg,
		tmpl: template.Must(template.New("document").Parse(htmlTemplate)),
		now:  time.Now,
	}
}

func (r *chromiumRenderer) renderPDF(ctx context.Context, v *view) ([]byte, error) {
	html, err := r.renderHTML(v)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.cfg.PDFChromiumPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.cfg.PDFChromiumPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	timeout := r.cfg.PDFTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	var pdfBuf []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate("data:text/html,"+url.PathEscape(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, perr := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if perr == nil {
				pdfBuf = buf
			}
			return perr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp run failed: %w", err)
	}
	return pdfBuf, nil
}

func (r *chromiumRenderer) renderHTML(v *view) (string, error) {
	tz, err := time.LoadLocation(r.cfg.PDFTimeZone)
	if err != nil || r.cfg.PDFTimeZone == "" {
		tz = time.UTC
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, struct {
		V     *view
		Brand string
		Now   string
	}{
		V:     v,
		Brand: "#" + v.Brand.Hex(),
		Now:   r.now().In(tz).Format("Jan 02, 2006 15:04"),
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{.V.Heading}} {{.V.Number}}</title>
  <style>
    @page { size: A4; margin: 0; }
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 0; color: #0f172a; }
    .band { height: 8mm; background: {{.Brand}}; }
    .page { padding: 6mm 12.5mm 20mm; }
    .meta { display: flex; justify-content: space-between; }
    h1 { margin: 0; color: {{.Brand}}; font-size: 24pt; }
    .number { color: #646464; font-size: 12pt; }
    .right { text-align: right; }
    .muted { color: #646464; font-size: 10pt; }
    .company { font-weight: 700; font-size: 14pt; }
    .status { color: {{.Brand}}; font-weight: 700; }
    table { width: 185mm; border-collapse: collapse; margin-top: 8mm; table-layout: fixed; }
    th { background: {{.Brand}}; color: #fff; padding: 2mm; }
    td { padding: 2mm; vertical-align: top; }
    tbody tr:nth-child(even) { background: #f3f4f6; }
    .c-desc { width: 90mm; text-align: left; }
    .c-qty { width: 25mm; text-align: center; }
    .c-num { width: 35mm; text-align: right; }
    .totals { margin-left: auto; width: 77.5mm; margin-top: 6mm; }
    .totals div { display: flex; justify-content: space-between; padding: 1mm 0; }
    .grand { font-weight: 700; font-size: 14pt; }
    .block { margin-top: 6mm; white-space: pre-wrap; }
    footer { position: fixed; bottom: 8mm; width: 100%; text-align: center; color: #969696; font-size: 8pt; }
  </style>
</head>
<body>
  <div class="band"></div>
  <div class="page">
    <div class="meta">
      <div>
        <h1>{{.V.Heading}}</h1>
        <div class="number">#{{.V.Number}}</div>
      </div>
      <div class="right">
        <div class="company">{{.V.Business.Name}}</div>
        {{range .V.Business.Lines}}<div class="muted">{{.}}</div>{{end}}
      </div>
    </div>

    <div class="meta" style="margin-top:8mm">
      <div>
        <strong>Bill To:</strong>
        {{with .V.BillTo}}
        <div><strong>{{.Name}}</strong></div>
        {{range .Lines}}<div class="muted">{{.}}</div>{{end}}
        {{else}}
        <div class="muted"><em>{{.V.NoClient}}</em></div>
        {{end}}
      </div>
      <div class="right">
        {{if .V.IssueDate}}<div>Issue Date: {{.V.IssueDate}}</div>{{end}}
        {{if .V.Date}}<div>{{.V.DateLabel}}: {{.V.Date}}</div>{{end}}
        <div class="status">Status: {{.V.Status}}</div>
      </div>
    </div>

    {{if .V.Title}}<h2>{{.V.Title}}</h2>{{end}}

    <table>
      <thead>
        <tr><th class="c-desc">Description</th><th class="c-qty">Qty</th><th class="c-num">Unit Price</th><th class="c-num">Amount</th></tr>
      </thead>
      <tbody>
      {{range .V.Items}}
        <tr>
          <td class="c-desc">{{.Description}}</td>
          <td class="c-qty">{{.Quantity}}</td>
          <td class="c-num">{{$.V.Money .UnitPrice}}</td>
          <td class="c-num">{{$.V.Money .Amount}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div><span>Subtotal:</span><span>{{.V.Money .V.Subtotal}}</span></div>
      <div><span>{{.V.TaxLabel}}:</span><span>{{.V.Money .V.Tax}}</span></div>
      <div class="grand"><span>Total:</span><span>{{.V.Money .V.Total}}</span></div>
    </div>

    {{if .V.Notes}}<div class="block"><div class="muted"><strong>Notes:</strong></div>{{.V.Notes}}</div>{{end}}
    {{if .V.Terms}}<div class="block"><div class="muted"><strong>{{.V.TermsLabel}}:</strong></div>{{.V.Terms}}</div>{{end}}
  </div>
  <footer>{{.V.Footer}} &middot; {{.Now}}</footer>
</body>
</html>
`
