package printout

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// The page is exactly the label stock with no margins so the printer does
// not rescale the barcode. It prints shortly after load and closes itself.
var printTmpl = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: 100mm 43mm; margin: 0; padding: 0; }
html, body { margin: 0; padding: 0; width: 100mm; height: 43mm; overflow: hidden; }
body { display: flex; align-items: center; justify-content: center; }
img { width: 100%; height: 100%; object-fit: contain; image-rendering: crisp-edges; }
</style>
</head>
<body>
<img src="{{.Src}}" alt="{{.Title}}">
<script>
window.onload = function () {
  setTimeout(function () {
    window.print();
    setTimeout(function () { window.close(); }, 100);
  }, 500);
};
</script>
</body>
</html>
`))

// WritePrintHTML writes the self-printing page for a label PNG.
func WritePrintHTML(w io.Writer, phn string, png []byte) error {
	data := struct {
		Title string
		Src   template.URL
	}{
		Title: "Label " + phn,
		Src:   template.URL(DataURI(png)),
	}
	if err := printTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render print page: %w", err)
	}
	return nil
}

// WritePDF writes a single borderless page of widthMM x heightMM with the
// PNG stretched to fill it.
func WritePDF(w io.Writer, png []byte, widthMM, heightMM float64) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: widthMM, Ht: heightMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("label", opts, bytes.NewReader(png))
	pdf.ImageOptions("label", 0, 0, widthMM, heightMM, false, opts, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
