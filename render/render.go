// Package render turns stored report markdown into styled HTML and PDF.
package render

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// DejaVu covers Latin, Greek and Cyrillic; the core PDF fonts stop at cp1252.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	regularTTF []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	boldTTF []byte
	//go:embed fonts/DejaVuSansCondensed-Oblique.ttf
	obliqueTTF []byte
)

const fontFamily = "DejaVu"

// ErrNoResponse means the stored content holds no "response" field.
var ErrNoResponse = errors.New(`report content has no "response" field`)

// ExtractMarkdown reads the "response" field of stored report content. The
// content may be a JSON object or a JSON string that encodes one.
func ExtractMarkdown(content string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return "", fmt.Errorf("parse report content: %w", err)
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return "", fmt.Errorf("parse nested report content: %w", err)
		}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", fmt.Errorf("report content is %T, want object", v)
	}
	md, ok := obj["response"].(string)
	if !ok {
		return "", ErrNoResponse
	}
	return md, nil
}

// Renderer converts markdown. It is safe for concurrent use.
type Renderer struct {
	md       goldmark.Markdown
	compress bool
}

// New returns a renderer. compress controls PDF stream compression.
func New(compress bool) *Renderer {
	return &Renderer{
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
		compress: compress,
	}
}

// HTML renders markdown into a standalone styled HTML document.
func (r *Renderer) HTML(markdown string) (string, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return "<html>\n<head>\n<meta charset=\"utf-8\">\n<style>" + stylesheet + "</style>\n</head>\n<body>\n" +
		body.String() + "</body>\n</html>\n", nil
}

// Title returns the text of the first heading of an HTML document.
func Title(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("h1, h2, h3, h4, h5, h6").First().Text())
}

// PDF renders markdown as an A4 document styled like the HTML output.
func (r *Renderer) PDF(markdown string) ([]byte, error) {
	src := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(src))

	html, err := r.HTML(markdown)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddUTF8FontFromBytes(fontFamily, "", regularTTF)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", boldTTF)
	pdf.AddUTF8FontFromBytes(fontFamily, "I", obliqueTTF)
	pdf.SetCreator("startup-hub", true)
	if title := Title(html); title != "" {
		pdf.SetTitle(title, true)
	}
	pdf.AddPage()

	w := &pdfWriter{pdf: pdf, src: src}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, 0)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), nil
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	src []byte
}

var headingSizes = map[int]float64{1: 22, 2: 18, 3: 15, 4: 13, 5: 12, 6: 11}

const (
	bodySize   = 11
	lineHeight = 6
)

func (w *pdfWriter) block(n ast.Node, depth int) {
	p := w.pdf
	switch node := n.(type) {
	case *ast.Heading:
		p.Ln(4)
		p.SetFont(fontFamily, "B", headingSizes[node.Level])
		p.SetTextColor(0x1a, 0x23, 0x7e)
		p.MultiCell(0, headingSizes[node.Level]*0.5, inlineText(node, w.src), "", "L", false)
		p.Ln(2)
	case *ast.Paragraph, *ast.TextBlock:
		w.bodyFont()
		p.SetX(p.GetX() + float64(depth)*6)
		p.MultiCell(0, lineHeight, inlineText(node, w.src), "", "L", false)
		p.Ln(2)
	case *ast.List:
		i := node.Start
		if i == 0 {
			i = 1
		}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "-"
			if node.IsOrdered() {
				marker = fmt.Sprintf("%d.", i)
				i++
			}
			w.listItem(item, marker, depth)
		}
		p.Ln(2)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		p.SetFont(fontFamily, "", 10)
		p.SetTextColor(0x2c, 0x3e, 0x50)
		p.SetFillColor(0xf0, 0xf0, 0xf0)
		p.MultiCell(0, 5, strings.TrimRight(lines(node, w.src), "\n"), "L", "L", true)
		p.Ln(3)
	case *ast.Blockquote:
		p.SetFont(fontFamily, "I", bodySize)
		p.SetTextColor(0x55, 0x55, 0x55)
		p.SetFillColor(0xf9, 0xf9, 0xf9)
		var parts []string
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			parts = append(parts, inlineText(c, w.src))
		}
		p.MultiCell(0, lineHeight, strings.Join(parts, "\n"), "L", "L", true)
		p.Ln(3)
	case *ast.ThematicBreak:
		left, _, right, _ := p.GetMargins()
		pageW, _ := p.GetPageSize()
		y := p.GetY() + 2
		p.SetDrawColor(0xcc, 0xcc, 0xcc)
		p.Line(left, y, pageW-right, y)
		p.Ln(5)
	default:
		if t := strings.TrimSpace(inlineText(node, w.src)); t != "" {
			w.bodyFont()
			p.MultiCell(0, lineHeight, t, "", "L", false)
		}
	}
}

func (w *pdfWriter) listItem(item ast.Node, marker string, depth int) {
	p := w.pdf
	left, _, _, _ := p.GetMargins()
	indent := float64(depth+1) * 6
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		if sub, ok := c.(*ast.List); ok {
			w.block(sub, depth+1)
			continue
		}
		w.bodyFont()
		p.SetX(left + indent - 5)
		p.CellFormat(5, lineHeight, marker, "", 0, "L", false, 0, "")
		p.MultiCell(0, lineHeight, inlineText(c, w.src), "", "L", false)
		marker = ""
	}
}

func (w *pdfWriter) bodyFont() {
	w.pdf.SetFont(fontFamily, "", bodySize)
	w.pdf.SetTextColor(0x2c, 0x3e, 0x50)
}

// inlineText flattens the inline children of n into plain text.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(src))
		case *ast.List:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func lines(n ast.Node, src []byte) string {
	var b strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

const stylesheet = `
@page { margin: 2cm; }
body { font-family: "Segoe UI", "Helvetica Neue", sans-serif; line-height: 1.7; color: #2c3e50; background-color: #fff; padding: 0; margin: 0; }
h1, h2, h3, h4 { color: #1a237e; margin-top: 30px; margin-bottom: 15px; }
p { margin: 12px 0; font-size: 14px; }
ul, ol { padding-left: 25px; margin-bottom: 20px; }
li { margin-bottom: 8px; }
a { color: #0d47a1; text-decoration: none; }
a:hover { text-decoration: underline; }
code { background-color: #f5f5f5; padding: 2px 4px; font-family: monospace; border-radius: 4px; }
pre { background: #f0f0f0; padding: 12px; overflow-x: auto; border-left: 4px solid #2196f3; font-family: Consolas, monospace; border-radius: 6px; }
blockquote { border-left: 4px solid #90caf9; margin: 20px 0; padding: 10px 20px; background: #f9f9f9; font-style: italic; color: #555; }
`
