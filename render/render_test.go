package render

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMarkdown(t *testing.T) {
	md, err := ExtractMarkdown(`{"response": "# Hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "# Hi", md)
}

func TestExtractMarkdownFromEncodedString(t *testing.T) {
	md, err := ExtractMarkdown(`"{\"response\": \"## Nested\"}"`)
	require.NoError(t, err)
	assert.Equal(t, "## Nested", md)
}

func TestExtractMarkdownFailures(t *testing.T) {
	for _, content := range []string{
		"## Drone Market\nGrowing.",
		`{"answer": "# Hi"}`,
		`{"response": 12}`,
		`[1, 2]`,
		``,
	} {
		_, err := ExtractMarkdown(content)
		assert.Error(t, err, content)
	}
}

func TestHTMLRendersHeadingsAndStyles(t *testing.T) {
	r := New(false)
	html, err := r.HTML("# Hi\n\nSome *body* text.\n\n- one\n- two\n")
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Hi", doc.Find("h1").Text())
	assert.Equal(t, 2, doc.Find("ul li").Length())
	assert.Equal(t, "body", doc.Find("p em").Text())
	assert.Contains(t, doc.Find("style").Text(), "#1a237e")
	assert.Equal(t, "utf-8", doc.Find("meta").AttrOr("charset", ""))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Drone Market", Title("<html><body><p>x</p><h2>Drone Market</h2><h1>Later</h1></body></html>"))
	assert.Equal(t, "", Title("<p>no heading</p>"))
}

func TestPDFContainsHeadingText(t *testing.T) {
	r := New(false)
	pdf, err := r.PDF("# Hi")
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.True(t, bytes.Contains(pdf, shown("Hi")), "heading text missing from content stream")
}

func TestPDFRendersEveryBlockKind(t *testing.T) {
	md := strings.Join([]string{
		"# Market",
		"Intro paragraph with `code` and a [link](https://example.com).",
		"1. first",
		"2. second",
		"   - nested",
		"> quoted insight",
		"```",
		"revenue = users * arpu",
		"```",
		"---",
		"## Risks",
		"Régulation in the EU.",
	}, "\n\n")

	pdf, err := New(false).PDF(md)
	require.NoError(t, err)
	for _, want := range []string{"Market", "Risks", "first", "nested", "quoted insight", "revenue = users * arpu", "Régulation in the EU."} {
		assert.True(t, bytes.Contains(pdf, shown(want)), want)
	}
}

func TestCompressedPDFIsValid(t *testing.T) {
	pdf, err := New(true).PDF("# Hi\n\nbody")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.True(t, bytes.HasSuffix(bytes.TrimSpace(pdf), []byte("%%EOF")))
}

func TestPDFKeepsNonLatinText(t *testing.T) {
	pdf, err := New(false).PDF("# Рынок дронов 市场\n\nΑγορά **растёт**.")
	require.NoError(t, err)

	assert.True(t, bytes.Contains(pdf, shown("Рынок дронов 市场")), "heading code points missing")
	assert.True(t, bytes.Contains(pdf, shown("Αγορά растёт.")), "body code points missing")
	assert.False(t, bytes.Contains(pdf, []byte("(..... ......")), "text was replaced by placeholders")
	assert.Contains(t, string(pdf), "/FontFile2", "unicode font not embedded")
}

// shown is how text appears inside a Tj operand when set in the embedded
// UTF-8 font: UTF-16BE code units with PDF string escapes.
func shown(s string) []byte {
	var b []byte
	for _, u := range utf16.Encode([]rune(s)) {
		for _, c := range []byte{byte(u >> 8), byte(u)} {
			switch c {
			case '\\', '(', ')':
				b = append(b, '\\', c)
			case '\r':
				b = append(b, '\\', 'r')
			default:
				b = append(b, c)
			}
		}
	}
	return b
}
