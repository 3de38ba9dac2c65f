package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestPDF generates a minimal valid PDF containing the given text.
// The output is parseable by ledongthuc/pdf and GetPlainText returns the text.
func buildTestPDF(text string) []byte {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "(", `\(`)
	escaped = strings.ReplaceAll(escaped, ")", `\)`)
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", escaped)

	var buf bytes.Buffer
	offsets := make([]int, 6)

	buf.WriteString("%PDF-1.4\n")

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	offsets[4] = buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream)
	offsets[5] = buf.Len()
	buf.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 6\n")
	fmt.Fprintf(&buf, "0000000000 65535 f \r\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \r\n", offsets[i])
	}
	buf.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(&buf, "%d\n", xrefOffset)
	buf.WriteString("%%EOF\n")
	return buf.Bytes()
}

// buildTestDOCX packages body (the contents of w:body) as a DOCX archive.
func buildTestDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	w, err = zw.Create(docxBodyPart)
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestKindFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"laudo.txt", KindText},
		{"NOTAS.MD", KindMarkdown},
		{"dados.csv", KindCSV},
		{"pagina.htm", KindHTML},
		{"pagina.html", KindHTML},
		{"/tmp/contrato.pdf", KindPDF},
		{"peticao.docx", KindDOCX},
		{"antigo.doc", KindDOC},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := KindFromPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := KindFromPath("planilha.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = KindFromPath("README")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSupportedKinds(t *testing.T) {
	kinds := SupportedKinds()
	assert.Contains(t, kinds, KindPDF)
	assert.Contains(t, kinds, KindDOCX)
	assert.NotContains(t, kinds, KindDOC)
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("José Conceição"), "José Conceição"},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("Ana")...), "Ana"},
		{"cp1252 quotes", []byte("Jos\xe9 Concei\xe7\xe3o \x93aspas\x94"), "José Conceição “aspas”"},
		{"latin1 fallback", []byte("\x81Jos\xe9"), "\u0081José"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeText(tt.in))
		})
	}
}

func TestDecodeText_EveryByteDecodes(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	out := DecodeText(all)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 256, utf8.RuneCountInString(out), "one rune per byte")
	assert.NotContains(t, out, "\uFFFD")
}

func TestExtractFile_PlainTextFormats(t *testing.T) {
	ctx := context.Background()
	extractor := NewExtractor(10)

	tests := []struct {
		name    string
		ext     string
		content string
	}{
		{"txt file", ".txt", "Maria Silva, CPF 529.982.247-25"},
		{"md file", ".md", "# Laudo\n\nPaciente Maria"},
		{"csv file", ".csv", "nome,cpf\nMaria,529.982.247-25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "file"+tt.ext)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			got, err := extractor.ExtractFile(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, got)
		})
	}
}

func TestExtractFile_Latin1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legado.txt")
	require.NoError(t, os.WriteFile(path, []byte("Paciente: Jo\xe3o Concei\xe7\xe3o"), 0o644))

	got, err := NewExtractor(10).ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Paciente: João Conceição", got)
}

func TestExtractFile_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "file.xyz")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
		_, err := NewExtractor(10).ExtractFile(ctx, path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("legacy doc", func(t *testing.T) {
		path := filepath.Join(dir, "antigo.doc")
		require.NoError(t, os.WriteFile(path, []byte{0xD0, 0xCF, 0x11, 0xE0}, 0o644))
		_, err := NewExtractor(10).ExtractFile(ctx, path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("size limit", func(t *testing.T) {
		path := filepath.Join(dir, "big.txt")
		require.NoError(t, os.WriteFile(path, make([]byte, 2*1024*1024), 0o644))
		_, err := NewExtractor(1).ExtractFile(ctx, path)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewExtractor(10).ExtractFile(ctx, filepath.Join(dir, "nope.txt"))
		assert.Error(t, err)
	})
}

func TestExtractBytes_HTML(t *testing.T) {
	ctx := context.Background()
	extractor := NewExtractor(10)

	src := `<html><head><style>body{color:red}</style></head><body>` +
		`<p>Jo&atilde;o D&#39;&Aacute;vila</p><script>var cpf = "000";</script>` +
		`<!-- comentário interno --></body></html>`
	got, err := extractor.ExtractBytes(ctx, []byte(src), KindHTML)
	require.NoError(t, err)
	assert.Contains(t, got, "João D'Ávila")
	assert.NotContains(t, got, "color")
	assert.NotContains(t, got, "cpf")
	assert.NotContains(t, got, "comentário")
	assert.NotContains(t, got, "<p>")
}

func TestExtractBytes_PDF(t *testing.T) {
	ctx := context.Background()
	extractor := NewExtractor(10)

	got, err := extractor.ExtractBytes(ctx, buildTestPDF("Paciente Maria Silva CPF 529.982.247-25"), KindPDF)
	require.NoError(t, err)
	assert.Contains(t, got, "529.982.247-25")
	assert.Contains(t, got, "Maria Silva")

	_, err = extractor.ExtractBytes(ctx, []byte("%PDF-"), KindPDF)
	assert.Error(t, err)
	_, err = extractor.ExtractBytes(ctx, []byte{}, KindPDF)
	assert.Error(t, err)
}

func TestExtractFile_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laudo.pdf")
	require.NoError(t, os.WriteFile(path, buildTestPDF("RG 12.345.678-X"), 0o644))

	got, err := NewExtractor(10).ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, got, "12.345.678-X")
}

func TestExtractBytes_DOCX(t *testing.T) {
	ctx := context.Background()
	body := `<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
		`<w:r><w:t>Paciente:</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">Maria </w:t></w:r><w:r><w:t>Silva</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>CPF 529.982.247-25</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:t>Linha</w:t><w:br/><w:t>nova</w:t></w:r></w:p>`

	got, err := NewExtractor(10).ExtractBytes(ctx, buildTestDOCX(t, body), KindDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Paciente:\tMaria Silva\nCPF 529.982.247-25\nLinha\nnova", got)
}

func TestExtractBytes_DOCXErrors(t *testing.T) {
	ctx := context.Background()
	e := NewExtractor(10)

	_, err := e.ExtractBytes(ctx, []byte("not a zip"), KindDOCX)
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = e.ExtractBytes(ctx, buf.Bytes(), KindDOCX)
	assert.ErrorContains(t, err, docxBodyPart)
}

func TestExtractBytes_LimitsAndKinds(t *testing.T) {
	ctx := context.Background()

	_, err := NewExtractor(1).ExtractBytes(ctx, make([]byte, 2*1024*1024), KindText)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = NewExtractor(10).ExtractBytes(ctx, []byte("x"), Kind("xlsx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, int64(DefaultMaxMB)*1024*1024, NewExtractor(0).MaxSize())
}
