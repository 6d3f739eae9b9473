package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = `order_date,Region,Revenue,units,note
2024-01-05,North,"1,200.50",3,first
2024-01-20,South,300,1,
2024-02-11,North,NA,2,third
2024-03-02,East,450.25,4,fourth
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadCSVInfersKinds(t *testing.T) {
	p := writeTemp(t, "sales.csv", salesCSV)
	ds, err := Load(context.Background(), p, Options{})
	require.NoError(t, err)

	assert.Equal(t, "sales.csv", ds.Name)
	assert.Equal(t, 4, ds.Rows())
	assert.Equal(t, []string{"order_date", "Region", "Revenue", "units", "note"}, ds.Columns())

	date, _ := ds.Column("order_date")
	assert.Equal(t, KindDatetime, date.Kind)
	ts, ok := date.Time(2)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC), ts)

	rev, _ := ds.Column("Revenue")
	assert.Equal(t, KindNumeric, rev.Kind)
	v, ok := rev.Float(0)
	require.True(t, ok)
	assert.InDelta(t, 1200.5, v, 1e-9)
	assert.True(t, rev.Missing(2))

	region, _ := ds.Column("Region")
	assert.Equal(t, KindString, region.Kind)
	assert.Equal(t, 3, region.Distinct())

	note, _ := ds.Column("note")
	assert.True(t, note.Missing(1))
	assert.Equal(t, []string{"Revenue", "units"}, ds.NumericColumns())
}

func TestDateNamedColumnStaysStringWhenUnparseable(t *testing.T) {
	ds, err := ReadCSV("x", strings.NewReader("update_note,v\nsoon,1\nlater,2\n"), Options{})
	require.NoError(t, err)
	c, _ := ds.Column("update_note")
	assert.Equal(t, KindString, c.Kind)
}

func TestReadCSVEmptyAndTSV(t *testing.T) {
	ds, err := ReadCSV("empty", strings.NewReader(""), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Rows())
	assert.Equal(t, 0, ds.NumColumns())

	p := writeTemp(t, "t.tsv", "a\tb\n1\tx\n2\ty\n")
	ds, err = LoadCSV(p, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Columns())
}

func TestDuplicateHeadersAreSuffixed(t *testing.T) {
	ds, err := ReadCSV("dup", strings.NewReader("a,a,\n1,2,3\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2"}, ds.Columns())
}

func TestNewRejectsRaggedColumns(t *testing.T) {
	_, err := New("bad", NewNumericColumn("a", []float64{1, 2}), NewNumericColumn("b", []float64{1}))
	require.Error(t, err)
}

func TestFingerprintStable(t *testing.T) {
	a, err := ReadCSV("a", strings.NewReader(salesCSV), Options{})
	require.NoError(t, err)
	b, err := ReadCSV("b", strings.NewReader(salesCSV), Options{})
	require.NoError(t, err)
	c, err := ReadCSV("c", strings.NewReader(strings.Replace(salesCSV, "300", "301", 1)), Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"xl/workbook.xml": `<workbook xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>` +
			`<sheet name="Summary" sheetId="1" r:id="rId1"/><sheet name="Data" sheetId="2" r:id="rId2"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<Relationships>` +
			`<Relationship Id="rId1" Target="worksheets/sheet1.xml"/>` +
			`<Relationship Id="rId2" Target="/xl/worksheets/sheet2.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<sst><si><t>Date</t></si><si><t>Amount</t></si><si><t>Group</t></si><si><t>a</t></si><si><t>b</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>only</t></is></c></row></sheetData></worksheet>`,
		"xl/worksheets/sheet2.xml": `<worksheet><sheetData>` +
			`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="s"><v>2</v></c></row>` +
			`<row r="2"><c r="A2"><v>45292</v></c><c r="B2"><v>10.5</v></c><c r="C2" t="s"><v>3</v></c></row>` +
			`<row r="3"><c r="A3"><v>45323</v></c><c r="C3" t="s"><v>4</v></c></row>` +
			`</sheetData></worksheet>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadXLSXSheetSelection(t *testing.T) {
	data := buildXLSX(t)

	ds, err := ReadXLSX("book.xlsx", data, Options{Sheet: "data"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Amount", "Group"}, ds.Columns())
	assert.Equal(t, 2, ds.Rows())

	date, _ := ds.Column("Date")
	require.Equal(t, KindDatetime, date.Kind)
	ts, ok := date.Time(0)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ts)

	amt, _ := ds.Column("Amount")
	assert.Equal(t, KindNumeric, amt.Kind)
	assert.True(t, amt.Missing(1))

	first, err := ReadXLSX("book.xlsx", data, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, first.Columns())

	_, err = ReadXLSX("book.xlsx", data, Options{Sheet: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Summary, Data")
}

func TestRelPath(t *testing.T) {
	assert.Equal(t, "xl/worksheets/sheet1.xml", relPath("/xl/worksheets/sheet1.xml"))
	assert.Equal(t, "xl/worksheets/sheet1.xml", relPath("worksheets/sheet1.xml"))
	assert.Equal(t, "xl/styles.xml", relPath("/styles.xml"))
	assert.Equal(t, 27, columnIndex("AB3"))
}

type fakeGetter struct {
	body   []byte
	bucket string
	key    string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = *in.Bucket, *in.Key
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestLoadS3(t *testing.T) {
	g := &fakeGetter{body: []byte(salesCSV)}
	ds, err := LoadS3(context.Background(), g, "s3://bucket/path/sales.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, "bucket", g.bucket)
	assert.Equal(t, "path/sales.csv", g.key)
	assert.Equal(t, 4, ds.Rows())

	_, err = LoadS3(context.Background(), g, "s3://bucket/data.parquet", Options{})
	require.ErrorIs(t, err, ErrUnsupported)

	_, _, err = ParseS3URI("s3://bucket")
	require.Error(t, err)
}

func TestLoadS3ViaRegistry(t *testing.T) {
	orig := S3Client
	t.Cleanup(func() { S3Client = orig })
	S3Client = func(context.Context, string) (ObjectGetter, error) {
		return &fakeGetter{body: []byte("a,b\n1,2\n")}, nil
	}
	ds, err := Load(context.Background(), "s3://b/k.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Columns())
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load(context.Background(), "report.pdf", Options{})
	require.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, strings.HasPrefix(err.Error(), "dataset:"))
}

func TestSummarize(t *testing.T) {
	ds, err := ReadCSV("sales.csv", strings.NewReader(salesCSV), Options{})
	require.NoError(t, err)
	out := Summarize(ds, 2)
	assert.Contains(t, out, "Rows: 4, Columns: 5")
	assert.Contains(t, out, "Numeric columns: [Revenue, units]")
	assert.Contains(t, out, "- Region: string (non-null 4, missing 0.0%) e.g., North | South")
	assert.Contains(t, out, "- Revenue: numeric (non-null 3, missing 25.0%)")
}

func TestExcelSerialTime(t *testing.T) {
	got := excelSerialTime(45292.5)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), got)
}
