package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/pricetag/internal/security"
	"github.com/hitoshi/pricetag/internal/theme"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(security.NewTextSanitizer(), theme.IsKnown)
}

func TestNormalize(t *testing.T) {
	records := []RawRecord{
		{Row: 2, Data: "Milk", Price: "99,90"},
		{Row: 3, Data: "<b>Cheese</b>", Price: "1 299", DesignType: "SALE", HasDiscount: "yes", PriceFor2: "2400"},
		{Row: 4, Data: "", Price: "10"},
		{Row: 5, Data: "Free", Price: "0"},
		{Row: 6, Data: "Broken", Price: "abc"},
		{Row: 7, Data: "", Price: ""},
		{Row: 8, Data: "Bread", Price: "45", DesignType: "neon", PriceFrom3: "-1"},
		{Row: 9, Data: "Water", Price: ""},
	}

	res := newTestNormalizer().Normalize(records)

	if res.Accepted != 3 || res.Rejected != 4 {
		t.Fatalf("Accepted=%d Rejected=%d, want 3 and 4", res.Accepted, res.Rejected)
	}
	if len(res.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(res.Items))
	}

	milk := res.Items[0]
	if milk.Price != 99.9 || milk.DiscountPrice != 99.9 {
		t.Errorf("Milk = %+v", milk)
	}

	cheese := res.Items[1]
	if cheese.Data != "Cheese" {
		t.Errorf("商品名のHTMLは除去されるべき: %q", cheese.Data)
	}
	if cheese.DesignType != "sale" {
		t.Errorf("DesignType = %q, want sale", cheese.DesignType)
	}
	if cheese.HasDiscount == nil || !*cheese.HasDiscount {
		t.Error("HasDiscount = true であるべき")
	}
	if cheese.PriceFor2 == nil || *cheese.PriceFor2 != 2400 {
		t.Errorf("PriceFor2 = %v", cheese.PriceFor2)
	}

	bread := res.Items[2]
	if bread.DesignType != "" {
		t.Errorf("未知のデザイン種別は未指定にすべき: %q", bread.DesignType)
	}
	if bread.PriceFrom3 != nil {
		t.Error("負のまとめ買い価格は未設定にすべき")
	}

	wantRows := []int{4, 5, 6, 9}
	for i, e := range res.Errors {
		if e.Row != wantRows[i] {
			t.Errorf("Errors[%d].Row = %d, want %d", i, e.Row, wantRows[i])
		}
	}
}

func TestParseCSV_HeaderDetection(t *testing.T) {
	input := "\xef\xbb\xbfName;Price;Design;Discount\nMilk;99,90;new;1\nBread;45;;\n"

	records, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Data != "Milk" || records[0].Price != "99,90" || records[0].DesignType != "new" || records[0].HasDiscount != "1" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[0].Row != 2 {
		t.Errorf("Row = %d, want 2", records[0].Row)
	}
}

func TestParseCSV_ReorderedHeader(t *testing.T) {
	input := "price,priceFor2,name\n100,180,Apple\n"

	records, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Data != "Apple" || records[0].Price != "100" || records[0].PriceFor2 != "180" {
		t.Errorf("records[0] = %+v", records[0])
	}
}

func TestParseCSV_PositionalFallback(t *testing.T) {
	input := "Apple\t120\nPear\t80\tsale\n"

	records, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("ヘッダーがない場合は1行目もデータ: len = %d", len(records))
	}
	if records[1].Data != "Pear" || records[1].Price != "80" || records[1].DesignType != "sale" {
		t.Errorf("records[1] = %+v", records[1])
	}
	if records[0].Row != 1 {
		t.Errorf("Row = %d, want 1", records[0].Row)
	}
}

func TestParseCSV_Empty(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("  \n")); !errors.Is(err, ErrNoRows) {
		t.Errorf("error = %v, want ErrNoRows", err)
	}
	if _, err := ParseCSV(strings.NewReader("name,price\n")); !errors.Is(err, ErrNoRows) {
		t.Errorf("ヘッダーのみ: error = %v, want ErrNoRows", err)
	}
}

func TestParseClipboard_HTMLTable(t *testing.T) {
	input := `<html><body><table>
<tr><th>Name</th><th>Price</th></tr>
<tr><td>Tea<br>green</td><td>150</td></tr>
<tr><td><span>Coffee</span></td><td>1,299.50</td></tr>
</table></body></html>`

	records, err := ParseClipboard(input)
	if err != nil {
		t.Fatalf("ParseClipboard() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Data != "Tea\ngreen" {
		t.Errorf("records[0].Data = %q", records[0].Data)
	}
	if records[1].Data != "Coffee" || records[1].Price != "1,299.50" {
		t.Errorf("records[1] = %+v", records[1])
	}
}

func TestParseClipboard_TSV(t *testing.T) {
	records, err := ParseClipboard("Apple\t100\r\nPear\t200\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].Price != "200" {
		t.Errorf("records = %+v", records)
	}
}

func TestParseClipboard_Empty(t *testing.T) {
	if _, err := ParseClipboard("   "); !errors.Is(err, ErrNoRows) {
		t.Errorf("error = %v, want ErrNoRows", err)
	}
}

func TestParseExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Price", "Design"},
		{"Milk", 99.9, "new"},
		{"Bread", 45, ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	records, err := ParseExcel(buf)
	if err != nil {
		t.Fatalf("ParseExcel() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Data != "Milk" || records[0].Price != "99.9" || records[0].DesignType != "new" {
		t.Errorf("records[0] = %+v", records[0])
	}
}

func TestParseExcel_NotExcel(t *testing.T) {
	if _, err := ParseExcel(bytes.NewReader([]byte("not a zip"))); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExportURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "編集URL",
			input: "https://docs.google.com/spreadsheets/d/1AbC_d-9/edit#gid=42",
			want:  "https://docs.google.com/spreadsheets/d/1AbC_d-9/export?format=csv&gid=42",
		},
		{
			name:  "gidなし",
			input: "https://docs.google.com/spreadsheets/d/xyz/edit?usp=sharing",
			want:  "https://docs.google.com/spreadsheets/d/xyz/export?format=csv&gid=0",
		},
		{
			name:  "クエリのgid",
			input: "https://docs.google.com/spreadsheets/d/xyz/export?gid=7",
			want:  "https://docs.google.com/spreadsheets/d/xyz/export?format=csv&gid=7",
		},
		{name: "別ホスト", input: "https://example.com/spreadsheets/d/xyz/edit", wantErr: true},
		{name: "シートIDなし", input: "https://docs.google.com/document/d/xyz/edit", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExportURL(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSheetURL) {
					t.Errorf("error = %v, want ErrInvalidSheetURL", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ExportURL() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

func newTestSheetsClient(client *http.Client, maxSize int64) *SheetsClient {
	c := NewSheetsClient(security.NewSSRFGuard(SheetsHost), time.Second, maxSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.client = client
	return c
}

func TestSheetsClient_Fetch_RejectsOtherHosts(t *testing.T) {
	c := newTestSheetsClient(http.DefaultClient, 1024)

	_, err := c.Fetch(context.Background(), "http://169.254.169.254/spreadsheets/d/x")
	if !errors.Is(err, ErrBlockedURL) {
		t.Errorf("error = %v, want ErrBlockedURL", err)
	}
	_, err = c.Fetch(context.Background(), "https://example.com/spreadsheets/d/x")
	if !errors.Is(err, ErrBlockedURL) {
		t.Errorf("error = %v, want ErrBlockedURL", err)
	}
}

func TestSheetsClient_Download(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/csv")
			io.WriteString(w, "name,price\nMilk,100\n")
		case "/private":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, "<html>login</html>")
		case "/big":
			w.Header().Set("Content-Type", "text/csv")
			io.WriteString(w, strings.Repeat("x", 2048))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := newTestSheetsClient(ts.Client(), 1024)

	data, err := c.download(context.Background(), ts.URL+"/ok")
	if err != nil {
		t.Fatalf("download() error = %v", err)
	}
	if !strings.Contains(string(data), "Milk") {
		t.Errorf("data = %q", data)
	}

	if _, err := c.download(context.Background(), ts.URL+"/private"); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("非公開シート: error = %v, want ErrFetchFailed", err)
	}
	if _, err := c.download(context.Background(), ts.URL+"/missing"); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("404: error = %v, want ErrFetchFailed", err)
	}
	if _, err := c.download(context.Background(), ts.URL+"/big"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("サイズ超過: error = %v, want ErrTooLarge", err)
	}
}
