package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// candidateDelimiters は区切り文字の候補。先頭ほど優先する。
var candidateDelimiters = []rune{',', ';', '\t'}

// ParseCSV はCSVを読み込む。区切り文字は先頭行から推定する。
// 行ごとの列数の違いは許容する。
func ParseCSV(r io.Reader) ([]RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoRows
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	records := recordsFromRows(rows, 1)
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records, nil
}

// sniffDelimiter は先頭行に最も多く現れる候補を区切り文字とする。
func sniffDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := ""
	if sc.Scan() {
		first = sc.Text()
	}

	best, bestCount := candidateDelimiters[0], 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(first, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
