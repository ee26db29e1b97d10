package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseExcel はExcelファイルの最初のシートを読み込む。
func ParseExcel(r io.Reader) ([]RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	records := recordsFromRows(rows, 1)
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records, nil
}
