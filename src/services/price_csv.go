package services

import (
	"io"

	"depotbook/src/utils"

	"github.com/shopspring/decimal"
)

// ParsePriceCSV reads a price feed with the header
// vendor,symbol,date,open,high,low,close,volume. Empty numeric cells are zero.
func ParsePriceCSV(r io.Reader) ([]PriceRow, error) {
	records, err := utils.ReadCSVRecords(r)
	if err != nil {
		return nil, utils.ValidationError("%v", err)
	}

	rows := make([]PriceRow, 0, len(records))
	for i, record := range records {
		row := PriceRow{Vendor: record["vendor"], Symbol: record["symbol"], Date: record["date"]}
		fields := []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"open", &row.Open},
			{"high", &row.High},
			{"low", &row.Low},
			{"close", &row.Close},
			{"volume", &row.Volume},
		}
		for _, f := range fields {
			value := record[f.name]
			if value == "" {
				continue
			}
			d, err := decimal.NewFromString(value)
			if err != nil {
				return nil, utils.ValidationError("row %d: %s %q is not a number", i+1, f.name, value)
			}
			*f.dst = d
		}
		rows = append(rows, row)
	}
	return rows, nil
}
