package analytics

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

// CSVHeader is the column order of WriteCSV.
var CSVHeader = []string{"rank", "name", "symbol", "price", "change24h", "change7d", "marketCap", "volume", "high24h", "low24h"}

// WriteCSV serialises listing rows. Fields containing the delimiter or
// quotes are quoted. An absent rank or market cap is written as an empty field.
func WriteCSV(w io.Writer, rows []ListingRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		a := r.Asset
		rank := ""
		if a.MarketCapRank > 0 {
			rank = strconv.Itoa(a.MarketCapRank)
		}
		mcap := ""
		if a.MarketCap.Valid {
			mcap = a.MarketCap.Decimal.String()
		}
		rec := []string{
			rank,
			a.Name,
			a.Symbol,
			a.CurrentPrice.String(),
			formatPct(a.ChangePct24h),
			formatPct(a.ChangePct7d),
			mcap,
			a.TotalVolume.String(),
			a.High24h.String(),
			a.Low24h.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
