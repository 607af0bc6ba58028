package ingest

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"filing_tasks/pkg/core/utils"
	"filing_tasks/pkg/models"
)

// TickerMap maps an upper-case ticker to a 10-digit CIK.
type TickerMap map[string]string

// Lookup returns the CIK for ticker, if mapped.
func (m TickerMap) Lookup(ticker string) (string, bool) {
	cik, ok := m[strings.ToUpper(strings.TrimSpace(ticker))]
	return cik, ok
}

// LoadTickerMap reads a company_tickers.json file.
//
// Three layouts are accepted:
//   - {"0": {"cik_str": 320193, "ticker": "AAPL", ...}, ...}   (SEC download)
//   - [{"cik_str": 320193, "ticker": "AAPL"}, ...]
//   - {"fields": ["cik_str", "name", "ticker", ...], "data": [[320193, "Apple Inc.", "AAPL"], ...]}
func LoadTickerMap(path string) (TickerMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read ticker map: %v", models.ErrConfiguration, err)
	}

	var data interface{}
	if err := utils.DecodeLenient(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrConfiguration, path, err)
	}

	mapping := parseTickerData(data)
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: unable to parse %s into a ticker->CIK map", models.ErrConfiguration, path)
	}
	return mapping, nil
}

func parseTickerData(data interface{}) TickerMap {
	mapping := make(TickerMap)

	var rows []interface{}
	switch v := data.(type) {
	case map[string]interface{}:
		if list, ok := v["data"].([]interface{}); ok {
			if fields, ok := v["fields"].([]interface{}); ok && allLists(list) {
				tickerIdx, cikIdx := indexOf(fields, "ticker"), indexOf(fields, "cik_str")
				if tickerIdx >= 0 && cikIdx >= 0 {
					for _, r := range list {
						cells := r.([]interface{})
						if tickerIdx >= len(cells) || cikIdx >= len(cells) {
							continue
						}
						addTicker(mapping, cells[tickerIdx], cells[cikIdx])
					}
					return mapping
				}
			}
			rows = list
		} else {
			for _, entry := range v {
				rows = append(rows, entry)
			}
		}
	case []interface{}:
		rows = v
	}

	for _, r := range rows {
		entry, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		ticker, hasTicker := entry["ticker"]
		cik, hasCIK := entry["cik_str"]
		if hasTicker && hasCIK {
			addTicker(mapping, ticker, cik)
		}
	}
	return mapping
}

func addTicker(mapping TickerMap, ticker, cik interface{}) {
	t, ok := ticker.(string)
	if !ok {
		return
	}
	t = strings.ToUpper(strings.TrimSpace(t))
	c := cikString(cik)
	if t == "" || c == "" {
		return
	}
	mapping[t] = PadCIK(c)
}

func cikString(v interface{}) string {
	switch c := v.(type) {
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case string:
		return strings.TrimSpace(c)
	}
	return ""
}

func allLists(rows []interface{}) bool {
	for _, r := range rows {
		if _, ok := r.([]interface{}); !ok {
			return false
		}
	}
	return true
}

func indexOf(fields []interface{}, name string) int {
	for i, f := range fields {
		if s, ok := f.(string); ok && s == name {
			return i
		}
	}
	return -1
}
