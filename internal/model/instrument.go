package model

// Instrument carries reference data for a symbol.
type Instrument struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Name     string  `json:"name"`
	Sector   string  `json:"sector"`
	LotSize  float64 `json:"lot_size"`
}

// SectorMap builds symbol → sector from instrument reference data.
func SectorMap(instruments []Instrument) map[string]string {
	m := make(map[string]string, len(instruments))
	for _, in := range instruments {
		if in.Sector != "" {
			m[in.Symbol] = in.Sector
		}
	}
	return m
}
