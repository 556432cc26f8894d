package metrics

// Result is an immutable summary of one metric stream at a point in time.
// Nil statistic fields marshal as JSON null; a count of zero means no
// observation has arrived yet.
type Result struct {
	Tag         string   `json:"tag"`
	Header      string   `json:"header"`
	ShortHeader string   `json:"short_header"`
	Unit        string   `json:"unit"`
	DisplayUnit string   `json:"display_unit"`
	Current     *float64 `json:"current"`
	Count       int64    `json:"count"`
	Avg         *float64 `json:"avg"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	P50         *float64 `json:"p50"`
	P90         *float64 `json:"p90"`
	P95         *float64 `json:"p95"`
	P99         *float64 `json:"p99"`
	Std         *float64 `json:"std"`
}
