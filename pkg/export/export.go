// Package export renders completed run results as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/evgrid/fleetsim/core/sim"
)

// WriteJSON writes the full result, rows and summary included, to w.
func WriteJSON(w io.Writer, res *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes one line per step and connector. Vehicle SoC values are
// not part of the tabular output; use the JSON format for the full rows.
func WriteCSV(w io.Writer, res *sim.Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"step", "time", "connector_id", "power_kw", "external_load_kw",
		"price_per_kwh", "cost_to_date", "warnings",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range res.Rows {
		for _, id := range connectorIDs(row) {
			rec := []string{
				strconv.Itoa(row.Step),
				row.Time.Format(time.RFC3339),
				id,
				formatFloat(row.ConnectorPowerKW[id]),
				formatFloat(row.ExternalLoadKW[id]),
				formatFloat(row.PricePerKWh[id]),
				formatFloat(row.CostToDate),
				strconv.Itoa(len(row.Warnings)),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSoCCSV writes one line per step and vehicle with its state of charge.
func WriteSoCCSV(w io.Writer, res *sim.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "time", "vehicle_id", "soc"}); err != nil {
		return err
	}
	for _, row := range res.Rows {
		ids := make([]string, 0, len(row.VehicleSoC))
		for id := range row.VehicleSoC {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			rec := []string{
				strconv.Itoa(row.Step),
				row.Time.Format(time.RFC3339),
				id,
				formatFloat(row.VehicleSoC[id]),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func connectorIDs(row sim.Row) []string {
	ids := make([]string, 0, len(row.ConnectorPowerKW))
	for id := range row.ConnectorPowerKW {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
