package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVHeader is the fixed column order of the CSV report.
var CSVHeader = []string{"item_id", "domain", "severity", "status", "title", "owner", "evidence_count", "pack", "orphaned"}

// CSV writes one row per item. The output carries no timestamps, so equal
// snapshots produce identical bytes.
func CSV(w io.Writer, snap *Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := range snap.Items {
		it := &snap.Items[i]
		ref := it.PackRef()
		row := []string{
			it.ItemID,
			it.Domain,
			string(it.Severity),
			string(it.Status),
			it.Title,
			it.Owner,
			strconv.Itoa(len(it.Evidence)),
			ref.String(),
			strconv.FormatBool(it.Orphaned),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
