package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"payments-engine/model"
)

var snapshotHeader = []string{"client", "available", "held", "total", "locked"}

// WriteSnapshot writes one row per account. Amounts carry at least places
// fraction digits and are never rounded.
func WriteSnapshot(w io.Writer, views []model.AccountView, places int32) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, v := range views {
		row := []string{
			strconv.FormatUint(uint64(v.ClientID), 10),
			model.FormatAmount(v.Available, places),
			model.FormatAmount(v.Held, places),
			model.FormatAmount(v.Total, places),
			strconv.FormatBool(v.Locked),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write client %d: %w", v.ClientID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
