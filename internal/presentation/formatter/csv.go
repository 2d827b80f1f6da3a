package formatter

import (
	"encoding/csv"
	"io"
	"time"
)

// CSVFormatter writes one row per item, ignoring overflow.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(w io.Writer, v View) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	headers := []string{"Time", "Entity", "Name", "State", "Raw State", "Icon"}
	if err := cw.Write(headers); err != nil {
		return err
	}

	for _, it := range v.Items {
		record := []string{
			it.Time.UTC().Format(time.RFC3339),
			it.ID,
			it.Name,
			it.State,
			it.RawState,
			it.Icon,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
