package export

import (
	"fmt"

	"github.com/gocarina/gocsv"
)

// CSV encodes a slice of tagged structs (csv:"column") into CSV bytes with a
// header row.
func CSV(rows interface{}) ([]byte, error) {
	out, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return out, nil
}
