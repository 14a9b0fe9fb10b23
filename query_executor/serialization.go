package executor

import (
	"encoding/json"
	"fmt"

	"KernelDB/types"
)

/*
Row wire format inside heap records: JSON object of column name to value.
Self-describing and schema-tolerant, at the cost of bytes — the access
layer treats records as opaque, so the codec lives with the executors that
produce and consume rows.
*/

// EncodeRow renders a row for heap storage.
func EncodeRow(row types.Row) ([]byte, error) {
	data, err := json.Marshal(row.Values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return data, nil
}

// DecodeRow parses a heap record back into a row.
func DecodeRow(data []byte) (types.Row, error) {
	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return types.Row{}, fmt.Errorf("failed to decode row: %w", err)
	}
	return types.Row{Values: values}, nil
}
