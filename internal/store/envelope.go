package store

// Keys under which a find response may wrap its result list.
var listKeys = []string{"data", "items", "results", "records", "entities"}

// Keys under which a create or update response may wrap the record.
var recordKeys = []string{"data", "record", "entity"}

// normalizeList turns any supported find response shape into a list of records.
// Unknown shapes yield an empty list.
func normalizeList(v any) []Record {
	switch t := v.(type) {
	case []any:
		return toRecords(t)
	case map[string]any:
		for _, key := range listKeys {
			if arr, ok := t[key].([]any); ok {
				return toRecords(arr)
			}
		}
	}
	return nil
}

// normalizeRecord extracts the single record from a create or update response.
func normalizeRecord(v any) Record {
	switch t := v.(type) {
	case map[string]any:
		for _, key := range recordKeys {
			if inner, ok := t[key].(map[string]any); ok {
				return Record(inner)
			}
		}
		return Record(t)
	case []any:
		if recs := toRecords(t); len(recs) > 0 {
			return recs[0]
		}
	}
	return nil
}

func toRecords(arr []any) []Record {
	recs := make([]Record, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			recs = append(recs, Record(m))
		}
	}
	return recs
}
