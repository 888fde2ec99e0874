package preferences

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted layout: the full field set of the latest snapshot
// plus its version, one record per user.
type Record struct {
	UserKey   string                     `json:"user_id"`
	Version   uint64                     `json:"version"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Fields    map[Field]json.RawMessage `json:"fields"`
}

// EncodeRecord serializes a snapshot for the durable store.
func EncodeRecord(userKey string, snapshot Snapshot) ([]byte, error) {
	fields := make(map[Field]json.RawMessage, len(snapshot.fields))
	for f, v := range snapshot.fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", f, err)
		}
		fields[f] = raw
	}
	data, err := json.Marshal(Record{
		UserKey:   userKey,
		Version:   snapshot.version,
		UpdatedAt: snapshot.updatedAt,
		Fields:    fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode preference record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a stored record. Unknown fields are skipped so records
// written by newer builds still load; known fields must decode cleanly.
// Fields missing from the record fall back to the defaults.
func DecodeRecord(data []byte) (string, Snapshot, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", Snapshot{}, fmt.Errorf("failed to decode preference record: %w", err)
	}

	fields := Defaults().Fields()
	for f, raw := range rec.Fields {
		if _, known := f.Kind(); !known {
			continue
		}
		v, err := decodeValue(f, raw)
		if err != nil {
			return "", Snapshot{}, err
		}
		fields[f] = v
	}
	return rec.UserKey, NewSnapshot(rec.Version, fields, rec.UpdatedAt), nil
}
