package types

import jsoniter "github.com/json-iterator/go"

// Codec serializes entries for the persistent tier.
var Codec = jsoniter.ConfigCompatibleWithStandardLibrary

// persistedEntry defers decoding of Data until a typed reader asks for it.
type persistedEntry struct {
	Data      jsoniter.RawMessage `json:"data"`
	Timestamp int64               `json:"timestamp"`
	ExpiresAt int64               `json:"expiresAt"`
}

// EncodeEntry renders an entry as the JSON text stored by a backend.
func EncodeEntry(ent *CacheEntry) (string, error) {
	return Codec.MarshalToString(ent)
}

// DecodeEntry parses a stored entry. Data is left as raw JSON.
func DecodeEntry(s string) (*CacheEntry, error) {
	var p persistedEntry
	if err := Codec.UnmarshalFromString(s, &p); err != nil {
		return nil, err
	}
	return &CacheEntry{
		Data:      p.Data,
		Timestamp: p.Timestamp,
		ExpiresAt: p.ExpiresAt,
	}, nil
}

// Decode converts a cached value into T.
// Values stored in this process are returned as-is when they already have
// type T; anything else (raw JSON promoted from disk, a different but
// compatible shape) goes through a JSON round trip.
func Decode[T any](v any) (T, error) {
	var out T
	if raw, ok := v.(jsoniter.RawMessage); ok {
		err := Codec.Unmarshal(raw, &out)
		return out, err
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	b, err := Codec.Marshal(v)
	if err != nil {
		return out, err
	}
	err = Codec.Unmarshal(b, &out)
	return out, err
}
