// Package history keeps the append-only, hash-chained record of what
// happened to each case. Every entry carries a SHA-256 over its own
// content plus the previous entry's hash, so any later edit to a row
// breaks the chain and is detectable.
package history

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Entry is one immutable history record
type Entry struct {
	ID          types.ID       `json:"id"`
	Sequence    int64          `json:"sequence"`
	CaseID      *types.ID      `json:"case_id,omitempty"`
	Action      string         `json:"action"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ActorID     types.ID       `json:"actor_id"`
	Hash        string         `json:"hash"`
	PrevHash    string         `json:"prev_hash,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewEntry creates a history entry with its content hash computed.
// The chain link (prev_hash) is filled in at append time.
func NewEntry(caseID *types.ID, action, description string, metadata map[string]any, actorID types.ID) *Entry {
	e := &Entry{
		ID: types.NewID(),
		// Truncate to microseconds so the value survives a
		// PostgreSQL round-trip with the hash intact
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		CaseID:      caseID,
		Action:      action,
		Description: description,
		Metadata:    metadata,
		ActorID:     actorID,
	}
	e.Hash = e.computeHash()
	return e
}

// computeHash hashes the entry content together with prev_hash using
// canonical JSON, so map key order cannot change the result.
func (e *Entry) computeHash() string {
	data := map[string]any{
		"id":         e.ID,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"prev_hash":  e.PrevHash,
		"action":     e.Action,
		"actor_id":   e.ActorID,
	}

	if e.CaseID != nil {
		data["case_id"] = e.CaseID
	}
	if e.Description != "" {
		data["description"] = e.Description
	}
	if len(e.Metadata) > 0 {
		data["metadata"] = e.Metadata
	}

	jsonData, _ := canonicalJSON(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// VerifyHash reports whether the stored hash still matches the content
func (e *Entry) VerifyHash() bool {
	return e.Hash == e.computeHash()
}

// ComputeHash recomputes and returns the correct hash for this entry
func (e *Entry) ComputeHash() string {
	return e.computeHash()
}

// ListFilter narrows history queries
type ListFilter struct {
	CaseID    *types.ID
	Action    string
	ActorID   *types.ID
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// canonicalJSON produces deterministic JSON with sorted map keys. Go
// maps iterate in random order and JSONB may reorder keys, so hashing
// requires a canonical form.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}
