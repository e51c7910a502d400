package entity

import (
	"encoding/json"
	"time"
)

// Resource is a snapshot of one reviewable resource instance (e.g. a
// knowledge document). The backend owns the authoritative state; the
// engine only holds the latest fetched snapshot.
type Resource struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CurrentNode string    `json:"current_node"`
	ChunkCount  int       `json:"chunk_count"`
	WordCount   int       `json:"word_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UnmarshalJSON normalizes the backend's three spellings of the current
// lifecycle node (current_node, currentNode, legacy status) into the
// single CurrentNode field. This is the only place the aliases are
// resolved; consumers never see the legacy names.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            string    `json:"id"`
		Title         string    `json:"title"`
		CurrentNode   string    `json:"current_node"`
		CurrentNodeCC string    `json:"currentNode"`
		Status        string    `json:"status"`
		ChunkCount    int       `json:"chunk_count"`
		ChunkCountCC  int       `json:"chunkCount"`
		WordCount     int       `json:"word_count"`
		UpdatedAt     time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = raw.ID
	r.Title = raw.Title
	r.CurrentNode = canonicalNode(raw.CurrentNode, raw.CurrentNodeCC, raw.Status)
	r.ChunkCount = raw.ChunkCount
	if r.ChunkCount == 0 {
		r.ChunkCount = raw.ChunkCountCC
	}
	r.WordCount = raw.WordCount
	r.UpdatedAt = raw.UpdatedAt
	return nil
}

// canonicalNode picks the first non-empty node spelling, in order of
// preference: current_node, currentNode, status.
func canonicalNode(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
