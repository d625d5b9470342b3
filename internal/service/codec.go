package service

import (
	"encoding/json"
	"fmt"

	"go-ticker/pkg/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeSnapshot converts a snapshot to its wire form. Prices travel as
// decimal strings so no precision is lost.
func EncodeSnapshot(snap models.Snapshot) (*structpb.Struct, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return structpb.NewStruct(m)
}

func DecodeSnapshot(st *structpb.Struct) (models.Snapshot, error) {
	var snap models.Snapshot
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
