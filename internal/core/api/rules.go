package api

import (
	"context"
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sortdl/internal/rulesfile"
)

// ListRules returns the stored rules document.
//
// Response fields: revision, and document, the versioned rules document
// in the same shape as an export.
func (s *SuggestService) ListRules(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	revision, err := s.store.Revision(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	data, err := rulesfile.Marshal(stored)
	if err != nil {
		return nil, toStatus(err)
	}

	var document map[string]any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, toStatus(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"revision": revision,
		"document": document,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}
