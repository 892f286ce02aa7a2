package api

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sortdl/internal/rules"
)

// Suggest computes the download destination for one browser download.
//
// Request fields: url (required unless final_url is set), final_url,
// filename, referrer, mime.
// Response fields: download_id, matched, rule_id, rule_name, filename,
// conflict. When matched is false, filename is the platform default and
// rule_id/rule_name are empty.
func (s *SuggestService) Suggest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	dl, err := downloadRequest(req)
	if err != nil {
		return nil, err
	}

	suggestion, err := s.engine.Suggest(dl)
	if err != nil {
		return nil, toStatus(err)
	}

	s.log.WithFields(logrus.Fields{
		"download_id": suggestion.DownloadID,
		"matched":     suggestion.Matched,
		"rule_id":     suggestion.RuleID,
	}).Debug("Suggested download destination")

	resp, err := structpb.NewStruct(map[string]any{
		"download_id": suggestion.DownloadID,
		"matched":     suggestion.Matched,
		"rule_id":     string(suggestion.RuleID),
		"rule_name":   suggestion.RuleName,
		"filename":    suggestion.Filename,
		"conflict":    string(suggestion.Conflict),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

// downloadRequest reads the download fields shared by Suggest and Preview.
func downloadRequest(req *structpb.Struct) (rules.DownloadRequest, error) {
	var dl rules.DownloadRequest
	fields := []struct {
		name string
		dest *string
	}{
		{"url", &dl.URL},
		{"final_url", &dl.FinalURL},
		{"filename", &dl.Filename},
		{"referrer", &dl.Referrer},
		{"mime", &dl.MIME},
	}
	for _, f := range fields {
		v, err := stringField(req, f.name)
		if err != nil {
			return rules.DownloadRequest{}, err
		}
		*f.dest = v
	}

	if dl.URL == "" && dl.FinalURL == "" {
		return rules.DownloadRequest{}, invalidArgument("url is required")
	}
	return dl, nil
}
