package api

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sortdl/internal/rules"
	"github.com/solatis/sortdl/internal/types"
)

// Preview expands a path template and optional rename pattern against a
// download without consulting the rule list. Used by rule editors to show
// where a download would land.
//
// Request fields: the download fields of Suggest, plus path_template
// (defaults to "{host}/{file}"), rename_pattern and transforms.
// Response fields: filename and context, the evaluation context values
// the template tokens resolve against.
func (s *SuggestService) Preview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	dl, err := downloadRequest(req)
	if err != nil {
		return nil, err
	}

	actions, err := previewActions(req)
	if err != nil {
		return nil, err
	}

	ec, err := s.engine.Context(dl)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"filename": rules.BuildPath(actions, ec),
		"context": map[string]any{
			"protocol":      ec.Protocol,
			"host":          ec.Host,
			"port":          ec.Port,
			"path":          ec.Path,
			"file":          ec.File,
			"basename":      ec.Basename,
			"ext":           ec.Ext,
			"mime":          ec.MIME,
			"referrer_host": ec.ReferrerHost,
		},
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func previewActions(req *structpb.Struct) (types.RuleActions, error) {
	var actions types.RuleActions
	var err error

	if actions.PathTemplate, err = stringField(req, "path_template"); err != nil {
		return types.RuleActions{}, err
	}
	if actions.RenamePattern, err = stringField(req, "rename_pattern"); err != nil {
		return types.RuleActions{}, err
	}

	names, err := stringListField(req, "transforms")
	if err != nil {
		return types.RuleActions{}, err
	}
	for _, name := range names {
		t := types.Transform(name)
		if !t.Valid() {
			return types.RuleActions{}, invalidArgument("unknown transform %q", name)
		}
		actions.Transforms = append(actions.Transforms, t)
	}

	return actions, nil
}
