package inspect

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// ErrInvalidPath is returned by Extract for an unparseable JSONPath.
var ErrInvalidPath = errors.New("invalid JSONPath")

// Extract evaluates a JSONPath expression against the JSON form of e and
// returns every match. JSON bodies are queried as structured values, so
// "$.response.data.user.id" reaches into a response payload.
func Extract(e apilog.Entry, path string) ([]interface{}, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}

	results := x.Get(data)
	if results == nil {
		results = []interface{}{}
	}
	return results, nil
}
