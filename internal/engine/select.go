package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// SelectResult is the decoded body of a select response.
type SelectResult struct {
	NumFound   int64
	Start      int64
	Docs       []Doc
	NextCursor string
	QTime      int
}

type selectEnvelope struct {
	envelope
	Response struct {
		NumFound int64 `json:"numFound"`
		Start    int64 `json:"start"`
		Docs     []Doc `json:"docs"`
	} `json:"response"`
	NextCursorMark string `json:"nextCursorMark"`
}

// Select runs a search against one collection. Params are passed through to
// the engine's select handler verbatim except for the response format,
// which is always JSON.
func (c *Client) Select(ctx context.Context, collection string, params url.Values) (*SelectResult, error) {
	if collection == "" {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidInput, "collection name must not be empty", nil)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("wt", "json")

	rawURL := fmt.Sprintf("%s/solr/%s/select?%s", c.baseURL, collection, params.Encode())
	data, status, err := c.do(ctx, http.MethodGet, rawURL, "", nil)
	if err != nil {
		return nil, err
	}
	if _, err := checkEnvelope(data, status); err != nil {
		return nil, err
	}

	var env selectEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, badResponse(data, err)
	}

	return &SelectResult{
		NumFound:   env.Response.NumFound,
		Start:      env.Response.Start,
		Docs:       env.Response.Docs,
		NextCursor: env.NextCursorMark,
		QTime:      env.ResponseHeader.QTime,
	}, nil
}
