package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// Doc is one engine document. Values may be plain JSON values or atomic
// update operations ({"set": …}, {"add": …}, {"remove": …}); the adapter
// passes both through untouched.
type Doc map[string]any

// Update indexes or atomically updates a batch of documents. The engine is
// asked to commit within one second and to overwrite existing ids.
func (c *Client) Update(ctx context.Context, collection string, docs []Doc) error {
	if collection == "" {
		return ewberrors.New(ewberrors.ErrCodeInvalidInput, "collection name must not be empty", nil)
	}
	if len(docs) == 0 {
		return nil
	}

	body, err := json.Marshal(docs)
	if err != nil {
		return ewberrors.InternalError("failed to marshal update batch", err)
	}

	data, status, err := c.do(ctx, http.MethodPost, c.updateURL(collection), "application/json", body)
	if err != nil {
		return err
	}
	env, err := checkEnvelope(data, status)
	if err != nil {
		return err
	}

	c.logger.Debug("update batch accepted", "collection", collection,
		"docs", len(docs), "qtime_ms", env.ResponseHeader.QTime)
	return nil
}

// DeleteByID deletes one document by id. The engine's update handler takes
// deletions as an XML query body.
func (c *Client) DeleteByID(ctx context.Context, collection, id string) error {
	if collection == "" || id == "" {
		return ewberrors.New(ewberrors.ErrCodeInvalidInput, "collection and id must not be empty", nil)
	}

	body := []byte(fmt.Sprintf("<delete><query>(id:%s)</query></delete>", id))

	data, status, err := c.do(ctx, http.MethodPost, c.updateURL(collection), "text/xml", body)
	if err != nil {
		return err
	}
	if _, err := checkEnvelope(data, status); err != nil {
		return err
	}

	c.logger.Debug("document deleted", "collection", collection, "id", id)
	return nil
}

func (c *Client) updateURL(collection string) string {
	params := url.Values{}
	params.Set("commitWithin", "1000")
	params.Set("overwrite", "true")
	params.Set("wt", "json")
	return fmt.Sprintf("%s/solr/%s/update?%s", c.baseURL, collection, params.Encode())
}
