package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// createRequest is the collections admin create body.
type createRequest struct {
	Create createParams `json:"create"`
}

type createParams struct {
	Name              string `json:"name"`
	Config            string `json:"config,omitempty"`
	NumShards         int    `json:"numShards"`
	ReplicationFactor int    `json:"replicationFactor"`
}

type listResponse struct {
	envelope
	Collections []string `json:"collections"`
}

// ListCollections returns the names of all collections in the engine.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	data, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/api/collections", "", nil)
	if err != nil {
		return nil, err
	}

	if _, err := checkEnvelope(data, status); err != nil {
		return nil, err
	}
	var resp listResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, badResponse(data, err)
	}
	return resp.Collections, nil
}

// CollectionExists reports whether a collection with the given name exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	names, err := c.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateCollection creates a collection with the client's shard and
// replication defaults. Creating a name that already exists is a conflict;
// the existence pre-check keeps the engine's less readable duplicate-name
// rejection off the wire in the common case.
func (c *Client) CreateCollection(ctx context.Context, name string) error {
	if name == "" {
		return ewberrors.New(ewberrors.ErrCodeInvalidInput, "collection name must not be empty", nil)
	}

	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return ewberrors.ConflictError(fmt.Sprintf("collection %s already exists", name))
	}

	body, err := json.Marshal(createRequest{Create: createParams{
		Name:              name,
		NumShards:         c.shards,
		ReplicationFactor: c.replicationFactor,
	}})
	if err != nil {
		return ewberrors.InternalError("failed to marshal create request", err)
	}

	data, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/collections", "application/json", body)
	if err != nil {
		return err
	}
	if _, err := checkEnvelope(data, status); err != nil {
		return err
	}

	c.logger.Info("collection created", "collection", name,
		"shards", c.shards, "replication_factor", c.replicationFactor)
	return nil
}

// DeleteCollection removes a collection. Deleting a name the engine does
// not know is rejected by the engine; callers that need idempotent deletes
// check CollectionExists first.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if name == "" {
		return ewberrors.New(ewberrors.ErrCodeInvalidInput, "collection name must not be empty", nil)
	}

	params := url.Values{}
	params.Set("action", "DELETE")
	params.Set("name", name)

	data, status, err := c.do(ctx, http.MethodPost,
		c.baseURL+"/api/collections?"+params.Encode(), "application/json", nil)
	if err != nil {
		return err
	}
	if _, err := checkEnvelope(data, status); err != nil {
		return err
	}

	c.logger.Info("collection deleted", "collection", name)
	return nil
}
