package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// Field describes one schema field. The engine's schema API expects the
// boolean attributes as strings.
type Field struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Indexed       string `json:"indexed"`
	Stored        string `json:"stored"`
	TermVectors   string `json:"termVectors,omitempty"`
	TermPositions string `json:"termPositions,omitempty"`
	TermOffsets   string `json:"termOffsets,omitempty"`
	MultiValued   string `json:"multiValued,omitempty"`
}

// NewVectorField builds a single-valued field definition with term vectors,
// positions, and offsets enabled, as required by payload and vector-product
// query parsers.
func NewVectorField(name, fieldType string) Field {
	return Field{
		Name:          name,
		Type:          fieldType,
		Indexed:       "true",
		Stored:        "true",
		TermVectors:   "true",
		TermPositions: "true",
		TermOffsets:   "true",
		MultiValued:   "false",
	}
}

type addFieldRequest struct {
	AddField Field `json:"add-field"`
}

type deleteFieldRequest struct {
	DeleteField deleteFieldParams `json:"delete-field"`
}

type deleteFieldParams struct {
	Name string `json:"name"`
}

// AddField adds a field to a collection's schema.
func (c *Client) AddField(ctx context.Context, collection string, field Field) error {
	if field.Name == "" || field.Type == "" {
		return ewberrors.New(ewberrors.ErrCodeInvalidInput, "schema field needs a name and a type", nil)
	}

	body, err := json.Marshal(addFieldRequest{AddField: field})
	if err != nil {
		return ewberrors.InternalError("failed to marshal add-field request", err)
	}

	data, status, err := c.do(ctx, http.MethodPost, c.schemaURL(collection), "application/json", body)
	if err != nil {
		return err
	}
	if _, err := checkEnvelope(data, status); err != nil {
		return err
	}

	c.logger.Info("schema field added", "collection", collection,
		"field", field.Name, "type", field.Type)
	return nil
}

// DeleteField removes a field from a collection's schema.
func (c *Client) DeleteField(ctx context.Context, collection, name string) error {
	if name == "" {
		return ewberrors.New(ewberrors.ErrCodeInvalidInput, "schema field name must not be empty", nil)
	}

	body, err := json.Marshal(deleteFieldRequest{DeleteField: deleteFieldParams{Name: name}})
	if err != nil {
		return ewberrors.InternalError("failed to marshal delete-field request", err)
	}

	data, status, err := c.do(ctx, http.MethodPost, c.schemaURL(collection), "application/json", body)
	if err != nil {
		return err
	}
	if _, err := checkEnvelope(data, status); err != nil {
		return err
	}

	c.logger.Info("schema field deleted", "collection", collection, "field", name)
	return nil
}

func (c *Client) schemaURL(collection string) string {
	return fmt.Sprintf("%s/api/collections/%s/schema", c.baseURL, collection)
}
