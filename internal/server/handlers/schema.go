package handlers

import (
	"context"

	"github.com/impa/website/internal/server/dto"
	"github.com/invopop/jsonschema"
)

// SchemaHandler serves the JSON schema of request bodies so the admin UI can
// validate forms before submitting them.
type SchemaHandler struct{}

// Get returns the schema named in the path.
func (h *SchemaHandler) Get(_ context.Context, req *dto.SchemaRequest) (*jsonschema.Schema, error) {
	r := jsonschema.Reflector{DoNotReference: true, AllowAdditionalProperties: false}
	return r.Reflect(dto.Schemas[req.Name]), nil
}
