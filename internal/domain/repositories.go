package domain

import (
	"context"
	"encoding/json"
)

// Request kinds understood by a DataSource
const (
	RequestPath = "path" // Graph path query
	RequestGet  = "get"  // Component GET
	RequestPost = "post" // Component POST (mutates remote state)
)

// Request is an opaque description of a remote call. Building the actual
// wire request from it is the data source's business.
type Request struct {
	Kind      string         `json:"kind"`
	Component string         `json:"component"`
	Params    map[string]any `json:"params,omitempty"`
}

// DataSource performs remote calls against the streaming service.
// Calls may be slow and may fail; timeouts belong to the implementation.
type DataSource interface {
	Fetch(ctx context.Context, req Request) (json.RawMessage, error)
}

// DataSourceFunc adapts a function to the DataSource interface
type DataSourceFunc func(ctx context.Context, req Request) (json.RawMessage, error)

// Fetch calls f(ctx, req)
func (f DataSourceFunc) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}
