package catalog

import (
	"context"
	"errors"
)

// ConnectorsPath lists the connectors installed on the catalog.
const ConnectorsPath = "/integration/v2/connectors/"

// Connector is one installed connector. Missing fields decode to their zero value.
type Connector struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	UsesAgent         bool   `json:"uses_agent"`
	ConnectorVersion  string `json:"connector_version"`
	ConnectorCategory string `json:"connector_category"`
}

// JSONGetter is the authenticated GET capability endpoint facades depend on.
type JSONGetter interface {
	GetJSON(ctx context.Context, relativePath string, out any) error
}

// ConnectorEndpoint exposes the connectors listing.
type ConnectorEndpoint struct {
	getter JSONGetter
}

// ConnectorsResult is delivered by ListConnectorsAsync.
type ConnectorsResult struct {
	Connectors []Connector
	Err        error
}

// NewConnectorEndpoint wraps getter, usually a *Session.
func NewConnectorEndpoint(getter JSONGetter) *ConnectorEndpoint {
	return &ConnectorEndpoint{getter: getter}
}

// ListConnectors returns the installed connectors in server order.
func (e *ConnectorEndpoint) ListConnectors(ctx context.Context) ([]Connector, error) {
	if e == nil || e.getter == nil {
		return nil, &ConfigError{Field: "session", Reason: "is not configured"}
	}

	var connectors []Connector
	if err := e.getter.GetJSON(ctx, ConnectorsPath, &connectors); err != nil {
		if errors.Is(err, ErrEmptyBody) {
			return []Connector{}, nil
		}
		return nil, err
	}
	if connectors == nil {
		connectors = []Connector{}
	}
	return connectors, nil
}

// ListConnectorsAsync runs ListConnectors in the background. The channel yields
// exactly one result and is then closed.
func (e *ConnectorEndpoint) ListConnectorsAsync(ctx context.Context) <-chan ConnectorsResult {
	out := make(chan ConnectorsResult, 1)
	go func() {
		defer close(out)
		connectors, err := e.ListConnectors(ctx)
		out <- ConnectorsResult{Connectors: connectors, Err: err}
	}()
	return out
}
