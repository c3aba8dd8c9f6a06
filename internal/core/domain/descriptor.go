// Package domain defines the core domain models for aerie-cli.
package domain

import (
	"encoding/json"
	"fmt"
)

// SessionDescriptor is the serializable part of a host session. Live
// transports are never persisted; they are rebuilt from a descriptor.
type SessionDescriptor struct {
	ConfigurationName string   `json:"configuration_name,omitempty"`
	GraphQLURL        string   `json:"graphql_url"`
	GatewayURL        string   `json:"gateway_url"`
	Token             string   `json:"token,omitempty"`
	ActiveRole        string   `json:"active_role,omitempty"`
	Cookies           []Cookie `json:"cookies,omitempty"`
}

// Cookie is a transport cookie scoped to the URL it was issued for.
type Cookie struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EncodeDescriptor serializes a descriptor.
func EncodeDescriptor(d *SessionDescriptor) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session descriptor: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeDescriptor deserializes a descriptor and re-derives its token.
// It fails when the record is not a complete, self-consistent session.
func DecodeDescriptor(data []byte) (*SessionDescriptor, *Token, error) {
	var d SessionDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, nil, fmt.Errorf("unmarshal session descriptor: %w", err)
	}
	if d.GraphQLURL == "" || d.GatewayURL == "" {
		return nil, nil, fmt.Errorf("session descriptor is missing endpoints")
	}
	if d.Token == "" {
		return &d, nil, nil
	}
	tok, err := ParseToken(d.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("session descriptor token: %w", err)
	}
	if !tok.AllowsRole(d.ActiveRole) {
		return nil, nil, ErrInvalidRole.WithDetails(fmt.Sprintf("stored role %q", d.ActiveRole))
	}
	return &d, tok, nil
}
