// Package domain defines the core domain models for aerie-cli.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// HostConfiguration is a named connection profile for one host deployment.
// Name is the unique key within the credential store.
type HostConfiguration struct {
	Name         string              `json:"name" validate:"required"`
	GraphQLURL   string              `json:"graphql_url" validate:"required,url"`
	GatewayURL   string              `json:"gateway_url" validate:"required,url"`
	Username     string              `json:"username,omitempty"`
	ExternalAuth *ExternalAuthConfig `json:"external_auth,omitempty" validate:"omitempty"`
}

// ExternalAuthConfig describes an authentication proxy that must be
// satisfied before the host's own login. The proxy is called with a form
// POST built from StaticPostVars plus one interactively collected value per
// SecretPostVars entry; the cookies it sets are kept by the transport.
type ExternalAuthConfig struct {
	AuthURL        string            `json:"auth_url" validate:"required,url"`
	StaticPostVars map[string]string `json:"static_post_vars"`
	SecretPostVars []string          `json:"secret_post_vars"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields and URL shapes.
func (c *HostConfiguration) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return ErrConfigurationInvalid.WithDetails(strings.Join(fields, ", ")).WithCause(err)
		}
		return ErrConfigurationInvalid.WithCause(err)
	}
	return nil
}

// Clone returns a deep copy.
func (c HostConfiguration) Clone() HostConfiguration {
	out := c
	if c.ExternalAuth != nil {
		ea := *c.ExternalAuth
		ea.StaticPostVars = maps.Clone(c.ExternalAuth.StaticPostVars)
		ea.SecretPostVars = slices.Clone(c.ExternalAuth.SecretPostVars)
		out.ExternalAuth = &ea
	}
	return out
}

// Equal reports whether two configurations describe the same profile.
// Nil and empty collections compare equal.
func (c HostConfiguration) Equal(o HostConfiguration) bool {
	if c.Name != o.Name || c.GraphQLURL != o.GraphQLURL || c.GatewayURL != o.GatewayURL || c.Username != o.Username {
		return false
	}
	if (c.ExternalAuth == nil) != (o.ExternalAuth == nil) {
		return false
	}
	if c.ExternalAuth == nil {
		return true
	}
	a, b := c.ExternalAuth, o.ExternalAuth
	return a.AuthURL == b.AuthURL &&
		maps.Equal(a.StaticPostVars, b.StaticPostVars) &&
		slices.Equal(a.SecretPostVars, b.SecretPostVars)
}

// UnmarshalJSON normalizes optional fields so that an absent key and an
// explicit null decode to the same value.
func (c *HostConfiguration) UnmarshalJSON(data []byte) error {
	type raw HostConfiguration
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*c = HostConfiguration(r)
	if c.ExternalAuth != nil {
		if c.ExternalAuth.StaticPostVars == nil {
			c.ExternalAuth.StaticPostVars = map[string]string{}
		}
		if c.ExternalAuth.SecretPostVars == nil {
			c.ExternalAuth.SecretPostVars = []string{}
		}
	}
	return nil
}

// ToMap converts the configuration to its persisted key/value form.
func (c HostConfiguration) ToMap() map[string]any {
	m := map[string]any{
		"name":        c.Name,
		"graphql_url": c.GraphQLURL,
		"gateway_url": c.GatewayURL,
	}
	if c.Username != "" {
		m["username"] = c.Username
	}
	if c.ExternalAuth != nil {
		static := map[string]any{}
		for k, v := range c.ExternalAuth.StaticPostVars {
			static[k] = v
		}
		secret := make([]any, 0, len(c.ExternalAuth.SecretPostVars))
		for _, s := range c.ExternalAuth.SecretPostVars {
			secret = append(secret, s)
		}
		m["external_auth"] = map[string]any{
			"auth_url":         c.ExternalAuth.AuthURL,
			"static_post_vars": static,
			"secret_post_vars": secret,
		}
	}
	return m
}

// HostConfigurationFromMap is the inverse of ToMap. Optional keys may be
// absent or nil.
func HostConfigurationFromMap(m map[string]any) (HostConfiguration, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return HostConfiguration{}, ErrConfigurationInvalid.WithCause(err)
	}
	var c HostConfiguration
	if err := json.Unmarshal(data, &c); err != nil {
		return HostConfiguration{}, ErrConfigurationInvalid.WithCause(err)
	}
	return c, nil
}
