package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurelia-commerce/pkg/config"
)

func TestBuiltinPolicies(t *testing.T) {
	e, err := NewEnforcer(&config.Config{})
	require.NoError(t, err)

	cases := []struct {
		role, path, method string
		allowed            bool
	}{
		{"affiliate", "/api/affiliate/links", "POST", true},
		{"affiliate", "/api/affiliate/earnings", "GET", true},
		{"admin", "/api/affiliate/links", "GET", true},
		{"customer", "/api/affiliate/links", "GET", false},

		{"admin", "/api/orders", "GET", true},
		{"admin", "/api/orders/42/status", "PUT", true},
		{"admin", "/api/orders/42", "DELETE", true},
		{"customer", "/api/orders", "GET", false},
		{"affiliate", "/api/orders/42", "DELETE", false},

		{"admin", "/api/users", "GET", true},
		{"admin", "/api/users/42/role", "PUT", true},
		{"admin", "/api/users/42/status", "PUT", true},
		{"admin", "/api/users/42", "DELETE", true},
		{"customer", "/api/users", "GET", false},
		{"affiliate", "/api/users/42/role", "PUT", false},

		{"admin", "/api/products", "POST", true},
		{"customer", "/api/products", "POST", false},
		{"admin", "/api/categories", "POST", true},
	}
	for _, tc := range cases {
		allowed, err := e.Enforce(tc.role, tc.path, tc.method)
		require.NoError(t, err)
		assert.Equal(t, tc.allowed, allowed, "%s %s %s", tc.role, tc.method, tc.path)
	}
}
