package match

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocknest/mocknest/pkg/endpoint"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func testSet() *endpoint.Set {
	return &endpoint.Set{
		Endpoints: []*endpoint.Endpoint{
			{
				ID:          "ep-users",
				Path:        "/api/users",
				Method:      "POST",
				StatusCode:  201,
				Body:        `{"ok":true}`,
				ContentType: "application/json",
			},
			{
				ID:     "ep-health",
				Path:   "/health",
				Method: "GET",
			},
		},
	}
}

func TestMatch_EndpointSelection(t *testing.T) {
	set := testSet()

	t.Run("exact path and method", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/users", nil)
		res := Match(set, r, nil)
		require.True(t, res.Matched())
		assert.Equal(t, "ep-users", res.Endpoint.ID)
		assert.Equal(t, 201, res.Response.StatusCode)
		assert.Equal(t, `{"ok":true}`, res.Response.Body)
	})

	t.Run("method is case-insensitive", func(t *testing.T) {
		r := httptest.NewRequest("post", "/api/users", nil)
		assert.True(t, Match(set, r, nil).Matched())
	})

	t.Run("path is case-sensitive", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/API/users", nil)
		assert.False(t, Match(set, r, nil).Matched())
	})

	t.Run("wrong method", func(t *testing.T) {
		r := httptest.NewRequest("DELETE", "/api/users", nil)
		assert.False(t, Match(set, r, nil).Matched())
	})

	t.Run("unknown path", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/nope", nil)
		res := Match(set, r, nil)
		assert.False(t, res.Matched())
		assert.Nil(t, res.Endpoint)
		assert.Nil(t, res.Rule)
	})

	t.Run("zero status defaults to 200", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/health", nil)
		res := Match(set, r, nil)
		require.True(t, res.Matched())
		assert.Equal(t, 200, res.Response.StatusCode)
	})
}

func TestMatch_RulePriority(t *testing.T) {
	set := testSet()
	set.Rules = []*endpoint.Rule{
		{
			ID: "rule-b", EndpointID: "ep-users", Priority: 2,
			Conditions: endpoint.Conditions{Headers: []endpoint.Condition{{Name: "X-Test", Value: "1"}}},
			Response:   endpoint.Override{StatusCode: intp(500)},
		},
		{
			ID: "rule-a", EndpointID: "ep-users", Priority: 1,
			Conditions: endpoint.Conditions{Headers: []endpoint.Condition{{Name: "X-Test", Value: "1"}}},
			Response:   endpoint.Override{StatusCode: intp(418)},
		},
	}

	r := httptest.NewRequest("POST", "/api/users", nil)
	r.Header.Set("X-Test", "1")

	res := Match(set, r, nil)
	require.True(t, res.Matched())
	require.NotNil(t, res.Rule)
	assert.Equal(t, "rule-a", res.Rule.ID, "lower priority number wins")
	assert.Equal(t, 418, res.Response.StatusCode)
}

func TestMatch_RuleFallsBackToDefaults(t *testing.T) {
	set := testSet()
	set.Rules = []*endpoint.Rule{
		{
			ID: "rule-1", EndpointID: "ep-users", Priority: 1,
			Conditions: endpoint.Conditions{Headers: []endpoint.Condition{{Name: "X-Test", Value: "1"}}},
			Response:   endpoint.Override{StatusCode: intp(418)},
		},
	}

	t.Run("with header gets the override", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/users", nil)
		r.Header.Set("X-Test", "1")
		res := Match(set, r, nil)
		assert.Equal(t, 418, res.Response.StatusCode)
		// Fields the rule does not set stay on endpoint defaults.
		assert.Equal(t, `{"ok":true}`, res.Response.Body)
	})

	t.Run("without header gets the defaults", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/users", nil)
		res := Match(set, r, nil)
		assert.Nil(t, res.Rule)
		assert.Equal(t, 201, res.Response.StatusCode)
	})
}

func TestMatch_AllConditionsMustHold(t *testing.T) {
	set := testSet()
	set.Rules = []*endpoint.Rule{
		{
			ID: "rule-1", EndpointID: "ep-users", Priority: 1,
			Conditions: endpoint.Conditions{
				Headers: []endpoint.Condition{{Name: "X-Test", Value: "1"}},
				Query:   []endpoint.Condition{{Name: "debug", Op: endpoint.OpPresent}},
			},
			Response: endpoint.Override{StatusCode: intp(418)},
		},
	}

	r := httptest.NewRequest("POST", "/api/users?debug", nil)
	r.Header.Set("X-Test", "1")
	assert.Equal(t, 418, Match(set, r, nil).Response.StatusCode)

	r2 := httptest.NewRequest("POST", "/api/users", nil)
	r2.Header.Set("X-Test", "1")
	assert.Equal(t, 201, Match(set, r2, nil).Response.StatusCode)
}

func TestMatch_RuleOverridesAllFields(t *testing.T) {
	set := testSet()
	set.Rules = []*endpoint.Rule{
		{
			ID: "rule-1", EndpointID: "ep-users", Priority: 1,
			Response: endpoint.Override{
				StatusCode:  intp(503),
				Body:        strp("maintenance"),
				DelayMs:     intp(250),
				ContentType: strp("text/plain"),
			},
		},
	}

	r := httptest.NewRequest("POST", "/api/users", nil)
	res := Match(set, r, nil)
	assert.Equal(t, Response{StatusCode: 503, Body: "maintenance", DelayMs: 250, ContentType: "text/plain"}, res.Response)
}

func TestMatch_BodyConditions(t *testing.T) {
	set := testSet()
	set.Rules = []*endpoint.Rule{
		{
			ID: "rule-json", EndpointID: "ep-users", Priority: 1,
			Conditions: endpoint.Conditions{
				Body: &endpoint.BodyCondition{JSONPath: map[string]any{"$.role": "admin"}},
			},
			Response: endpoint.Override{StatusCode: intp(403)},
		},
		{
			ID: "rule-pattern", EndpointID: "ep-users", Priority: 2,
			Conditions: endpoint.Conditions{
				Body: &endpoint.BodyCondition{Pattern: `"name":\s*"root"`},
			},
			Response: endpoint.Override{StatusCode: intp(409)},
		},
	}

	match := func(body string) Result {
		r := httptest.NewRequest("POST", "/api/users", strings.NewReader(body))
		return Match(set, r, []byte(body))
	}

	assert.Equal(t, 403, match(`{"role":"admin"}`).Response.StatusCode)
	assert.Equal(t, 409, match(`{"name": "root"}`).Response.StatusCode)
	assert.Equal(t, 201, match(`{"role":"user"}`).Response.StatusCode)
	assert.Equal(t, 201, match(`not json`).Response.StatusCode, "non-JSON body fails JSONPath silently")
}

func TestMatch_JSONPathExistence(t *testing.T) {
	set := testSet()
	set.Rules = []*endpoint.Rule{
		{
			ID: "rule-1", EndpointID: "ep-users", Priority: 1,
			Conditions: endpoint.Conditions{
				Body: &endpoint.BodyCondition{JSONPath: map[string]any{"$.token": map[string]any{"exists": false}}},
			},
			Response: endpoint.Override{StatusCode: intp(401)},
		},
	}

	r := httptest.NewRequest("POST", "/api/users", nil)
	assert.Equal(t, 401, Match(set, r, []byte(`{"user":"x"}`)).Response.StatusCode)
	assert.Equal(t, 201, Match(set, r, []byte(`{"token":"t"}`)).Response.StatusCode)
}

func TestMatch_ExprCondition(t *testing.T) {
	set := testSet()
	set.Rules = []*endpoint.Rule{
		{
			ID: "rule-1", EndpointID: "ep-users", Priority: 1,
			Conditions: endpoint.Conditions{
				Expr: `query.v == "2" && headers["X-Env"] startsWith "stag"`,
			},
			Response: endpoint.Override{StatusCode: intp(418)},
		},
	}

	r := httptest.NewRequest("POST", "/api/users?v=2", nil)
	r.Header.Set("X-Env", "staging")
	assert.Equal(t, 418, Match(set, r, nil).Response.StatusCode)

	r2 := httptest.NewRequest("POST", "/api/users?v=1", nil)
	r2.Header.Set("X-Env", "staging")
	assert.Equal(t, 201, Match(set, r2, nil).Response.StatusCode)
}

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"exact", "exact", true},
		{"exact", "other", false},
		{"pre*", "prefix", true},
		{"pre*", "nope", false},
		{"*fix", "prefix", true},
		{"*mid*", "amidst", true},
		{"a*c", "abc", true},
		{"a*c", "abd", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchWildcard(tt.pattern, tt.value), "%s vs %s", tt.pattern, tt.value)
	}
}
