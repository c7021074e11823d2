package runner

import (
	"errors"
	"testing"

	"github.com/apivault/apivault/internal/db/models"
)

func strPtr(s string) *string { return &s }

func TestMaterialize_SubstitutesURLHeadersBody(t *testing.T) {
	def := &models.RequestDefinition{
		Method: "POST",
		URL:    "{{base_url}}/posts",
		Headers: map[string]string{
			"Authorization": "Bearer {{token}}",
			"Content-Type":  "application/json",
		},
		Body: strPtr(`{"title":"{{title}}"}`),
	}
	variables := map[string]string{
		"base_url": "https://api.example.com",
		"token":    "abc123",
		"title":    "hello",
	}

	mat, err := Materialize(def, variables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mat.URL != "https://api.example.com/posts" {
		t.Errorf("url = %q", mat.URL)
	}
	if mat.Headers["Authorization"] != "Bearer abc123" {
		t.Errorf("auth header = %q", mat.Headers["Authorization"])
	}
	if mat.Body == nil || *mat.Body != `{"title":"hello"}` {
		t.Errorf("body = %v", mat.Body)
	}
}

func TestMaterialize_AppendsQueryParams(t *testing.T) {
	def := &models.RequestDefinition{
		Method:      "GET",
		URL:         "https://api.example.com/search",
		QueryParams: map[string]string{"q": "{{term}}", "page": "2"},
	}

	mat, err := Materialize(def, map[string]string{"term": "golang"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mat.URL != "https://api.example.com/search?page=2&q=golang" {
		t.Errorf("url = %q", mat.URL)
	}
}

func TestMaterialize_AppendsWithAmpersandWhenURLHasQuery(t *testing.T) {
	def := &models.RequestDefinition{
		Method:      "GET",
		URL:         "https://api.example.com/search?lang=en",
		QueryParams: map[string]string{"page": "1"},
	}

	mat, err := Materialize(def, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mat.URL != "https://api.example.com/search?lang=en&page=1" {
		t.Errorf("url = %q", mat.URL)
	}
}

func TestMaterialize_BodyIgnoredForGET(t *testing.T) {
	def := &models.RequestDefinition{
		Method: "GET",
		URL:    "https://api.example.com/posts",
		Body:   strPtr("should not be sent"),
	}

	mat, err := Materialize(def, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mat.Body != nil {
		t.Errorf("expected nil body for GET, got %q", *mat.Body)
	}
}

func TestMaterialize_BodyKeptForLowercaseMethod(t *testing.T) {
	def := &models.RequestDefinition{
		Method: "post",
		URL:    "https://api.example.com/posts",
		Body:   strPtr(`{"a":1}`),
	}

	mat, err := Materialize(def, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mat.Body == nil || *mat.Body != `{"a":1}` {
		t.Errorf("body = %v, want kept for lowercase post", mat.Body)
	}
}

func TestMaterialize_MissingVariablePassesThrough(t *testing.T) {
	def := &models.RequestDefinition{
		Method: "GET",
		URL:    "https://api.example.com/{{resource}}",
	}

	mat, err := Materialize(def, map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mat.URL != "https://api.example.com/{{resource}}" {
		t.Errorf("url = %q, want placeholder preserved", mat.URL)
	}
}

func TestMaterialize_InvalidURLRejected(t *testing.T) {
	def := &models.RequestDefinition{
		Method: "GET",
		URL:    "{{base_url}}/posts",
	}

	_, err := Materialize(def, map[string]string{"base_url": "not a url"})
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}
