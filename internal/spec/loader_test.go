package spec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "file:///etc/hosts")
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InputError, se.Code)
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "ftp://example.com/spec.yaml")
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InputError, se.Code)
}

func TestLoad_EmptyInput(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "  ")
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InputError, se.Code)
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	// Unused port to provoke a quick network failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, "http://127.0.0.1:1/spec.yaml",
		WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2), WithBackoffBase(10*time.Millisecond))
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NetworkError, se.Code)
}

func TestLoad_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(petstore))
	}))
	defer srv.Close()

	src, err := Load(context.Background(), srv.URL+"/openapi.yaml", WithBackoffBase(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Petstore", src.Doc.Info.Title)
}

func TestLoad_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL+"/missing.yaml", WithBackoffBase(time.Millisecond))
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NetworkError, se.Code)
	assert.Contains(t, se.Message, "http 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore), 0o600))

	src, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Location)
	assert.Equal(t, []string{"/pets", "/pets/{id}"}, src.Index.Keys("/paths"))
}

func TestLoad_DanglingRef(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := strings.TrimSpace(`openapi: 3.0.0
info:
  title: Bad
  version: "1.0.0"
paths:
  "/pet":
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Missing'
`) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(context.Background(), path)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, []ErrorCode{ValidationError, ParseError}, se.Code)
	assert.NotEmpty(t, se.Location)
}

func TestLoadBytes_RejectsSwagger2(t *testing.T) {
	t.Parallel()
	_, err := LoadBytes([]byte("swagger: \"2.0\"\ninfo: {title: x, version: \"1\"}\npaths: {}\n"), "swagger.yaml")
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, UnsupportedError, se.Code)
	assert.Contains(t, se.Message, "Swagger 2.0")
}

func TestLoadBytes_UnknownVersion(t *testing.T) {
	t.Parallel()
	for name, doc := range map[string]string{
		"no version":  "info: {title: x}\n",
		"openapi 4":   "openapi: 4.0.0\n",
		"not a map":   "- a\n- b\n",
		"broken yaml": "openapi: [3.0.0\n",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadBytes([]byte(doc), "in.yaml")
			var se *SpecError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, ParseError, se.Code)
		})
	}
}

func TestLoadBytes_AcceptsJSON(t *testing.T) {
	t.Parallel()
	src, err := LoadBytes([]byte(`{"openapi":"3.0.3","info":{"title":"J","version":"1"},"paths":{"/b":{},"/a":{}}}`), "in.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"/b", "/a"}, src.Index.Keys("/paths"))
}

func TestLoadBytes_RewritesLegacyRequired(t *testing.T) {
	t.Parallel()
	src, err := LoadBytes([]byte(`openapi: 3.0.0
info: {title: Legacy, version: "1"}
paths: {}
components:
  schemas:
    Pet:
      type: object
      properties:
        name:
          type: string
          required: true
        age:
          type: integer
          required: false
`), "legacy.yaml")
	require.NoError(t, err)
	pet := src.Doc.Components.Schemas["Pet"].Value
	require.NotNil(t, pet)
	assert.Equal(t, []string{"name"}, pet.Required)
	// Positions still refer to the original text.
	pos, ok := src.Index.Position("#/components/schemas/Pet/properties/age")
	require.True(t, ok)
	assert.Equal(t, 12, pos.Line)
}

func TestSpecError_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := error(&SpecError{Code: ParseError, Message: "wrapped", Cause: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "wrapped", err.Error())
}

func TestExtractJSONPointer(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "#/components/schemas/Missing",
		extractJSONPointer(errors.New(`failed to resolve "#/components/schemas/Missing".`)))
	assert.Empty(t, extractJSONPointer(errors.New("no pointer here")))
	assert.Empty(t, extractJSONPointer(nil))
}

const petstore = `openapi: 3.0.0
info:
  title: Petstore
  version: "1.0.0"
servers:
  - url: https://api.example.com/v1
paths:
  /pets:
    get:
      operationId: listPets
      tags: [pets]
      responses:
        "200":
          description: ok
  /pets/{id}:
    get:
      operationId: getPet
      tags: [pets]
      parameters:
        - name: id
          in: path
          schema:
            type: string
      responses:
        "200":
          description: ok
`
