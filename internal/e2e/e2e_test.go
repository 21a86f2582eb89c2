package e2e

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cli "github.com/mark3labs/swagger2ts/internal/cli"
)

// OpenAPI v3 document covering shared tags, refs, enums and every parameter location.
const sampleSpec = `openapi: 3.0.3
info:
  title: E2E Sample
  version: '1.0.0'
servers:
  - url: https://{region}.example.com/v1
    variables:
      region:
        default: eu
tags:
  - name: pets
    description: Pet operations
paths:
  /pets:
    parameters:
      - name: X-Tenant
        in: header
        required: true
        schema:
          type: string
    get:
      tags: [pets, read]
      operationId: listPets
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
        - $ref: '#/components/parameters/Status'
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Pet'
    post:
      tags: [pets]
      operationId: createPet
      requestBody:
        $ref: '#/components/requestBodies/NewPet'
      responses:
        '201':
          $ref: '#/components/responses/PetCreated'
  /pets/{petId}:
    get:
      tags: [read]
      operationId: getPet
      parameters:
        - name: petId
          in: path
          schema:
            type: integer
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        default:
          description: error
          content:
            application/problem+json:
              schema:
                $ref: '#/components/schemas/Problem'
components:
  parameters:
    Status:
      name: status
      in: query
      schema:
        $ref: '#/components/schemas/Status'
  requestBodies:
    NewPet:
      required: true
      content:
        application/json:
          schema:
            $ref: '#/components/schemas/Pet'
  responses:
    PetCreated:
      description: created
      content:
        application/json:
          schema:
            $ref: '#/components/schemas/Pet'
  schemas:
    Pet:
      type: object
      required: [id, name]
      properties:
        id:
          type: integer
        name:
          type: string
        status:
          $ref: '#/components/schemas/Status'
        tags:
          type: array
          items:
            type: string
        parent:
          $ref: '#/components/schemas/Pet'
    Status:
      type: string
      enum: [available, pending, sold]
    Problem:
      type: object
      properties:
        title:
          type: string
        status:
          type: integer
`

func writeTempSpec(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sampleSpec), 0o600))
	return p
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), "cli execute %v", args)
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	var list []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		list = append(list, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err, "walk %s", dir)
	sort.Strings(list)

	// hash path + contents in sorted order
	h := sha256.New()
	for _, rel := range list {
		b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		_, _ = h.Write([]byte(rel))
		_, _ = h.Write(b)
	}
	return list, hex.EncodeToString(h.Sum(nil))
}

func TestE2E_Generate_Deterministic(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t)
	dir1 := filepath.Join(t.TempDir(), "api")
	dir2 := filepath.Join(t.TempDir(), "api")

	runCLI(t, "generate", "--input", spec, "--out", dir1)
	runCLI(t, "generate", "--input", spec, "--out", dir2)

	files1, sum1 := digestDir(t, dir1)
	files2, sum2 := digestDir(t, dir2)
	assert.Equal(t, []string{"README.md", "models.ts", "pets.ts", "read.ts"}, files1)
	assert.Equal(t, files1, files2)
	assert.Equal(t, sum1, sum2, "generated outputs differ between runs")

	// Regenerating in place with --force changes nothing.
	runCLI(t, "generate", "--input", spec, "--out", dir1, "--force")
	_, again := digestDir(t, dir1)
	assert.Equal(t, sum1, again)
	runCLI(t, "generate", "--input", spec, "--out", dir1, "--check")
}

func TestE2E_Generate_Contents(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t)
	dir := filepath.Join(t.TempDir(), "api")
	runCLI(t, "generate", "--input", spec, "--out", dir)

	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(b)
	}

	pets := read("pets.ts")
	assert.Contains(t, pets, "export class PetsApiClient {")
	assert.Contains(t, pets, "public static async listPets(X_Tenant: string, limit?: number, status?: Models.Status): Promise<Array<Models.Pet>> {")
	assert.Contains(t, pets, "url: `https://eu.example.com/v1/pets`,")
	assert.Contains(t, pets, "        \"X-Tenant\": X_Tenant,\n")
	assert.Contains(t, pets, "public static async createPet(body: Models.Pet, X_Tenant: string): Promise<Models.Pet> {")

	readClient := read("read.ts")
	assert.Contains(t, readClient, "listPets(")
	assert.Contains(t, readClient, "public static async getPet(petId: number): Promise<Models.Pet | Models.Problem> {")
	assert.Contains(t, readClient, "url: `https://eu.example.com/v1/pets/${petId}`,")

	models := read("models.ts")
	assert.Equal(t, strings.Join([]string{
		`export interface Pet { id: number; name: string; status?: Status; tags?: Array<string>; parent?: Pet; }`,
		``,
		`export interface Problem { title?: string; status?: number; }`,
		``,
	}, "\n"), models)
}

func TestE2E_TypeScriptCompiles(t *testing.T) {
	if os.Getenv("SWAGGER2TS_E2E_ONLINE") != "1" || !haveCmd("npx") {
		t.Skip("set SWAGGER2TS_E2E_ONLINE=1 with npx available to type-check the output")
	}
	spec := writeTempSpec(t)
	dir := filepath.Join(t.TempDir(), "api")
	// Status is a named enum; only --aliases declares it in models.ts.
	runCLI(t, "generate", "--input", spec, "--out", dir, "--aliases")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	if out, err := exec.CommandContext(ctx, "npm", "install", "--prefix", dir, "axios", "typescript").CombinedOutput(); err != nil {
		t.Skipf("npm install skipped (likely offline): %v\n%s", err, out)
	}
	cmd := exec.CommandContext(ctx, "npx", "--prefix", dir, "tsc", "--noEmit", "--strict", "--esModuleInterop",
		filepath.Join(dir, "pets.ts"), filepath.Join(dir, "read.ts"))
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "tsc: %s", out)
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
