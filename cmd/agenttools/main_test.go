package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/effective-security/agenttools/pkg/toolfactory"
	"github.com/effective-security/agenttools/store"
	"github.com/effective-security/agenttools/tools"
	"github.com/effective-security/agenttools/tools/imagedesc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, env := range []string{
		toolfactory.EnvAirtableToken,
		toolfactory.EnvAirtableBase,
		imagedesc.EnvEndpoint,
		imagedesc.EnvModelID,
		imagedesc.EnvAPIKey,
	} {
		t.Setenv(env, "")
	}
}

func newTestCLI() *cli {
	st := store.NewMemoryStore()
	return &cli{
		newStore: func(context.Context, *toolfactory.StoreConfig) (store.SnapshotStore, error) {
			return st, nil
		},
	}
}

func run(c *cli, stdin string, args ...string) (string, string, error) {
	cmd := c.command()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func Test_List(t *testing.T) {
	clearEnv(t)
	c := newTestCLI()

	out, _, err := run(c, "", "list")
	require.NoError(t, err)
	exp := "{\n\t\"tools\": [\n\t\t{\n\t\t\t\"name\": \"OpenLibrary\",\n\t\t\t\"description\": \"Provides access to a library of books with information about book titles, authors, contributors, publication dates, publisher and isbn.\"\n\t\t},\n\t\t{\n\t\t\t\"name\": \"HelloWorld\",\n\t\t\t\"description\": \"Says hello when asked for a special greeting.\"\n\t\t}\n\t]\n}\n"
	assert.Equal(t, exp, out)

	out, _, err = run(c, "", "list", "--format", "yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tools:\n"))
	assert.Contains(t, out, "name: OpenLibrary")
	assert.Contains(t, out, "name: HelloWorld")

	out, _, err = run(c, "", "list", "-f", "toml")
	require.NoError(t, err)
	assert.Contains(t, out, "[[tools]]")
	assert.Contains(t, out, `name = "HelloWorld"`)

	out, _, err = run(c, "", "list", "--functions", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, `"type": "function"`)
	assert.Contains(t, out, `"strict": true`)
	assert.Contains(t, out, `"name": "OpenLibrary"`)

	_, _, err = run(c, "", "list", "--format", "xml")
	assert.EqualError(t, err, "unsupported format: xml")

	_, _, err = run(c, "", "list", "--config", "testdata/non-existent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func Test_Describe(t *testing.T) {
	clearEnv(t)
	c := newTestCLI()

	out, _, err := run(c, "", "describe", "helloworld")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "HelloWorld"`)
	assert.Contains(t, out, `"parameters": {`)
	assert.Contains(t, out, `"identifier": {`)

	out, _, err = run(c, "", "describe", "OpenLibrary", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: OpenLibrary")
	assert.Contains(t, out, "publisher:")

	_, _, err = run(c, "", "describe", "Unknown")
	assert.EqualError(t, err, "tool Unknown not found")

	_, _, err = run(c, "", "describe")
	require.Error(t, err)
}

func Test_Call(t *testing.T) {
	clearEnv(t)
	c := newTestCLI()

	out, _, err := run(c, "", "call", "HelloWorld", `{"identifier":"Bee"}`)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Bee\n", out)

	out, _, err = run(c, "{\"identifier\":\"stdin\"}\n", "call", "HelloWorld", "-")
	require.NoError(t, err)
	assert.Equal(t, "Hello, stdin\n", out)

	file := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"identifier":"file"}`), 0o600))
	out, _, err = run(c, "", "call", "HelloWorld", "--input-file", file)
	require.NoError(t, err)
	assert.Equal(t, "Hello, file\n", out)

	out, errOut, err := run(c, "", "call", "HelloWorld", `{"identifier":"Bee"}`, "--stats")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Bee\n", out)
	assert.Contains(t, errOut, "HelloWorld *** Tool Start ***")
	assert.Contains(t, errOut, "Tool calls: 1, Succeeded: 1, Failed: 0, Not Found: 0")

	_, errOut, err = run(c, "", "call", "HelloWorld", "--verbose")
	require.Error(t, err)
	assert.True(t, tools.IsKind(err, tools.KindValidation))
	assert.Contains(t, errOut, "Tool Start: HelloWorld")
	assert.Contains(t, errOut, "Input: {}")
	assert.Contains(t, errOut, "Tool Error: HelloWorld: ")
	assert.Contains(t, errOut, "missing properties: 'identifier'")

	_, _, err = run(c, "", "call", "Search", `{}`)
	assert.EqualError(t, err, "tool Search not found, available tools: OpenLibrary, HelloWorld")

	_, _, err = run(c, "", "call", "HelloWorld", "--input-file", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func Test_Call_OpenLibrary(t *testing.T) {
	clearEnv(t)

	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"numFound":1,"docs":[{"title":"Bee Framework","author_name":["Bee"]}]}`))
	}))
	defer srv.Close()

	cfgFile := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("open_library:\n  enabled: true\n  base_url: "+srv.URL+"\n"), 0o600))

	c := newTestCLI()
	out, _, err := run(c, "", "call", "openlibrary", `{"title":"Bee Framework"}`, "--config", cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "title=Bee+Framework", query)
	assert.Contains(t, out, `"title":"Bee Framework"`)
	assert.Contains(t, out, `"author_name":["Bee"]`)
}

func Test_Snapshot(t *testing.T) {
	clearEnv(t)
	c := newTestCLI()

	out, _, err := run(c, "", "snapshot", "save", "--prefix", "agent")
	require.NoError(t, err)
	assert.Equal(t, "{\n\t\"saved\": [\n\t\t\"agent.openlibrary\",\n\t\t\"agent.helloworld\"\n\t]\n}\n", out)

	out, _, err = run(c, "", "snapshot", "list")
	require.NoError(t, err)
	assert.Equal(t, "{\n\t\"snapshots\": [\n\t\t\"agent.helloworld\",\n\t\t\"agent.openlibrary\"\n\t]\n}\n", out)

	out, _, err = run(c, "", "snapshot", "show", "agent.helloworld")
	require.NoError(t, err)
	assert.Equal(t, "{\"version\":1,\"name\":\"HelloWorld\"}\n", out)

	out, _, err = run(c, "", "snapshot", "show", "agent.openlibrary")
	require.NoError(t, err)
	assert.Equal(t, "{\"version\":1,\"name\":\"OpenLibrary\",\"options\":{\"base_url\":\"https://openlibrary.org\"}}\n", out)

	out, _, err = run(c, "", "call", "HelloWorld", `{"identifier":"Bee"}`, "--snapshot", "agent.helloworld")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Bee\n", out)

	_, _, err = run(c, "", "call", "OpenLibrary", `{}`, "--snapshot", "agent.helloworld")
	require.Error(t, err)

	_, _, err = run(c, "", "snapshot", "delete", "agent.helloworld")
	require.NoError(t, err)

	_, _, err = run(c, "", "snapshot", "show", "agent.helloworld")
	assert.ErrorIs(t, err, store.ErrNotFound)

	out, _, err = run(c, "", "snapshot", "list", "--format", "toml")
	require.NoError(t, err)
	assert.Equal(t, "snapshots = [\"agent.openlibrary\"]\n", out)
}
