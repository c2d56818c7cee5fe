package contents_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/transport"
	"github.com/TheMichaelB/travelmap/test/testutil"
)

func newClient(t *testing.T, server *testutil.ContentsServer, token string) *contents.Client {
	t.Helper()

	logger := testutil.NewTestLogger()
	httpClient := transport.NewHTTPClient(&config.APIConfig{
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		UserAgent: "travelmap-test",
	}, logger)
	httpClient.SetToken(token)

	return contents.NewClient(httpClient, &config.GitHubConfig{
		Owner:    "alice",
		Repo:     "travel-map",
		Branch:   "main",
		ImageDir: "images",
	}, logger)
}

func setup(t *testing.T) (*testutil.ContentsServer, *contents.Client) {
	t.Helper()
	server := testutil.NewContentsServer("alice", "travel-map", "secret")
	t.Cleanup(server.Close)
	return server, newClient(t, server, "secret")
}

func TestGetFile(t *testing.T) {
	server, client := setup(t)
	sha := server.Store.Put("data/travels.json", []byte(`{"visits":[]}`))

	file, err := client.GetFile(context.Background(), "data/travels.json")
	require.NoError(t, err)
	assert.Equal(t, `{"visits":[]}`, file.Content)
	assert.Equal(t, sha, file.SHA)

	reqs := server.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "main", reqs[0].Ref)
	assert.Equal(t, "token secret", reqs[0].Auth)
	assert.False(t, client.Loading())
	assert.NoError(t, client.LastError())
}

func TestGetFileLongContentIsUnwrapped(t *testing.T) {
	server, client := setup(t)
	long := strings.Repeat("東京 tokyo ", 200)
	server.Store.Put("notes.txt", []byte(long))

	file, err := client.GetFile(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, long, file.Content)
}

func TestGetFileErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		_, client := setup(t)

		_, err := client.GetFile(context.Background(), "missing.json")
		require.Error(t, err)
		assert.True(t, models.IsNotFound(err))
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, models.StatusCode(err))
		assert.Equal(t, err, client.LastError())
	})

	t.Run("unauthorized", func(t *testing.T) {
		server, _ := setup(t)
		client := newClient(t, server, "wrong")

		_, err := client.GetFile(context.Background(), "data/travels.json")
		assert.True(t, models.IsUnauthorized(err))
	})

	t.Run("server error", func(t *testing.T) {
		server, client := setup(t)
		server.FailNext(http.StatusBadGateway)

		_, err := client.GetFile(context.Background(), "data/travels.json")
		assert.Equal(t, models.KindRemote, models.KindOf(err))
		assert.Equal(t, http.StatusBadGateway, models.StatusCode(err))
	})

	t.Run("empty path", func(t *testing.T) {
		_, client := setup(t)

		_, err := client.GetFile(context.Background(), "/")
		assert.ErrorIs(t, err, contents.ErrEmptyPath)
	})
}

func TestGetFileDecodeErrors(t *testing.T) {
	mock := transport.NewMockDoer()
	client := contents.NewClient(mock, &config.GitHubConfig{Owner: "o", Repo: "r", Branch: "main"}, testutil.NewTestLogger())

	mock.AddJSON(http.MethodGet, "/repos/o/r/contents/bad.json", http.StatusOK, map[string]string{
		"type": "file", "encoding": "base64", "content": "%%%not base64%%%", "sha": "x",
	})
	_, err := client.GetFile(context.Background(), "bad.json")
	assert.Equal(t, models.KindDecode, models.KindOf(err))

	mock.AddJSON(http.MethodGet, "/repos/o/r/contents/big.bin", http.StatusOK, map[string]string{
		"type": "file", "encoding": "none", "content": "", "sha": "x",
	})
	_, err = client.GetFile(context.Background(), "big.bin")
	assert.Equal(t, models.KindDecode, models.KindOf(err))

	mock.AddResponse(http.MethodGet, "/repos/o/r/contents/dir", http.StatusOK, []byte(`[{"name":"a"}]`))
	_, err = client.GetFile(context.Background(), "dir")
	assert.Equal(t, models.KindDecode, models.KindOf(err))
}

func TestCreateUpdateDelete(t *testing.T) {
	server, client := setup(t)
	ctx := context.Background()

	created, err := client.CreateFile(ctx, "notes/trip.md", "day one", "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Content.SHA)
	assert.NotEmpty(t, created.Commit.SHA)

	updated, err := client.UpdateFile(ctx, "notes/trip.md", "day two", "", created.Content.SHA)
	require.NoError(t, err)
	assert.NotEqual(t, created.Content.SHA, updated.Content.SHA)
	assert.Equal(t, "day two", server.Content("notes/trip.md"))

	require.NoError(t, client.DeleteFile(ctx, "notes/trip.md", "", updated.Content.SHA))
	assert.Empty(t, server.Content("notes/trip.md"))

	reqs := server.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, contents.DefaultCreateMessage, reqs[0].Message)
	assert.Equal(t, contents.DefaultUpdateMessage, reqs[1].Message)
	assert.Equal(t, contents.DefaultDeleteMessage, reqs[2].Message)
	assert.Equal(t, "main", reqs[0].Branch)
	assert.Empty(t, reqs[0].SHA)
	assert.Equal(t, created.Content.SHA, reqs[1].SHA)
}

func TestWriteConflicts(t *testing.T) {
	server, client := setup(t)
	ctx := context.Background()
	sha := server.Store.Put("data/travels.json", []byte(`{}`))

	_, err := client.CreateFile(ctx, "data/travels.json", `{"x":1}`, "")
	assert.True(t, models.IsConflict(err), "create over existing file: %v", err)

	_, err = client.UpdateFile(ctx, "data/travels.json", `{"x":1}`, "", "stale")
	assert.True(t, models.IsConflict(err))

	err = client.DeleteFile(ctx, "data/travels.json", "", "stale")
	assert.True(t, models.IsConflict(err))

	assert.Equal(t, `{}`, server.Content("data/travels.json"))

	_, err = client.UpdateFile(ctx, "data/travels.json", `{"x":1}`, "", sha)
	assert.NoError(t, err)
}

func TestUTF8RoundTrip(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()
	text := "旅行记录 ✈️ café"

	_, err := client.CreateFile(ctx, "notes/utf8.txt", text, "")
	require.NoError(t, err)

	file, err := client.GetFile(ctx, "notes/utf8.txt")
	require.NoError(t, err)
	assert.Equal(t, text, file.Content)
}

func TestSaveJSONCreatesThenUpdates(t *testing.T) {
	server, client := setup(t)
	ctx := context.Background()

	doc := map[string]interface{}{"visits": []interface{}{}, "name": "北京"}
	_, err := client.SaveJSON(ctx, "data/travels.json", doc, "Update travel data")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"name\": \"北京\",\n  \"visits\": []\n}", server.Content("data/travels.json"))

	doc["name"] = "上海"
	_, err = client.SaveJSON(ctx, "data/travels.json", doc, "Update travel data")
	require.NoError(t, err)

	assert.Equal(t, 2, server.Count(http.MethodPut))
	reqs := server.Requests()
	require.Len(t, reqs, 4)
	assert.Empty(t, reqs[1].SHA, "first save creates")
	last := reqs[3]
	assert.NotEmpty(t, last.SHA)
	assert.Equal(t, "Update travel data", last.Message)

	var loaded map[string]interface{}
	require.NoError(t, client.GetJSON(ctx, "data/travels.json", &loaded))
	assert.Equal(t, "上海", loaded["name"])
}

func TestSaveJSONDoesNotCreateOnOtherErrors(t *testing.T) {
	server, client := setup(t)
	server.FailNext(http.StatusInternalServerError)

	_, err := client.SaveJSON(context.Background(), "data/travels.json", map[string]int{"a": 1}, "")
	require.Error(t, err)
	assert.Equal(t, models.KindRemote, models.KindOf(err))
	assert.Zero(t, server.Count(http.MethodPut))
}

func TestGetJSONDecodeError(t *testing.T) {
	server, client := setup(t)
	server.Store.Put("data/travels.json", []byte(`{not json`))

	var v map[string]interface{}
	err := client.GetJSON(context.Background(), "data/travels.json", &v)
	assert.Equal(t, models.KindDecode, models.KindOf(err))
}

func TestGetJSONKeepsNumbers(t *testing.T) {
	server, client := setup(t)
	server.Store.Put("data/travels.json", []byte(`{"rating": 4.50, "big": 12345678901234567890}`))

	var v map[string]interface{}
	require.NoError(t, client.GetJSON(context.Background(), "data/travels.json", &v))

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rating": 4.50, "big": 12345678901234567890}`, string(out))
	assert.Contains(t, string(out), "12345678901234567890")
}

func TestUploadBinary(t *testing.T) {
	server, client := setup(t)
	ctx := context.Background()
	data := []byte{0xff, 0xd8, 0xff, 0x00, 0x01}

	first, err := client.UploadBinary(ctx, data, "photo.jpg")
	require.NoError(t, err)
	second, err := client.UploadBinary(ctx, data, "photo.jpg")
	require.NoError(t, err)

	assert.Regexp(t, `^images/\d+_photo\.jpg$`, first)
	assert.NotEqual(t, first, second)
	assert.Equal(t, string(data), server.Content(first))

	reqs := server.Requests()
	assert.Equal(t, "Upload image: photo.jpg", reqs[0].Message)
}

func TestUploadBinaryCleansFilename(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()

	// "e" plus a combining acute accent becomes the precomposed form.
	path, err := client.UploadBinary(ctx, []byte("x"), "../../etc/cafe\u0301.png")
	require.NoError(t, err)
	assert.Regexp(t, `^images/\d+_caf\x{00e9}\.png$`, path)

	_, err = client.UploadBinary(ctx, []byte("x"), "")
	assert.Equal(t, models.KindMedia, models.KindOf(err))
}
