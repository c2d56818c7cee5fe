package contents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/models"
)

func TestMemoryStoreBlobSHA(t *testing.T) {
	store := contents.NewMemoryStore()

	// Same id git assigns to a blob holding "hello\n".
	sha := store.Put("hello.txt", []byte("hello\n"))
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", sha)
}

func TestMemoryStoreShaPreconditions(t *testing.T) {
	store := contents.NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetFile(ctx, "data/travels.json")
	assert.True(t, models.IsNotFound(err))

	created, err := store.CreateFile(ctx, "data/travels.json", "{}", "")
	require.NoError(t, err)

	_, err = store.CreateFile(ctx, "data/travels.json", "{}", "")
	assert.True(t, models.IsConflict(err))

	_, err = store.UpdateFile(ctx, "data/travels.json", `{"a":1}`, "", "stale")
	assert.True(t, models.IsConflict(err))

	_, err = store.UpdateFile(ctx, "other.json", `{"a":1}`, "", created.Content.SHA)
	assert.True(t, models.IsNotFound(err))

	updated, err := store.UpdateFile(ctx, "data/travels.json", `{"a":1}`, "", created.Content.SHA)
	require.NoError(t, err)

	assert.True(t, models.IsConflict(store.DeleteFile(ctx, "data/travels.json", "", created.Content.SHA)))
	require.NoError(t, store.DeleteFile(ctx, "data/travels.json", "", updated.Content.SHA))
	assert.True(t, models.IsNotFound(store.DeleteFile(ctx, "data/travels.json", "", updated.Content.SHA)))

	assert.Equal(t, 3, store.Commits())
	assert.Empty(t, store.Paths())
}

func TestMemoryStoreConcurrentWritersConflict(t *testing.T) {
	store := contents.NewMemoryStore()
	ctx := context.Background()

	_, err := store.SaveJSON(ctx, "data/travels.json", map[string]int{"v": 1}, "")
	require.NoError(t, err)

	a, err := store.GetFile(ctx, "data/travels.json")
	require.NoError(t, err)
	b, err := store.GetFile(ctx, "data/travels.json")
	require.NoError(t, err)

	_, err = store.UpdateFile(ctx, "data/travels.json", `{"v":2}`, "", a.SHA)
	require.NoError(t, err)

	_, err = store.UpdateFile(ctx, "data/travels.json", `{"v":3}`, "", b.SHA)
	assert.True(t, models.IsConflict(err))

	var v map[string]int
	require.NoError(t, store.GetJSON(ctx, "data/travels.json", &v))
	assert.Equal(t, 2, v["v"])
}

func TestMemoryStoreFailWith(t *testing.T) {
	store := contents.NewMemoryStore()
	failure := &models.Error{Kind: models.KindUnauthorized, Op: "get file", StatusCode: 401}
	store.FailWith(failure)

	_, err := store.GetFile(context.Background(), "data/travels.json")
	assert.True(t, models.IsUnauthorized(err))

	_, err = store.SaveJSON(context.Background(), "data/travels.json", map[string]int{}, "")
	assert.True(t, models.IsUnauthorized(err))

	store.FailWith(nil)
	_, err = store.SaveJSON(context.Background(), "data/travels.json", map[string]int{}, "")
	assert.NoError(t, err)
}

func TestMemoryStoreUploadBinary(t *testing.T) {
	store := contents.NewMemoryStore()
	ctx := context.Background()

	paths := map[string]bool{}
	for i := 0; i < 5; i++ {
		p, err := store.UploadBinary(ctx, []byte{byte(i)}, "sub/dir/img.png")
		require.NoError(t, err)
		assert.Regexp(t, `^images/\d+_img\.png$`, p)
		paths[p] = true
	}
	assert.Len(t, paths, 5)
	assert.Len(t, store.Paths(), 5)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := contents.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetFile(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
