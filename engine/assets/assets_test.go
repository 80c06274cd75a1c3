package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/passgraph/engine/assets/loaders"
	"github.com/stretchr/testify/require"
)

const minimalPass = `
[[attachment]]
name = "color"
format = "b8g8r8a8_unorm"
final_layout = "present_src"

[[subpass]]
name = "main"
color = ["color"]
`

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func spirvBinary() []byte {
	words := []uint32{0x07230203, 0x00010000, 0, 8, 0}
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func newManager(t *testing.T, dir string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir, nil))
	t.Cleanup(am.Shutdown)
	return am
}

// waitEvent returns the first event on am that matches, failing after a timeout.
func waitEvent(t *testing.T, am *AssetManager, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-am.Changes():
			require.True(t, ok, "changes channel closed")
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for a change event")
		}
	}
}

func TestDetermineAssetType(t *testing.T) {
	tests := map[string]loaders.ResourceType{
		"forward.pass.toml":   loaders.ResourceTypePass,
		"a/deferred.pass.hcl": loaders.ResourceTypePass,
		"mesh.wgsl":           loaders.ResourceTypeShader,
		"mesh.frag.spv":       loaders.ResourceTypeShader,
		"passgraph.toml":      loaders.ResourceTypeNone,
		"README.md":           loaders.ResourceTypeNone,
	}
	for path, want := range tests {
		require.Equal(t, want, determineAssetType(path), path)
	}
}

func TestInitializeIndexesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	pass := writeFile(t, filepath.Join(dir, "forward.pass.toml"), []byte(minimalPass))
	shader := writeFile(t, filepath.Join(dir, "shaders", "mesh.spv"), spirvBinary())
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("ignored"))

	am := newManager(t, dir)
	require.Equal(t, []string{pass}, am.Assets(loaders.ResourceTypePass))
	require.Equal(t, []string{shader}, am.Assets(loaders.ResourceTypeShader))
	require.Empty(t, am.Assets(loaders.ResourceTypeNone))
}

func TestLoadPass(t *testing.T) {
	dir := t.TempDir()
	pass := writeFile(t, filepath.Join(dir, "forward.pass.toml"), []byte(minimalPass))
	shader := writeFile(t, filepath.Join(dir, "mesh.spv"), spirvBinary())

	am := newManager(t, dir)
	desc, err := am.LoadPass(pass)
	require.NoError(t, err)
	require.Equal(t, "forward", desc.Name)
	require.Equal(t, []string{"main"}, desc.SubpassNames)

	res, err := am.LoadAsset(shader)
	require.NoError(t, err)
	require.Equal(t, loaders.ResourceTypeShader, res.Type)
	require.NoError(t, am.UnloadAsset(res))

	_, err = am.LoadPass(shader)
	require.ErrorContains(t, err, "not a pass")

	_, err = am.LoadAsset(filepath.Join(dir, "missing.pass.toml"))
	require.ErrorContains(t, err, "asset not found")
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	am := newManager(t, dir)

	path := writeFile(t, filepath.Join(dir, "late.pass.hcl"), []byte("attachment \"c\" {\n}\n"))
	e := waitEvent(t, am, func(e Event) bool { return e.Path == path && !e.Removed })
	require.Equal(t, loaders.ResourceTypePass, e.Type)
	require.Contains(t, am.Assets(loaders.ResourceTypePass), path)

	writeFile(t, filepath.Join(dir, "ignored.txt"), []byte("x"))
	require.NoError(t, os.Remove(path))
	e = waitEvent(t, am, func(e Event) bool { return e.Removed })
	require.Equal(t, path, e.Path)
	require.Empty(t, am.Assets(loaders.ResourceTypePass))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	am := newManager(t, dir)

	sub := filepath.Join(dir, "shaders")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// The directory watch is added asynchronously; keep writing until the
	// watcher reports the file.
	path := filepath.Join(sub, "mesh.wgsl")
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("// shader"), 0o644); err != nil {
			return false
		}
		select {
		case e := <-am.Changes():
			return e.Path == path
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdown(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	am.Shutdown()
	am.Shutdown()
	require.Error(t, am.addRecursive(t.TempDir()))

	running := newManager(t, t.TempDir())
	running.Shutdown()
	require.Eventually(t, func() bool {
		_, ok := <-running.Changes()
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}
