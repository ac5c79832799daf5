package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

func TestPromptStore_ImplementsInterface(t *testing.T) {
	var _ driven.PromptStore = (*PromptStore)(nil)
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mce", "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptAssess)
	require.NoError(t, err)

	for _, f := range []string{"assess.txt", "extract.txt", "summarise.txt", "README.md"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
}

func TestPromptStore_DefaultPlaceholders(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name      string
		verbs     int
		hasNumber bool
	}{
		{name: driven.PromptAssess, verbs: 4},
		{name: driven.PromptExtract, verbs: 1},
		{name: driven.PromptSummarise, verbs: 2, hasNumber: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := store.Load(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.verbs, strings.Count(prompt, "%s")+strings.Count(prompt, "%d"))
			assert.Equal(t, tt.hasNumber, strings.Contains(prompt, "%d"))
		})
	}
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()
	customContent := "Custom extraction: %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extract.txt"), []byte("\n  "+customContent+"  \n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptExtract)
	require.NoError(t, err)
	assert.Equal(t, customContent, prompt)

	// Pre-existing files are not overwritten by init
	data, err := os.ReadFile(filepath.Join(dir, "extract.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), customContent)
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, _ = store.Load(driven.PromptAssess)
	require.NoError(t, os.Remove(filepath.Join(dir, "assess.txt")))
	store.Reload()

	prompt, err := store.Load(driven.PromptAssess)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptAssess], prompt)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent_prompt")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)

	modified := "Shorter: %d %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarise.txt"), []byte(modified), 0600))

	cached, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, modified, fresh)
	assert.Equal(t, "Shorter: 10 text", fmt.Sprintf(fresh, 10, "text"))
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	const goroutines = 50
	var wg sync.WaitGroup
	results := make([]string, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptAssess)
			assert.NoError(t, err)
			results[i] = prompt
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}
