package upload_test

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dsp-reconciler/upload"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"dsp.xlsx", "dsp.xlsx"},
		{"DSP Lanud 2024.xlsx", "DSP_Lanud_2024.xlsx"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ops\dsp.xlsx`, "dsp.xlsx"},
		{".hidden.csv", "hidden.csv"},
		{"dsp(1)#.xlsx", "dsp1.xlsx"},
		{"..", "upload"},
		{"", "upload"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, upload.SanitizeName(tt.in))
		})
	}
}

func TestDir_SaveAndOpen(t *testing.T) {
	d, err := upload.NewDir(filepath.Join(t.TempDir(), "upload_dsp"))
	require.NoError(t, err)

	path, err := d.Save("../DSP 2024.csv", strings.NewReader("1,kepala"))
	require.NoError(t, err)
	assert.Equal(t, d.Root(), filepath.Dir(path))
	assert.True(t, strings.HasSuffix(filepath.Base(path), "_DSP_2024.csv"), path)

	f, err := d.Open(path)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "1,kepala", string(b))
}

func TestDir_SameNameKeepsBothUploads(t *testing.T) {
	d, err := upload.NewDir(t.TempDir())
	require.NoError(t, err)

	// GIVEN: two uploads saved under the same name
	first, err := d.Save("dsp.csv", strings.NewReader("first"))
	require.NoError(t, err)
	second, err := d.Save("dsp.csv", strings.NewReader("second"))
	require.NoError(t, err)

	// THEN: each path still holds its own content
	assert.NotEqual(t, first, second)
	assert.Equal(t, "first", readAll(t, d, first))
	assert.Equal(t, "second", readAll(t, d, second))
}

func readAll(t *testing.T, d *upload.Dir, path string) string {
	t.Helper()
	f, err := d.Open(path)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(b)
}

func TestDir_OpenOutsideRoot(t *testing.T) {
	d, err := upload.NewDir(t.TempDir())
	require.NoError(t, err)

	_, err = d.Open(filepath.Join(d.Root(), "..", "elsewhere.csv"))
	assert.Error(t, err)
}
