package enroll

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanAcceptsMatchingFiles(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, size int) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
	}
	write("张三_男_110101.jpg", 2048)
	write("too_small_男_110102.jpg", 10)
	write("badname.jpg", 2048)
	write("张三_男_110103.txt", 2048)

	cfg := Config{
		Dir:                dir,
		Extensions:         []string{".jpg"},
		FilenameRegex:      regexp.MustCompile(`^(.+)_(男|女)_(\d+)$`),
		CaptureGroups:      []string{"name", "sex", "idcard"},
		SizeThresholdBytes: 1024,
	}

	res, err := Scan(cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, res.TotalFiles)
	require.Len(t, res.Accepted, 1)
	assert.Contains(t, res.Accepted[0], "张三_男_110101.jpg")
	assert.Contains(t, res.Unmatched, "too_small_男_110102.jpg")
	assert.Contains(t, res.Unmatched, "badname.jpg")
	assert.Contains(t, res.Unmatched, "张三_男_110103.txt")
}

func TestScanSampleLimitedTo10(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 15; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad"+string(rune('a'+i))+".jpg"), []byte("short"), 0o644))
	}

	cfg := Config{
		Dir: dir, Extensions: []string{".jpg"},
		FilenameRegex:      regexp.MustCompile(`^nomatch$`),
		SizeThresholdBytes: 0,
	}

	res, err := Scan(cfg)
	require.NoError(t, err)
	assert.Equal(t, 15, res.TotalFiles)
	assert.Len(t, res.Unmatched, sampleLimit)
}
