package imagestore

import (
	"bytes"
	"encoding/binary"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// minimalBMP builds a 1x1, 24bpp, uncompressed BMP file byte-for-byte —
// the smallest payload that still begins with the 0x42 0x4D magic and
// decodes cleanly via golang.org/x/image/bmp.
func minimalBMP() []byte {
	var buf bytes.Buffer
	buf.WriteByte('B')
	buf.WriteByte('M')
	binary.Write(&buf, binary.LittleEndian, uint32(58)) // file size
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // reserved
	binary.Write(&buf, binary.LittleEndian, uint32(54)) // pixel data offset

	binary.Write(&buf, binary.LittleEndian, uint32(40)) // info header size
	binary.Write(&buf, binary.LittleEndian, int32(1))   // width
	binary.Write(&buf, binary.LittleEndian, int32(1))   // height
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	binary.Write(&buf, binary.LittleEndian, uint16(24)) // bit count
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // compression
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // image size
	binary.Write(&buf, binary.LittleEndian, int32(0))   // x ppm
	binary.Write(&buf, binary.LittleEndian, int32(0))   // y ppm
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // colors used
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // important colors

	buf.Write([]byte{0x00, 0x00, 0xFF, 0x00}) // one BGR pixel + row padding
	return buf.Bytes()
}

func TestIsBMP(t *testing.T) {
	require.True(t, isBMP(minimalBMP()))
	require.False(t, isBMP([]byte{0xFF, 0xD8, 0xFF}))
	require.False(t, isBMP([]byte{0x42}))
}

func TestWriteTrackImageNormalizesBMP(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "http://example.test/img")

	err := store.WriteTrackImage(CategoryFace, "T0001abcd", 0, TypeBG, minimalBMP())
	require.NoError(t, err)

	path := store.Path(CategoryFace, TypeBG, "T0001abcd", 0)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8, "expected JPEG magic")

	_, err = jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
}

func TestWriteTrackImageVerbatimForNonBMP(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "http://example.test/img")

	payload := []byte{0xFF, 0xD8, 0xFF, 0xAA, 0xBB}
	err := store.WriteTrackImage(CategoryFace, "T2", 1, TypeSmall, payload)
	require.NoError(t, err)

	path := store.Path(CategoryFace, TypeSmall, "T2", 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestShardingShortID(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "http://example.test/img")

	require.NoError(t, store.WriteTrackImage(CategoryFace, "ab", 0, TypeBG, []byte{1, 2, 3}))
	expected := filepath.Join(dir, "facetrack", "ab", "ab", "ab_bg.jpg")
	_, err := os.Stat(expected)
	require.NoError(t, err)
}

func TestResolveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "http://example.test/img")

	require.NoError(t, store.WriteTrackImage(CategoryFace, "T1234xyz", 2, TypeSmall, []byte{9, 9, 9}))
	writtenPath := store.Path(CategoryFace, TypeSmall, "T1234xyz", 2)

	resolved, err := store.Resolve(CatCode(CategoryFace), string(TypeSmall), "T1234xyz", 2)
	require.NoError(t, err)
	require.Equal(t, writtenPath, resolved)
}

func TestResolveRejectsInvalidCombination(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "http://example.test/img")

	_, err := store.Resolve(CatCode(CategoryFace), string(TypePlate), "T1", 0)
	require.Error(t, err)
}
