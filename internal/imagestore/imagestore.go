// Package imagestore persists track/person images to a content-addressed,
// two-level-sharded directory layout and normalizes BMP payloads to JPEG,
// per spec.md §4.C.
package imagestore

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
)

const jpegQuality = 85

// Category distinguishes the three top-level trees the layout shards
// images under.
type Category string

const (
	CategoryFace    Category = "facetrack"
	CategoryVehicle Category = "cartrack"
	CategoryPerson  Category = "person"
)

// ImageType enumerates the suffix tags used in file names.
type ImageType string

const (
	TypeSmall   ImageType = "S"
	TypeLarge   ImageType = "L"
	TypeBG      ImageType = "bg"
	TypeCover   ImageType = "c"
	TypePlate   ImageType = "p"
	TypeBinary  ImageType = "bin"
)

// Store roots all reads/writes under a single base directory and renders
// external URLs through urlPrefix, per spec.md §4.C's "single rule".
type Store struct {
	root      string
	urlPrefix string
}

// New creates a Store rooted at root, synthesizing URLs under urlPrefix.
func New(root, urlPrefix string) *Store {
	return &Store{root: root, urlPrefix: urlPrefix}
}

// shard returns the first 4 characters of id, or id itself when shorter —
// "IDs shorter than 4 characters shard under themselves" (spec.md §4.C).
func shard(id string) string {
	if len(id) <= 4 {
		return id
	}
	return id[:4]
}

// dir returns <root>/<category>/<id[0:4]>/<id>.
func (s *Store) dir(cat Category, id string) string {
	return filepath.Join(s.root, string(cat), shard(id), id)
}

// EnsureDir idempotently creates the track/person directory.
func (s *Store) EnsureDir(cat Category, id string) error {
	return os.MkdirAll(s.dir(cat, id), 0o755)
}

// RemoveTrackDir deletes a track's entire directory tree, the filesystem
// half of disk-pressure reclamation (spec.md §4.I, "filesystem-first,
// DB-second"). Absence is not an error.
func (s *Store) RemoveTrackDir(cat Category, id string) error {
	return os.RemoveAll(s.dir(cat, id))
}

// trackFileName builds "<id>_bg.jpg", "<id>_<n>_S.jpg", "<id>_p.jpg", etc.
func trackFileName(id string, index int, typ ImageType) string {
	switch typ {
	case TypeBG, TypePlate, TypeBinary, TypeCover:
		return fmt.Sprintf("%s_%s.jpg", id, typ)
	default:
		return fmt.Sprintf("%s_%d_%s.jpg", id, index, typ)
	}
}

// personFileName builds "<id>_<faceId>.jpg" or "<id>_c.jpg".
func personFileName(id, faceID string) string {
	return fmt.Sprintf("%s_%s.jpg", id, faceID)
}

// WriteTrackImage writes a single track image (background, detection crop,
// plate, or plate-binary) under cat/id, normalizing BMP payloads to JPEG
// quality 85 first (spec.md §4.C "BMP normalization"). index is ignored for
// bg/plate/plate-binary/cover types.
func (s *Store) WriteTrackImage(cat Category, id string, index int, typ ImageType, payload []byte) error {
	if err := s.EnsureDir(cat, id); err != nil {
		return fmt.Errorf("ensure dir for %s/%s: %w", cat, id, err)
	}
	name := trackFileName(id, index, typ)
	return s.writeNormalized(filepath.Join(s.dir(cat, id), name), payload)
}

// WritePersonImage writes a person's face or cover image under person/id.
func (s *Store) WritePersonImage(id, faceID string, payload []byte) error {
	if err := s.EnsureDir(CategoryPerson, id); err != nil {
		return fmt.Errorf("ensure dir for person/%s: %w", id, err)
	}
	name := personFileName(id, faceID)
	return s.writeNormalized(filepath.Join(s.dir(CategoryPerson, id), name), payload)
}

// RenamePersonFace renames the provisional face-1 image to its true face ID,
// per spec.md §4.J's create-person stage ("rename ..._1.jpg to ..._<face-id>.jpg").
func (s *Store) RenamePersonFace(id, provisionalFaceID, trueFaceID string) error {
	dir := s.dir(CategoryPerson, id)
	oldPath := filepath.Join(dir, personFileName(id, provisionalFaceID))
	newPath := filepath.Join(dir, personFileName(id, trueFaceID))
	if oldPath == newPath {
		return nil
	}
	return os.Rename(oldPath, newPath)
}

// writeNormalized detects BMP magic bytes and re-encodes as JPEG before
// writing; all other payloads are written verbatim (spec.md §4.C, §8
// invariant 7).
func (s *Store) writeNormalized(path string, payload []byte) error {
	out := payload
	if isBMP(payload) {
		normalized, err := normalizeBMP(payload)
		if err != nil {
			return fmt.Errorf("normalize bmp %s: %w", path, err)
		}
		out = normalized
	}
	return os.WriteFile(path, out, 0o644)
}

// isBMP reports whether payload begins with the BMP magic "BM" (0x42 0x4D).
func isBMP(payload []byte) bool {
	return len(payload) >= 2 && payload[0] == 0x42 && payload[1] == 0x4D
}

func normalizeBMP(payload []byte) ([]byte, error) {
	img, err := bmp.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode bmp: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Path resolves the (cat, type, id, subid) coordinate to an on-disk path,
// the inverse of URL synthesis (spec.md §4.C, §8 round-trip property).
func (s *Store) Path(cat Category, typ ImageType, id string, subID int) string {
	if cat == CategoryPerson {
		return filepath.Join(s.dir(cat, id), personFileName(id, faceIDFor(typ, subID)))
	}
	return filepath.Join(s.dir(cat, id), trackFileName(id, subID, typ))
}

// faceIDFor renders subid as a face-ID string for person cover/face lookups.
func faceIDFor(typ ImageType, subID int) string {
	if typ == TypeCover {
		return string(TypeCover)
	}
	return fmt.Sprintf("%d", subID)
}

// URL synthesizes the external URL for an image per the single rule in
// spec.md §4.C: "<prefix>?cat={0|1|2}&type={...}&id=...&subid=...".
func (s *Store) URL(catCode int, typ ImageType, id string, subID int) string {
	return fmt.Sprintf("%s?cat=%d&type=%s&id=%s&subid=%d", s.urlPrefix, catCode, typ, id, subID)
}

// CatCode maps a Category to the numeric code used on the wire. Valid
// (cat,type) combinations per spec.md §6 are (0, s|l|bg), (1, s|c),
// (2, s|p|bg|bin) — matching face (bg/s/l), person (s/cover), and vehicle
// (s/plate/bg/binary) respectively, so 0=face, 1=person, 2=vehicle.
func CatCode(cat Category) int {
	switch cat {
	case CategoryFace:
		return 0
	case CategoryPerson:
		return 1
	case CategoryVehicle:
		return 2
	default:
		return -1
	}
}

// CategoryForCode is the inverse of CatCode, used by the retrieval handler
// to resolve an incoming ?cat= parameter back to a directory tree.
func CategoryForCode(code int) (Category, bool) {
	switch code {
	case 0:
		return CategoryFace, true
	case 1:
		return CategoryPerson, true
	case 2:
		return CategoryVehicle, true
	default:
		return "", false
	}
}

// Resolve maps an incoming (cat, type, id, subid) request to the on-disk
// path the layout describes, validating the (cat, type) combination per
// spec.md §6.
func (s *Store) Resolve(catCode int, typ string, id string, subID int) (string, error) {
	cat, ok := CategoryForCode(catCode)
	if !ok {
		return "", fmt.Errorf("unknown cat code %d", catCode)
	}
	it := ImageType(typ)
	switch typ {
	case "s":
		it = TypeSmall
	case "l":
		it = TypeLarge
	}
	if !validCombination(cat, it) {
		return "", fmt.Errorf("invalid (cat,type) combination: %s/%s", cat, it)
	}
	return s.Path(cat, it, id, subID), nil
}

func validCombination(cat Category, typ ImageType) bool {
	switch cat {
	case CategoryFace:
		return typ == TypeSmall || typ == TypeLarge || typ == TypeBG
	case CategoryPerson:
		return typ == TypeSmall || typ == TypeCover
	case CategoryVehicle:
		return typ == TypeSmall || typ == TypePlate || typ == TypeBG || typ == TypeBinary
	default:
		return false
	}
}
