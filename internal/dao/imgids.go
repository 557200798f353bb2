package dao

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twmsh/trackfusion/internal/model"
)

// EncodeImgIDs renders detections as "<index>:<quality>,..." ordered by
// index, the row shape spec.md §4.D and §8 round-trip property require.
func EncodeImgIDs(detections []model.Detection) string {
	parts := make([]string, 0, len(detections))
	for _, d := range detections {
		parts = append(parts, fmt.Sprintf("%d:%s", d.Index, strconv.FormatFloat(d.Quality, 'g', -1, 64)))
	}
	return strings.Join(parts, ",")
}

// EncodeVehicleImgIDs renders vehicle detections as "<index>:1.0,...": per
// spec.md §4.D, vehicle tracks have no per-detection quality score, and
// the quality field is always the literal constant 1.0 rather than a
// derived value (vehicle detections never populate model.Detection.Quality).
func EncodeVehicleImgIDs(detections []model.Detection) string {
	parts := make([]string, 0, len(detections))
	for _, d := range detections {
		parts = append(parts, fmt.Sprintf("%d:1.0", d.Index))
	}
	return strings.Join(parts, ",")
}

// EncodeFeatureRefs renders a person's (face-ID, quality) list using the
// same "<key>:<quality>,..." shape as EncodeImgIDs, keyed by face ID
// instead of detection index.
func EncodeFeatureRefs(refs []model.FeatureRef) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, fmt.Sprintf("%s:%s", r.FaceID, strconv.FormatFloat(r.Quality, 'g', -1, 64)))
	}
	return strings.Join(parts, ",")
}

// DecodeImgIDs parses the "<index>:<quality>,..." encoding back into pairs.
func DecodeImgIDs(s string) ([]model.FeatureRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]model.FeatureRef, 0, len(parts))
	for _, p := range parts {
		kv := strings.SplitN(p, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed img_ids entry: %q", p)
		}
		q, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed quality in %q: %w", p, err)
		}
		out = append(out, model.FeatureRef{FaceID: kv[0], Quality: q})
	}
	return out, nil
}
