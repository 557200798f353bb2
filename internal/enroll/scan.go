// Package enroll implements the bulk-enrollment pipeline (spec.md §4.J): a
// directory scan feeding a three-stage producer/consumer graph
// (detect -> create-person -> save-DB) with per-stage worker counts and
// stage-completion accounting.
package enroll

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config configures a single enrollment run.
type Config struct {
	Dir                string
	Extensions         []string // case-insensitive, with leading dot e.g. ".jpg"
	FilenameRegex      *regexp.Regexp
	CaptureGroups      []string // subset of {name,sex,idcard,memo}, in capture-group order
	SizeThresholdBytes int64
	LibraryID          string

	DetectWorkers int
	CreateWorkers int
	CreateBatch   int
	SaveBatch     int

	TestMode bool
}

// ScanResult is the outcome of walking Dir: every accepted file's path,
// plus small samples of accepted/rejected names for operator preview
// (spec.md §4.J "collect up to 10 matching and 10 non-matching samples").
type ScanResult struct {
	TotalFiles int
	Accepted   []string
	Matched    []string // up to 10 accepted filenames
	Unmatched  []string // up to 10 rejected filenames
}

const sampleLimit = 10

// Scan walks Dir non-recursively, accepting a file iff its size exceeds
// cfg.SizeThresholdBytes, its extension (case-insensitive) is in
// cfg.Extensions, and its filename stem matches cfg.FilenameRegex.
func Scan(cfg Config) (*ScanResult, error) {
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", cfg.Dir, err)
	}

	res := &ScanResult{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		res.TotalFiles++
		name := e.Name()

		info, err := e.Info()
		if err != nil {
			continue
		}

		if accepted(cfg, name, info.Size()) {
			res.Accepted = append(res.Accepted, filepath.Join(cfg.Dir, name))
			if len(res.Matched) < sampleLimit {
				res.Matched = append(res.Matched, name)
			}
		} else if len(res.Unmatched) < sampleLimit {
			res.Unmatched = append(res.Unmatched, name)
		}
	}
	return res, nil
}

func accepted(cfg Config, name string, size int64) bool {
	if size <= cfg.SizeThresholdBytes {
		return false
	}
	if !hasAllowedExtension(name, cfg.Extensions) {
		return false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return cfg.FilenameRegex != nil && cfg.FilenameRegex.MatchString(stem)
}

func hasAllowedExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// ParsePersonProps parses a filename stem through cfg.FilenameRegex,
// mapping capture groups to the configured subset of
// {name, sex, idcard, memo} (spec.md §4.J save-DB stage). sex decodes the
// Chinese characters "男"->1, "女"->2, anything else->0.
type PersonProps struct {
	Name   string
	Sex    int
	IDCard string
	Memo   string
}

func ParsePersonProps(cfg Config, filename string) (PersonProps, error) {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	m := cfg.FilenameRegex.FindStringSubmatch(stem)
	if m == nil {
		return PersonProps{}, fmt.Errorf("filename %q does not match enrollment pattern", filename)
	}

	var props PersonProps
	for i, group := range cfg.CaptureGroups {
		if i+1 >= len(m) {
			break
		}
		val := m[i+1]
		switch group {
		case "name":
			props.Name = val
		case "sex":
			props.Sex = decodeSex(val)
		case "idcard":
			props.IDCard = val
		case "memo":
			props.Memo = val
		}
	}
	return props, nil
}

func decodeSex(s string) int {
	switch s {
	case "男":
		return 1
	case "女":
		return 2
	default:
		return 0
	}
}
