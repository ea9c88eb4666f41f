package manifest

import (
	"hash/crc32"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CompanionSuffix is appended to a bundle name to locate its companion file.
const CompanionSuffix = ".manifest"

var crcLine = regexp.MustCompile(`(?m)^\s*CRC:\s*(\d+)\s*$`)

// ParseCRC extracts the CRC change token from a companion manifest.
//
// Companion files are YAML documents with a top-level "CRC" key. Files that
// are not valid YAML (some packagers emit custom tags) are scanned for the
// first "CRC: <digits>" line instead.
func ParseCRC(text string) (uint32, bool) {
	var doc struct {
		CRC *uint32 `yaml:"CRC"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err == nil && doc.CRC != nil {
		return *doc.CRC, true
	}

	match := crcLine.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	crc, err := strconv.ParseUint(match[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(crc), true
}

// Companion is the document written next to a bundle by FormatCompanion.
type Companion struct {
	ManifestFileVersion int    `yaml:"ManifestFileVersion"`
	CRC                 uint32 `yaml:"CRC"`
}

// FormatCompanion renders a companion manifest carrying the CRC32 (IEEE)
// of data. ParseCRC reads it back.
func FormatCompanion(data []byte) ([]byte, error) {
	return yaml.Marshal(Companion{CRC: crc32.ChecksumIEEE(data)})
}
