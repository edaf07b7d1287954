package keys

import (
	"log"
	"regexp"
	"strings"

	"trackbench/internal/config"
	"trackbench/internal/models"
)

// DefaultDevicePatterns is used when the config lists no device_patterns.
// More specific patterns must come first.
var DefaultDevicePatterns = []config.DevicePattern{
	{Pattern: `fenix\s*5\+?`, Name: "Garmin_Fenix_5x"},
	{Pattern: `fenix\s*3`, Name: "Garmin_Fenix_3"},
	{Pattern: `huawei\s*gt\s*5`, Name: "Huawei_GT5"},
	{Pattern: `gt\s*5`, Name: "Huawei_GT5"},
	{Pattern: `iphone\s*12`, Name: "Iphone_12"},
}

var nonAlnum = regexp.MustCompile(`[^0-9A-Za-z]+`)

// DeviceName maps a GPX path to a canonical device name by testing each
// pattern, case-insensitively, against the file stem. The first match wins.
// Without a match the sanitized stem is returned.
func DeviceName(path string, patterns []config.DevicePattern) string {
	if len(patterns) == 0 {
		patterns = DefaultDevicePatterns
	}
	stem := models.Stem(path)
	for _, p := range patterns {
		if p.Pattern == "" || p.Name == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			log.Printf("Skipping device pattern %q: %v", p.Pattern, err)
			continue
		}
		if re.MatchString(stem) {
			return p.Name
		}
	}
	return sanitize(stem)
}

func sanitize(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(s, "_"), "_")
}
