package transfer

import (
	"regexp"
	"strconv"
)

var (
	// A per-file log line, e.g.
	// `2026/10/19 09:30:00 INFO  : receipt_001.jpg: Copied (new)` or
	// `NOTICE: receipt_001.jpg: Skipped copy as --dry-run is set (size 12Ki)`.
	fileLinePattern = regexp.MustCompile(`(?m)^.*\b(?:INFO|NOTICE)\s*: .+: ` +
		`(?:Copied \(|Skipped copy as --dry-run is set)`)

	// The file count in the final stats block, e.g. `Transferred:  3 / 3, 100%`.
	filesStatsPattern = regexp.MustCompile(`(?m)^\s*Transferred:\s+(\d+)\s*/\s*\d+,`)

	// The byte count in the stats block. Its presence without a file count
	// means nothing was transferred.
	bytesStatsPattern = regexp.MustCompile(`(?m)^\s*Transferred:\s+[\d.]+\s*[KMGTPE]?i?B\s*/`)

	nothingPattern = regexp.MustCompile(`There was nothing to transfer`)
)

// CountTransferred extracts the number of transferred files from a copy
// transcript. The boolean is false when the transcript doesn't have a
// recognizable shape, in which case the count is zero.
func CountTransferred(transcript string) (int, bool) {
	if n := len(fileLinePattern.FindAllStringIndex(transcript, -1)); n > 0 {
		return n, true
	}

	// Stats are printed periodically, so the last block is the final one.
	if matches := filesStatsPattern.FindAllStringSubmatch(transcript, -1); len(matches) > 0 {
		n, err := strconv.Atoi(matches[len(matches)-1][1])
		if err == nil {
			return n, true
		}
	}

	if nothingPattern.MatchString(transcript) || bytesStatsPattern.MatchString(transcript) {
		return 0, true
	}
	return 0, false
}
