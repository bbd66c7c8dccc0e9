package compare

import "github.com/crocs-muni/scrutiny-viz/internal/report"

// classifyByThresholds grades a section from its totals. Changes are changed
// fields plus records present on one side only.
//
//   - nothing changed: OK
//   - threshold_ratio in [0,1] with a non-empty total: SUSPICIOUS when
//     changes/total reaches the ratio, else WARN
//   - threshold_count set: SUSPICIOUS when changes reach the count, else WARN
//   - otherwise WARN
func classifyByThresholds(stats report.Stats, th Thresholds) report.Severity {
	changes := stats.Changed + stats.OnlyRef + stats.OnlyTest
	if changes == 0 {
		return report.SeverityOK
	}
	total := stats.Compared + stats.OnlyRef + stats.OnlyTest
	if r := th.Ratio; r != nil && *r >= 0 && *r <= 1 && total > 0 {
		if float64(changes)/float64(total) >= *r {
			return report.SeveritySuspicious
		}
		return report.SeverityWarn
	}
	if c := th.Count; c != nil && *c > 0 {
		if changes >= *c {
			return report.SeveritySuspicious
		}
		return report.SeverityWarn
	}
	return report.SeverityWarn
}
