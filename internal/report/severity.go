package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity grades how much a difference matters.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarn
	SeveritySuspicious
	SeverityError
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityOK, SeverityWarn, SeveritySuspicious, SeverityError}

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarn:
		return "WARN"
	case SeveritySuspicious:
		return "SUSPICIOUS"
	case SeverityError:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity converts a severity name, case-insensitively. "MATCH" is
// accepted as an alias of OK.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OK", "MATCH":
		return SeverityOK, nil
	case "WARN", "WARNING":
		return SeverityWarn, nil
	case "SUSPICIOUS":
		return SeveritySuspicious, nil
	case "ERROR":
		return SeverityError, nil
	default:
		return SeverityOK, fmt.Errorf("invalid severity %q: must be one of OK, WARN, SUSPICIOUS, ERROR", s)
	}
}

// MarshalJSON writes the severity name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the highest of the given severities, or OK for none.
func MaxSeverity(sevs ...Severity) Severity {
	out := SeverityOK
	for _, s := range sevs {
		if s > out {
			out = s
		}
	}
	return out
}

// Status classifies a single diff or match entry.
type Status string

const (
	StatusAdded      Status = "ADDED"
	StatusRemoved    Status = "REMOVED"
	StatusChanged    Status = "CHANGED"
	StatusWarn       Status = "WARN"
	StatusSuspicious Status = "SUSPICIOUS"
	StatusMatch      Status = "MATCH"
)

// DefaultSeverity is the severity an entry gets unless its comparator says
// otherwise: ADDED, REMOVED, CHANGED and WARN are WARN.
func (s Status) DefaultSeverity() Severity {
	switch s {
	case StatusMatch:
		return SeverityOK
	case StatusSuspicious:
		return SeveritySuspicious
	default:
		return SeverityWarn
	}
}
