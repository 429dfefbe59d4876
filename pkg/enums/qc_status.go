package enums

import (
	"fmt"
	"strings"
)

// QCStatus is the inspection outcome of a single QC log line.
type QCStatus string

const (
	QCStatusPending QCStatus = "PENDING"
	QCStatusPassed  QCStatus = "PASSED"
	QCStatusFailed  QCStatus = "FAILED"
)

var validQCStatuses = []QCStatus{
	QCStatusPending,
	QCStatusPassed,
	QCStatusFailed,
}

func (s QCStatus) String() string {
	return string(s)
}

func (s QCStatus) IsValid() bool {
	for _, candidate := range validQCStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsResult reports whether the status is a final inspection result.
func (s QCStatus) IsResult() bool {
	return s == QCStatusPassed || s == QCStatusFailed
}

func ParseQCStatus(value string) (QCStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validQCStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid qc status %q", value)
}
