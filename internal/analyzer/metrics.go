package analyzer

import (
	"errors"
	"strconv"

	"github.com/fidde/segment_decoder/internal/decoder"
	"github.com/fidde/segment_decoder/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonMalformed = "malformed"
	reasonAmbiguous = "ambiguous"
	reasonPivot     = "missing_pivot"
	reasonOther     = "other"
)

var (
	// entriesTotal counts analyzed entries.
	// Labels: source (cli, api, otlp-http, otlp-grpc), status (decoded, failed)
	entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "segdecode",
		Subsystem: "analyzer",
		Name:      "entries_total",
		Help:      "Total display entries analyzed",
	}, []string{"source", "status"})

	// failuresTotal counts failed entries by reason.
	// Labels: reason (malformed, ambiguous, missing_pivot, other)
	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "segdecode",
		Subsystem: "analyzer",
		Name:      "failures_total",
		Help:      "Total entries that could not be decoded",
	}, []string{"reason"})

	// digitsTotal counts decoded output digits.
	// Labels: digit
	digitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "segdecode",
		Subsystem: "analyzer",
		Name:      "output_digits_total",
		Help:      "Total decoded output digits by value",
	}, []string{"digit"})
)

func recordEntry(source string, status models.EntryStatus, reason string) {
	entriesTotal.WithLabelValues(source, string(status)).Inc()
	if status == models.StatusFailed {
		failuresTotal.WithLabelValues(reason).Inc()
	}
}

func recordDigits(digits []decoder.Digit) {
	for _, d := range digits {
		digitsTotal.WithLabelValues(strconv.Itoa(int(d))).Inc()
	}
}

// failureReason maps a decode error onto a bounded label value.
func failureReason(err error) string {
	switch {
	case errors.Is(err, decoder.ErrMissingPivot):
		return reasonPivot
	case errors.Is(err, decoder.ErrAmbiguousClassification):
		return reasonAmbiguous
	default:
		return reasonOther
	}
}
