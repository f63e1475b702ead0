package analyzer

import (
	"context"
	"fmt"

	"github.com/fidde/segment_decoder/internal/parser"
	"github.com/fidde/segment_decoder/pkg/models"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

// LogsAnalyzer decodes display entries carried as OTLP log record bodies.
// Each record body is one entry line.
type LogsAnalyzer struct {
	entries *EntryAnalyzer
}

// NewLogsAnalyzer creates a logs analyzer backed by entries.
func NewLogsAnalyzer(entries *EntryAnalyzer) *LogsAnalyzer {
	return &LogsAnalyzer{entries: entries}
}

// Analyze decodes every log record of an OTLP logs export request.
// Records are numbered in request order starting at 1. Records with an empty
// body are skipped and reported in the skipped count.
func (a *LogsAnalyzer) Analyze(ctx context.Context, req *collogspb.ExportLogsServiceRequest, source string) ([]*models.DecodedEntry, int, error) {
	if req == nil {
		return nil, 0, fmt.Errorf("request cannot be nil")
	}

	var (
		lines    []parser.Line
		services []string
		skipped  int
		number   int
	)

	for _, resourceLogs := range req.ResourceLogs {
		resourceAttrs := extractAttributes(resourceLogs.GetResource().GetAttributes())
		serviceName := getServiceName(resourceAttrs)

		for _, scopeLogs := range resourceLogs.ScopeLogs {
			for _, logRecord := range scopeLogs.LogRecords {
				number++
				body := logRecord.GetBody().GetStringValue()
				if body == "" {
					skipped++
					continue
				}

				entry, err := parser.ParseEntry(body)
				if err != nil {
					err = &parser.LineError{Line: number, Text: body, Err: err}
				}
				lines = append(lines, parser.Line{Number: number, Text: body, Entry: entry, Err: err})
				services = append(services, serviceName)
			}
		}
	}

	results, err := a.entries.AnalyzeLines(ctx, lines, source)
	for i, r := range results {
		if r != nil {
			r.Service = services[i]
		}
	}
	return results, skipped, err
}

// extractAttributes converts OTLP attributes to a string map.
func extractAttributes(attrs []*commonpb.KeyValue) map[string]string {
	result := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		result[attr.Key] = attributeValueToString(attr.Value)
	}
	return result
}

// attributeValueToString converts an OTLP attribute value to string.
func attributeValueToString(value *commonpb.AnyValue) string {
	if value == nil {
		return ""
	}

	switch v := value.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_IntValue:
		return fmt.Sprintf("%d", v.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return fmt.Sprintf("%f", v.DoubleValue)
	case *commonpb.AnyValue_BoolValue:
		return fmt.Sprintf("%t", v.BoolValue)
	default:
		return fmt.Sprintf("%v", value)
	}
}
