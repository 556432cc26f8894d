// Package schema defines the metric tag schema: which tags the aggregator
// tracks and the display metadata attached to each published result.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/albscui/aiperf/internal/metrics"
)

// Default returns the built-in tag set for LLM inference benchmarking.
func Default() []metrics.TagInfo {
	return []metrics.TagInfo{
		{Tag: "time_to_first_token", Header: "Time to First Token", ShortHeader: "TTFT", Unit: "ms", DisplayUnit: "ms"},
		{Tag: "inter_token_latency", Header: "Inter Token Latency", ShortHeader: "ITL", Unit: "ms", DisplayUnit: "ms"},
		{Tag: "request_latency", Header: "Request Latency", ShortHeader: "Latency", Unit: "ms", DisplayUnit: "ms"},
		{Tag: "output_token_throughput", Header: "Output Token Throughput", ShortHeader: "Token Tput", Unit: "tokens/sec", DisplayUnit: "tokens/sec"},
		{Tag: "output_sequence_length", Header: "Output Sequence Length", ShortHeader: "OSL", Unit: "tokens", DisplayUnit: "tokens"},
	}
}

type schemaFile struct {
	Metrics []metrics.TagInfo `yaml:"metrics"`
}

// Load reads a tag schema from a YAML file. An empty path yields the
// built-in defaults. Duplicate tags are rejected here so the failure
// surfaces at startup rather than at registry build time.
func Load(path string) ([]metrics.TagInfo, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	if len(file.Metrics) == 0 {
		return nil, fmt.Errorf("schema file %s defines no metrics", path)
	}

	seen := make(map[string]struct{}, len(file.Metrics))
	for i := range file.Metrics {
		info := &file.Metrics[i]
		if info.Tag == "" {
			return nil, fmt.Errorf("schema file %s: metric %d has no tag", path, i)
		}
		if _, ok := seen[info.Tag]; ok {
			return nil, fmt.Errorf("schema file %s: %w: %s", path, metrics.ErrDuplicateTag, info.Tag)
		}
		seen[info.Tag] = struct{}{}
		if info.Header == "" {
			info.Header = info.Tag
		}
		if info.ShortHeader == "" {
			info.ShortHeader = info.Header
		}
		if info.DisplayUnit == "" {
			info.DisplayUnit = info.Unit
		}
	}
	return file.Metrics, nil
}
