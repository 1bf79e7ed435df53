package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/soclab/mitigator/cmd/manager/models"
)

// On-disk serialisation rules: lists of primitives are space-separated
// strings (NULL when empty), maps are JSON-encoded, probability
// histories are space-separated decimals and check kinds are stored as
// their integer codes.

func joinStrings(list []string) *string {
	if len(list) == 0 {
		return nil
	}
	s := strings.Join(list, " ")
	return &s
}

func splitStrings(s *string) []string {
	if s == nil || *s == "" {
		return nil
	}
	return strings.Fields(*s)
}

func joinInt64s(list []int64) *string {
	if len(list) == 0 {
		return nil
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = strconv.FormatInt(v, 10)
	}
	s := strings.Join(parts, " ")
	return &s
}

func splitInt64s(s *string) ([]int64, error) {
	fields := splitStrings(s)
	list := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int list element %q: %w", f, err)
		}
		list = append(list, v)
	}
	return list, nil
}

func joinFloats(list []float64) *string {
	if len(list) == 0 {
		return nil
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strings.Join(parts, " ")
	return &s
}

func splitFloats(s *string) ([]float64, error) {
	fields := splitStrings(s)
	list := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float list element %q: %w", f, err)
		}
		list = append(list, v)
	}
	return list, nil
}

func joinChecks(checks []models.CheckKind) *string {
	codes := make([]int64, len(checks))
	for i, c := range checks {
		codes[i] = int64(c)
	}
	return joinInt64s(codes)
}

func splitChecks(s *string) ([]models.CheckKind, error) {
	codes, err := splitInt64s(s)
	if err != nil {
		return nil, err
	}
	checks := make([]models.CheckKind, len(codes))
	for i, c := range codes {
		checks[i] = models.CheckKind(c)
	}
	return checks, nil
}

func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal map: %w", err)
	}
	return string(b), nil
}

func unmarshalMap(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal map: %w", err)
	}
	return m, nil
}

func conditionIDs(conditions []*models.Condition) []int64 {
	ids := make([]int64, len(conditions))
	for i, c := range conditions {
		ids[i] = c.Identifier
	}
	return ids
}
