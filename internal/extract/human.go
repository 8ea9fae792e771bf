package extract

import (
	"errors"

	"github.com/shelfware/veridict/internal/domain"
)

var ErrInvalidHumanEdit = errors.New("human edit payload requires field and value")

// HumanEditExtractor passes through a single correction from an edit form:
//
//	{"field": "title", "value": "Mistborn: The Final Empire"}
//
// The candidate is always tagged human_override so it outranks all
// automated evidence during resolution.
type HumanEditExtractor struct{}

func (e *HumanEditExtractor) Extract(payload map[string]any) ([]Candidate, error) {
	field, _ := payload["field"].(string)
	value, hasValue := payload["value"]
	if field == "" || !hasValue || value == nil {
		return nil, ErrInvalidHumanEdit
	}

	return []Candidate{{
		Field:  field,
		Value:  value,
		Method: domain.MethodHumanOverride,
	}}, nil
}
