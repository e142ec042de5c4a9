package validate

import (
	"fmt"
	"regexp"
	"time"
)

// Fields holds the data an OCR backend extracted from a document image.
// Field names mirror the backend's response payload.
type Fields struct {
	IDNumber    string `json:"idNumber"`
	Name        string `json:"name"`
	NameArabic  string `json:"nameArabic"`
	Nationality string `json:"nationality"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	ExpiryDate  string `json:"expiryDate"`
	IssueDate   string `json:"issueDate"`
	CardNumber  string `json:"cardNumber"`
}

// Evaluation is the result of applying the ID rules to extracted fields.
type Evaluation struct {
	Valid      bool
	IsIDCard   bool
	Confidence float64
	Errors     []string
	Warnings   []string
}

// Emirates ID number format: 784-XXXX-XXXXXXX-X, where 784 is the UAE
// country code followed by 4 digits, 7 digits, and a check digit.
var idNumberPattern = regexp.MustCompile(`^784[-\s]?\d{4}[-\s]?\d{7}[-\s]?\d$`)

// Date formats accepted on ID cards.
var dateFormats = []string{
	"2/1/2006",
	"2-1-2006",
	"2006/1/2",
	"2006-1-2",
	"2.1.2006",
}

// Evaluate applies the Emirates-ID validation rules to extracted fields for
// the given side. The front side is scored on a weighted field checklist and
// must clear 0.5; the back side only needs a card or ID number and a 0.3
// floor.
func Evaluate(fields Fields, side string, now time.Time) Evaluation {
	if side == SideBack {
		return evaluateBack(fields)
	}
	return evaluateFront(fields, now)
}

func evaluateFront(fields Fields, now time.Time) Evaluation {
	var ev Evaluation

	if fields.IDNumber != "" {
		if ValidIDNumber(fields.IDNumber) {
			ev.Confidence += 0.4
			ev.IsIDCard = true
		} else {
			ev.Errors = append(ev.Errors, fmt.Sprintf("invalid ID number format: %s", fields.IDNumber))
		}
	} else {
		ev.Warnings = append(ev.Warnings, "ID number not found")
	}

	if fields.Name != "" {
		ev.Confidence += 0.2
	} else {
		ev.Warnings = append(ev.Warnings, "name not found")
	}

	if fields.DateOfBirth != "" {
		if ValidBirthDate(fields.DateOfBirth, now) {
			ev.Confidence += 0.1
		} else {
			ev.Warnings = append(ev.Warnings, fmt.Sprintf("date of birth unclear: %s", fields.DateOfBirth))
		}
	}

	if fields.ExpiryDate != "" {
		if expiry, ok := ParseDate(fields.ExpiryDate); !ok {
			ev.Warnings = append(ev.Warnings, fmt.Sprintf("expiry date unclear: %s", fields.ExpiryDate))
		} else if expiry.Before(now) {
			ev.Errors = append(ev.Errors, fmt.Sprintf("document has expired: %s", fields.ExpiryDate))
		} else {
			ev.Confidence += 0.2
		}
	} else {
		ev.Warnings = append(ev.Warnings, "expiry date not found")
	}

	if fields.Nationality != "" {
		ev.Confidence += 0.05
	}
	if fields.Gender != "" {
		ev.Confidence += 0.05
	}

	if ev.Confidence > 1.0 {
		ev.Confidence = 1.0
	}
	if ev.Confidence < 0.5 {
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("low confidence score: %.2f", ev.Confidence))
	}

	ev.Valid = ev.IsIDCard && len(ev.Errors) == 0 && ev.Confidence >= 0.5
	return ev
}

// evaluateBack scores the back side leniently: a card number or ID number is
// enough to recognize the document.
func evaluateBack(fields Fields) Evaluation {
	var ev Evaluation

	if fields.CardNumber != "" || fields.IDNumber != "" {
		ev.Confidence += 0.3
		ev.IsIDCard = true
	}

	if fields.IDNumber != "" {
		if ValidIDNumber(fields.IDNumber) {
			ev.Confidence += 0.4
		} else {
			ev.Warnings = append(ev.Warnings, fmt.Sprintf("ID number format unclear: %s", fields.IDNumber))
		}
	}

	if ev.Confidence > 1.0 {
		ev.Confidence = 1.0
	}
	if ev.Confidence < 0.3 {
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("low confidence score: %.2f", ev.Confidence))
	}

	ev.Valid = ev.IsIDCard && len(ev.Errors) == 0 && ev.Confidence >= 0.3
	return ev
}

// ValidIDNumber reports whether id matches the Emirates-ID number format.
func ValidIDNumber(id string) bool {
	return idNumberPattern.MatchString(id)
}

// ParseDate parses a card date in any of the accepted formats.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidBirthDate reports whether s parses as a plausible date of birth:
// in the past and after 1900.
func ValidBirthDate(s string, now time.Time) bool {
	dob, ok := ParseDate(s)
	if !ok {
		return false
	}
	if dob.After(now) {
		return false
	}
	return !dob.Before(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC))
}

// Outcome converts an evaluation into a validation outcome, picking the
// first error (or a generic reason) for rejections.
func (ev Evaluation) Outcome() Outcome {
	if ev.Valid {
		return Accepted(ev.Confidence)
	}
	if len(ev.Errors) > 0 {
		return Rejected(ev.Errors[0])
	}
	if !ev.IsIDCard {
		return Rejected("document not recognized as an Emirates ID")
	}
	return Rejected(fmt.Sprintf("confidence too low: %.2f", ev.Confidence))
}
