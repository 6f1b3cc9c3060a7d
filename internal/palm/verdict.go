package palm

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Verdict is the answer of the "is this a palm?" check.
type Verdict struct {
	IsPalm     bool    `json:"isPalm"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	Error      string  `json:"error,omitempty"`
}

// Policy decides what a validation reports when the upstream model cannot answer.
type Policy string

const (
	PolicyAccept Policy = "accept"
	PolicyReject Policy = "reject"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAccept, PolicyReject:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown validation policy %q", s)
}

var ErrMalformedVerdict = errors.New("malformed verdict")

// ParseVerdict reads a model answer. isPalm must be a JSON boolean.
func ParseVerdict(answer string) (Verdict, error) {
	raw := ExtractJSON(answer)
	if !gjson.Valid(raw) {
		return Verdict{}, fmt.Errorf("%w: not valid JSON", ErrMalformedVerdict)
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return Verdict{}, fmt.Errorf("%w: not an object", ErrMalformedVerdict)
	}
	isPalm := doc.Get("isPalm")
	if isPalm.Type != gjson.True && isPalm.Type != gjson.False {
		return Verdict{}, fmt.Errorf("%w: isPalm is not a boolean", ErrMalformedVerdict)
	}
	return Verdict{
		IsPalm:     isPalm.Bool(),
		Confidence: doc.Get("confidence").Float(),
		Message:    doc.Get("message").String(),
	}, nil
}

// Unparsable is the verdict for an answer that arrived but could not be read.
func (p Policy) Unparsable() Verdict {
	if p == PolicyReject {
		return Verdict{IsPalm: false, Confidence: 50, Message: "The photo could not be verified. Please try another photo."}
	}
	return Verdict{IsPalm: true, Confidence: 50, Message: "The photo could not be verified, but you can continue."}
}

// Unavailable is the verdict for a failed upstream call or a bad request.
func (p Policy) Unavailable(err error) Verdict {
	v := Verdict{IsPalm: true, Confidence: 0, Message: "Validation error - you can continue."}
	if p == PolicyReject {
		v = Verdict{IsPalm: false, Confidence: 0, Message: "Validation is unavailable right now. Please try again later."}
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}
