package requirement

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
)

// orderJSON is the wire form of an Order.
type orderJSON struct {
	Code      string          `json:"code,omitempty"`
	Category  Category        `json:"category"`
	Text      string          `json:"text,omitempty"`
	UnitValue int             `json:"unit_value"`
	Operator  Operator        `json:"operator"`
	Filter    json.RawMessage `json:"filter,omitempty"`
	Threshold *Threshold      `json:"threshold,omitempty"`
	Children  []*Order        `json:"children,omitempty"`
}

func (o *Order) MarshalJSON() ([]byte, error) {
	v := orderJSON{
		Code:      o.Code,
		Category:  o.Category,
		Text:      o.Text,
		UnitValue: o.UnitValue,
		Operator:  o.Operator,
		Threshold: o.Threshold,
		Children:  o.Children,
	}
	if o.Filter != nil {
		f, err := json.Marshal(o.Filter)
		if err != nil {
			return nil, err
		}
		v.Filter = f
	}
	return json.Marshal(v)
}

func (o *Order) UnmarshalJSON(data []byte) error {
	var v orderJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Order{
		Code:      v.Code,
		Category:  v.Category,
		Text:      v.Text,
		UnitValue: v.UnitValue,
		Operator:  v.Operator,
		Threshold: v.Threshold,
	}
	if len(v.Filter) > 0 {
		f, err := coursefilter.Unmarshal(v.Filter)
		if err != nil {
			return err
		}
		o.Filter = f
	}
	for _, c := range v.Children {
		o.Append(c)
	}
	return nil
}

// Canonical returns the RFC 8785 canonical JSON encoding of the tree.
func Canonical(o *Order) ([]byte, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal requirement tree: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize requirement tree: %w", err)
	}
	return out, nil
}

// Fingerprint hashes the canonical form. Structurally identical trees share
// a fingerprint.
func Fingerprint(o *Order) (string, error) {
	data, err := Canonical(o)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
