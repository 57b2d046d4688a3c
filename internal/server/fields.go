package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// phoneField accepts a phone number sent either as a JSON string or as a
// JSON number.
type phoneField string

func (p *phoneField) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = phoneField(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = phoneField(n.String())
	return nil
}

// amountField accepts an integer amount sent as a JSON number or a numeric
// string. A value that is present but not an integer leaves valid false
// instead of failing the whole body.
type amountField struct {
	value int64
	set   bool
	valid bool
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	a.set = true
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	a.value, a.valid = n, true
	return nil
}
