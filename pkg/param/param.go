package param

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pingcap/errors"
)

// Kind enumerates the value variants a procedure parameter can carry. The
// invoker never accepts raw text; every parameter arrives as a tagged Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindDecimal
	KindBool
	KindTime
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Value is a tagged-variant parameter value.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

func Null() Value            { return Value{kind: KindNull} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Decimal(f float64) Value { return Value{kind: KindDecimal, f: f} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Coerce converts the value to a driver argument acceptable for the declared
// SQL type of the target parameter. Incompatible combinations fail explicitly
// instead of being coerced silently.
func (v Value) Coerce(declaredType string) (any, error) {
	declared := strings.ToLower(declaredType)
	if v.kind == KindNull {
		return nil, nil
	}
	switch v.kind {
	case KindInt:
		if isIntType(declared) || isDecimalType(declared) || declared == "bit" || declared == "year" {
			return v.i, nil
		}
	case KindDecimal:
		if isDecimalType(declared) {
			return v.f, nil
		}
	case KindBool:
		if declared == "tinyint" || declared == "bit" || declared == "bool" || declared == "boolean" {
			return v.b, nil
		}
	case KindString:
		if isStringType(declared) || isTimeType(declared) {
			return v.s, nil
		}
	case KindTime:
		if isTimeType(declared) {
			return v.t, nil
		}
	}
	return nil, errors.Errorf("cannot bind %s value to %s parameter", v.kind, declaredType)
}

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindTime:
		return "datetime"
	}
	return "unknown"
}

func isIntType(t string) bool {
	switch t {
	case "int", "integer", "bigint", "mediumint", "smallint", "tinyint":
		return true
	}
	return false
}

func isDecimalType(t string) bool {
	switch t {
	case "decimal", "numeric", "float", "double", "real":
		return true
	}
	return false
}

func isStringType(t string) bool {
	switch t {
	case "char", "varchar", "tinytext", "text", "mediumtext", "longtext",
		"enum", "set", "json",
		"binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
		return true
	}
	return false
}

func isTimeType(t string) bool {
	switch t {
	case "date", "datetime", "timestamp", "time":
		return true
	}
	return false
}

// Param is a named parameter. A Param parsed from a positional source has an
// empty name; a Set must be fully named or fully positional.
type Param struct {
	Name  string
	Value Value
}

// Set is an ordered parameter list for one procedure invocation.
type Set []Param

// Named reports whether every parameter of the set carries a name.
func (s Set) Named() bool {
	for _, p := range s {
		if p.Name == "" {
			return false
		}
	}
	return true
}

// paramJSON is the persisted wire shape, shared with the external case
// registration layer: [{"name":"@p","value":...,"data_type":"int"}].
type paramJSON struct {
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
	DataType string          `json:"data_type"`
}

func (p Param) MarshalJSON() ([]byte, error) {
	out := paramJSON{Name: p.Name, DataType: p.Value.kind.String()}
	var (
		raw []byte
		err error
	)
	switch p.Value.kind {
	case KindNull:
		raw = []byte("null")
		out.DataType = "varchar"
	case KindString:
		raw, err = json.Marshal(p.Value.s)
		out.DataType = "varchar"
	case KindInt:
		raw, err = json.Marshal(p.Value.i)
	case KindDecimal:
		raw, err = json.Marshal(p.Value.f)
	case KindBool:
		raw, err = json.Marshal(p.Value.b)
	case KindTime:
		raw, err = json.Marshal(p.Value.t.Format(datetimeLayout))
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	out.Value = raw
	return json.Marshal(out)
}

func (p *Param) UnmarshalJSON(data []byte) error {
	var in paramJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Trace(err)
	}
	p.Name = in.Name

	if string(in.Value) == "null" || len(in.Value) == 0 {
		p.Value = Null()
		return nil
	}

	declared := strings.ToLower(in.DataType)
	switch {
	case isIntType(declared):
		var i int64
		if err := json.Unmarshal(in.Value, &i); err != nil {
			return errors.Annotatef(err, "parameter %s declared as %s", in.Name, in.DataType)
		}
		p.Value = Int(i)
	case isDecimalType(declared), declared == "money":
		var f float64
		if err := json.Unmarshal(in.Value, &f); err != nil {
			return errors.Annotatef(err, "parameter %s declared as %s", in.Name, in.DataType)
		}
		p.Value = Decimal(f)
	case declared == "bool" || declared == "boolean" || declared == "bit":
		var b bool
		if err := json.Unmarshal(in.Value, &b); err != nil {
			return errors.Annotatef(err, "parameter %s declared as %s", in.Name, in.DataType)
		}
		p.Value = Bool(b)
	case isTimeType(declared) || declared == "datetime2" || declared == "smalldatetime":
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return errors.Annotatef(err, "parameter %s declared as %s", in.Name, in.DataType)
		}
		t, err := parseTimeLiteral(s)
		if err != nil {
			return errors.Annotatef(err, "parameter %s declared as %s", in.Name, in.DataType)
		}
		p.Value = Time(t)
	default:
		// varchar family and unknown declarations keep the textual value, the
		// target procedure's declared type decides at bind time.
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return errors.Annotatef(err, "parameter %s declared as %s", in.Name, in.DataType)
		}
		p.Value = String(s)
	}
	return nil
}

func parseTimeLiteral(s string) (time.Time, error) {
	for _, layout := range []string{datetimeLayout, dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized date/time literal %q", s)
}
