package codegen

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// SegmentKind names a segment variant.
type SegmentKind string

const (
	KindFixed     SegmentKind = "fixed"
	KindField     SegmentKind = "field"
	KindDate      SegmentKind = "date"
	KindSerial    SegmentKind = "serial"
	KindSeparator SegmentKind = "separator"
)

const (
	// DefaultDateFormat is the date token used when a date segment has none.
	DefaultDateFormat = "YYYY"

	// DefaultSerialLength is the minimum serial width when none is configured.
	DefaultSerialLength = 3

	// DefaultSerialStart is the first value of a new counter when none is configured.
	DefaultSerialStart int64 = 1
)

// Segment is one piece of a code rule. The set of variants is closed:
// Fixed, Field, Date, Serial and Separator.
type Segment interface {
	Kind() SegmentKind
	isSegment()
}

// Fixed emits a literal value.
type Fixed struct {
	Value string
}

// Field emits the stringified caller parameter Name, or "" when absent.
type Field struct {
	Name string
}

// Date emits the current time. Format is one of YYYY, MM, DD, YYYYMM, YYYYMMDD
// or a free-form pattern such as "yyyy-MM-dd HH:mm".
type Date struct {
	Format string
}

// Serial emits the next counter value, zero-padded to Length.
type Serial struct {
	Length int
	Start  int64
	Reset  ResetPolicy
}

// Separator emits its value verbatim.
type Separator struct {
	Value string
}

func (Fixed) Kind() SegmentKind     { return KindFixed }
func (Field) Kind() SegmentKind     { return KindField }
func (Date) Kind() SegmentKind      { return KindDate }
func (Serial) Kind() SegmentKind    { return KindSerial }
func (Separator) Kind() SegmentKind { return KindSeparator }

func (Fixed) isSegment()     {}
func (Field) isSegment()     {}
func (Date) isSegment()      {}
func (Serial) isSegment()    {}
func (Separator) isSegment() {}

// ParseSegments decodes the stored JSON form of a rule's segments:
//
//	[{"type":"fixed","value":"A-"},{"type":"serial","length":3,"startValue":1,"resetType":"daily"}]
//
// Missing attributes take their defaults. Unknown types are rejected with
// ErrUnsupportedSegment.
func ParseSegments(data []byte) ([]Segment, error) {
	if !gjson.ValidBytes(data) {
		return nil, NewValidationError("segments", "invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, NewValidationError("segments", "expected a JSON array")
	}

	var (
		segments []Segment
		parseErr error
		idx      int
	)
	root.ForEach(func(_, value gjson.Result) bool {
		seg, err := parseSegment(value)
		if err != nil {
			parseErr = &SegmentError{Index: idx, Segment: value.Get("type").String(), Err: err}
			return false
		}
		segments = append(segments, seg)
		idx++
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return segments, nil
}

func parseSegment(v gjson.Result) (Segment, error) {
	switch SegmentKind(v.Get("type").String()) {
	case KindFixed:
		return Fixed{Value: v.Get("value").String()}, nil
	case KindField:
		return Field{Name: v.Get("fieldName").String()}, nil
	case KindDate:
		format := v.Get("format").String()
		if format == "" {
			format = DefaultDateFormat
		}
		return Date{Format: format}, nil
	case KindSerial:
		s := Serial{Length: DefaultSerialLength, Start: DefaultSerialStart, Reset: ResetNone}
		if l := v.Get("length"); l.Exists() {
			s.Length = int(l.Int())
		}
		if s.Length < 0 {
			return nil, NewValidationError("length", "must not be negative")
		}
		if sv := v.Get("startValue"); sv.Exists() {
			s.Start = sv.Int()
		}
		policy, err := ParseResetPolicy(v.Get("resetType").String())
		if err != nil {
			return nil, err
		}
		s.Reset = policy
		return s, nil
	case KindSeparator:
		// "separator" is the stored key; "value" is accepted like Fixed.
		text := v.Get("separator")
		if !text.Exists() {
			text = v.Get("value")
		}
		return Separator{Value: text.String()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSegment, v.Get("type").String())
	}
}
