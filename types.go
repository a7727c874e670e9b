package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ResetPolicy controls when a serial counter restarts from its start value.
type ResetPolicy string

const (
	// ResetNone keeps one counter forever, held alive by a renewable lease.
	ResetNone ResetPolicy = "none"

	// ResetDaily starts a new counter every local day.
	ResetDaily ResetPolicy = "daily"

	// ResetMonthly starts a new counter every calendar month.
	ResetMonthly ResetPolicy = "monthly"

	// ResetYearly starts a new counter every calendar year.
	ResetYearly ResetPolicy = "yearly"
)

// DefaultLease is how long a counter with ResetNone survives without writes.
const DefaultLease = 365 * 24 * time.Hour

// ParseResetPolicy parses a policy name. The empty string means ResetNone.
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch p := ResetPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ResetNone, nil
	case ResetNone, ResetDaily, ResetMonthly, ResetYearly:
		return p, nil
	default:
		return "", NewValidationError("resetPolicy", fmt.Sprintf("unknown policy %q", s))
	}
}

// Valid reports whether p is one of the known policies.
func (p ResetPolicy) Valid() bool {
	switch p {
	case ResetNone, ResetDaily, ResetMonthly, ResetYearly:
		return true
	}
	return false
}

// Window returns the time-window suffix of t under this policy.
// ResetNone has no window and returns "".
func (p ResetPolicy) Window(t time.Time) string {
	switch p {
	case ResetDaily:
		return t.Format("20060102")
	case ResetMonthly:
		return t.Format("200601")
	case ResetYearly:
		return t.Format("2006")
	default:
		return ""
	}
}

// ExpiresAt returns when a counter written at t must disappear.
// Windowed policies expire at the start of the next window in t's location.
// ResetNone expires lease after the write; every write renews it.
func (p ResetPolicy) ExpiresAt(t time.Time, lease time.Duration) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch p {
	case ResetDaily:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case ResetMonthly:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case ResetYearly:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
	default:
		if lease <= 0 {
			lease = DefaultLease
		}
		return t.Add(lease)
	}
}

// KeyScope separates production counters from preview counters.
type KeyScope string

const (
	// ScopeRule holds counters owned by a rule.
	ScopeRule KeyScope = "rule"

	// ScopePreview holds the counters used by preview composition.
	// The namespace is shared by every rule.
	ScopePreview KeyScope = "preview"
)

// SequenceKey identifies one counter for one time window.
type SequenceKey struct {
	Scope        KeyScope
	RuleID       string
	SegmentIndex int
	Policy       ResetPolicy
	Window       string
}

// NewSequenceKey builds the key of a rule's serial segment for the window containing now.
func NewSequenceKey(ruleID string, segmentIndex int, policy ResetPolicy, now time.Time) SequenceKey {
	return SequenceKey{
		Scope:        ScopeRule,
		RuleID:       ruleID,
		SegmentIndex: segmentIndex,
		Policy:       policy,
		Window:       policy.Window(now),
	}
}

// NewPreviewKey builds the preview key for a segment position for the window containing now.
func NewPreviewKey(segmentIndex int, policy ResetPolicy, now time.Time) SequenceKey {
	return SequenceKey{
		Scope:        ScopePreview,
		SegmentIndex: segmentIndex,
		Policy:       policy,
		Window:       policy.Window(now),
	}
}

// String renders the key as rule:<ruleID>:<index>:<policy>[:<window>]
// or preview:<index>:<policy>[:<window>].
func (k SequenceKey) String() string {
	var b strings.Builder
	b.WriteString(string(k.Scope))
	b.WriteByte(':')
	if k.Scope != ScopePreview {
		b.WriteString(k.RuleID)
		b.WriteByte(':')
	}
	fmt.Fprintf(&b, "%d:%s", k.SegmentIndex, k.Policy)
	if k.Window != "" {
		b.WriteByte(':')
		b.WriteString(k.Window)
	}
	return b.String()
}

// RulePrefix returns the key prefix shared by every counter of a rule.
func RulePrefix(ruleID string) string {
	return string(ScopeRule) + ":" + ruleID + ":"
}

// ParseSequenceKey parses the output of SequenceKey.String.
// Parsing runs from the right so rule ids may contain colons.
func ParseSequenceKey(s string) (SequenceKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return SequenceKey{}, fmt.Errorf("malformed sequence key %q", s)
	}

	var k SequenceKey
	k.Scope = KeyScope(parts[0])
	rest := parts[1:]

	last := rest[len(rest)-1]
	if p := ResetPolicy(last); p.Valid() {
		k.Policy = p
		rest = rest[:len(rest)-1]
	} else {
		if len(rest) < 3 {
			return SequenceKey{}, fmt.Errorf("malformed sequence key %q", s)
		}
		k.Window = last
		k.Policy = ResetPolicy(rest[len(rest)-2])
		if !k.Policy.Valid() {
			return SequenceKey{}, fmt.Errorf("malformed sequence key %q: unknown policy", s)
		}
		rest = rest[:len(rest)-2]
	}

	if len(rest) == 0 {
		return SequenceKey{}, fmt.Errorf("malformed sequence key %q: missing index", s)
	}
	idx, err := strconv.Atoi(rest[len(rest)-1])
	if err != nil {
		return SequenceKey{}, fmt.Errorf("malformed sequence key %q: %w", s, err)
	}
	k.SegmentIndex = idx
	rest = rest[:len(rest)-1]

	switch k.Scope {
	case ScopeRule:
		if len(rest) == 0 {
			return SequenceKey{}, fmt.Errorf("malformed sequence key %q: missing rule id", s)
		}
		k.RuleID = strings.Join(rest, ":")
	case ScopePreview:
		if len(rest) != 0 {
			return SequenceKey{}, fmt.Errorf("malformed preview key %q", s)
		}
	default:
		return SequenceKey{}, fmt.Errorf("malformed sequence key %q: unknown scope", s)
	}
	return k, nil
}

// Params carries the field values used while composing one code.
type Params map[string]any

// String returns the stringified value of name, or "" when it is absent.
func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy of p. Cloning nil yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// StringMap returns every value stringified.
func (p Params) StringMap() map[string]string {
	out := make(map[string]string, len(p))
	for k := range p {
		out[k] = p.String(k)
	}
	return out
}

// Keys returns the parameter names sorted.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CodeRule is a named, ordered list of segments.
type CodeRule struct {
	ID       string
	Name     string
	Segments []Segment
}

// Symbology names a barcode encoding.
type Symbology string

const (
	SymbologyCode128 Symbology = "CODE128"
	SymbologyQR      Symbology = "QR"
	SymbologyCode39  Symbology = "CODE39"
)

const (
	// DefaultImageWidth is used when a symbology is set without a width.
	DefaultImageWidth = 300

	// DefaultImageHeight is used when a symbology is set without a height.
	DefaultImageHeight = 150
)

// RenderOptions selects whether, and how, an image is rendered for each code.
// An empty Symbology produces codes without images.
type RenderOptions struct {
	Symbology Symbology `json:"symbology,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}

// Validate rejects unknown symbologies and negative sizes.
func (o RenderOptions) Validate() error {
	switch Symbology(strings.ToUpper(string(o.Symbology))) {
	case "", SymbologyCode128, SymbologyQR, SymbologyCode39:
	default:
		return NewValidationError("symbology", fmt.Sprintf("unsupported barcode type %q", o.Symbology))
	}
	if o.Width < 0 || o.Height < 0 {
		return NewValidationError("size", "width and height must not be negative")
	}
	return nil
}

// WithDefaults normalizes the symbology and fills in the default image size.
func (o RenderOptions) WithDefaults() RenderOptions {
	o.Symbology = Symbology(strings.ToUpper(string(o.Symbology)))
	if o.Symbology == "" {
		return o
	}
	if o.Width == 0 {
		o.Width = DefaultImageWidth
	}
	if o.Height == 0 {
		o.Height = DefaultImageHeight
	}
	return o
}

// JobStatus is the lifecycle state of a batch job.
type JobStatus string

const (
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCancelled  JobStatus = "CANCELLED"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Item is one generated code and, when requested, its image.
type Item struct {
	Index int    `json:"index"`
	Code  string `json:"code"`
	Image []byte `json:"image,omitempty"`
}

// ItemError records a failed item. Params holds the stringified input.
type ItemError struct {
	Index  int               `json:"index"`
	Params map[string]string `json:"params,omitempty"`
	Error  string            `json:"error"`
}

// BatchJob is the observable state of an asynchronous batch.
type BatchJob struct {
	TaskID    string        `json:"taskId"`
	RuleID    string        `json:"ruleId"`
	Status    JobStatus     `json:"status"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Progress  float64       `json:"progress"`
	Items     []Item        `json:"items"`
	Errors    []ItemError   `json:"errors"`
	Render    RenderOptions `json:"render"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt,omitempty"`
}

// Clone returns a deep copy of the job.
func (j BatchJob) Clone() BatchJob {
	out := j
	if j.Items != nil {
		out.Items = make([]Item, len(j.Items))
		for i, it := range j.Items {
			out.Items[i] = it
			if it.Image != nil {
				out.Items[i].Image = append([]byte(nil), it.Image...)
			}
		}
	}
	if j.Errors != nil {
		out.Errors = make([]ItemError, len(j.Errors))
		for i, e := range j.Errors {
			out.Errors[i] = e
			if e.Params != nil {
				params := make(map[string]string, len(e.Params))
				for k, v := range e.Params {
					params[k] = v
				}
				out.Errors[i].Params = params
			}
		}
	}
	return out
}

// BatchResult is the outcome of a synchronous batch.
type BatchResult struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Items     []Item        `json:"items"`
	Errors    []ItemError   `json:"errors"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Duration  time.Duration `json:"duration"`
}

// Range is an inclusive block of reserved serial values.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of values in the range.
func (r Range) Len() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Values expands the range.
func (r Range) Values() []int64 {
	out := make([]int64, 0, r.Len())
	for v := r.Start; v <= r.End; v++ {
		out = append(out, v)
	}
	return out
}

// SerialStatus is a best-effort view of one counter.
type SerialStatus struct {
	Key          string
	SegmentIndex int
	Policy       ResetPolicy
	Window       string
	CurrentValue int64
	ExpiresAt    time.Time
	LastUpdate   time.Time
}
