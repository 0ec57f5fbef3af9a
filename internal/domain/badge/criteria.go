package badge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// Source provides the aggregate facts criteria are evaluated against. The
// infrastructure layer implements it on top of the activity log and the
// streak store; tests implement it in memory.
type Source interface {
	CountByType(ctx context.Context, userID event.UserID, typ event.Type, w event.Window) (int64, error)
	SumCountByTypes(ctx context.Context, userID event.UserID, types []event.Type, w event.Window) (int64, error)
	AverageScore(ctx context.Context, userID event.UserID, typ event.Type, w event.Window) (float64, bool, error)
	HighestScore(ctx context.Context, userID event.UserID, typ event.Type, w event.Window) (float64, bool, error)
	CurrentStreak(ctx context.Context, userID event.UserID) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// WINDOW SPECIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// WindowScope selects how a criteria window is anchored.
type WindowScope string

const (
	// ScopeAllTime evaluates over the whole activity log.
	ScopeAllTime WindowScope = "all_time"
	// ScopeCalendarDay evaluates over the current UTC day.
	ScopeCalendarDay WindowScope = "calendar_day"
	// ScopeRolling evaluates over the last N UTC days including today.
	ScopeRolling WindowScope = "rolling"
)

// WindowSpec declares the time window a criterion is evaluated over.
type WindowSpec struct {
	Scope WindowScope `json:"scope"`
	// Days is required for ScopeRolling, ignored otherwise.
	Days int `json:"days,omitempty"`
}

// Validate checks the window specification.
func (w WindowSpec) Validate() error {
	switch w.Scope {
	case ScopeAllTime, ScopeCalendarDay:
		return nil
	case ScopeRolling:
		if w.Days < 1 {
			return fmt.Errorf("%w: rolling window requires days >= 1", ErrInvalidCriteria)
		}
		return nil
	case "":
		// Omitted scope defaults to all time.
		return nil
	}
	return fmt.Errorf("%w: unknown window scope %q", ErrInvalidCriteria, w.Scope)
}

// Resolve materializes the half-open window relative to now.
func (w WindowSpec) Resolve(now time.Time) event.Window {
	switch w.Scope {
	case ScopeCalendarDay:
		start, end := timeutil.DayWindow(now)
		return event.Window{Start: start, End: end}
	case ScopeRolling:
		start, end := timeutil.RollingWindow(now, w.Days)
		return event.Window{Start: start, End: end}
	}
	return event.AllTime()
}

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// Kind tags the criteria variant.
type Kind string

const (
	KindCumulativeCount Kind = "cumulative_count"
	KindScoreThreshold  Kind = "score_threshold"
	KindStreak          Kind = "streak"
	KindCompositeTotal  Kind = "composite_total"
)

// Criteria is the closed set of badge earning rules. Each variant knows
// how to decide whether it is met and how far along a user is.
type Criteria interface {
	Kind() Kind
	Validate() error

	// AppliesTo reports whether events of type t can change the outcome
	// of this criterion. Evaluation passes triggered by a single event
	// use it to select candidate rules.
	AppliesTo(t event.Type) bool

	// Met reports whether the user satisfies the criterion at now.
	Met(ctx context.Context, src Source, userID event.UserID, now time.Time) (bool, error)

	// Progress returns the current and target values of the criterion,
	// in the criterion's own unit. current may exceed target.
	Progress(ctx context.Context, src Source, userID event.UserID, now time.Time) (current, target float64, err error)
}

// CumulativeCount is met once the user has at least Threshold events of
// the given types inside the window.
type CumulativeCount struct {
	EventTypes []event.Type `json:"event_types"`
	Threshold  int64        `json:"threshold"`
	Window     WindowSpec   `json:"window"`
}

func (c *CumulativeCount) Kind() Kind { return KindCumulativeCount }

func (c *CumulativeCount) Validate() error {
	if len(c.EventTypes) == 0 {
		return fmt.Errorf("%w: cumulative_count requires at least one event type", ErrInvalidCriteria)
	}
	for _, t := range c.EventTypes {
		if !t.IsValid() {
			return fmt.Errorf("%w: cumulative_count has unknown event type %q", ErrInvalidCriteria, t)
		}
	}
	if c.Threshold < 1 {
		return fmt.Errorf("%w: cumulative_count requires threshold >= 1", ErrInvalidCriteria)
	}
	return c.Window.Validate()
}

func (c *CumulativeCount) AppliesTo(t event.Type) bool {
	for _, et := range c.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

func (c *CumulativeCount) Met(ctx context.Context, src Source, userID event.UserID, now time.Time) (bool, error) {
	n, err := c.count(ctx, src, userID, now)
	if err != nil {
		return false, err
	}
	return n >= c.Threshold, nil
}

func (c *CumulativeCount) Progress(ctx context.Context, src Source, userID event.UserID, now time.Time) (float64, float64, error) {
	n, err := c.count(ctx, src, userID, now)
	if err != nil {
		return 0, 0, err
	}
	return float64(n), float64(c.Threshold), nil
}

func (c *CumulativeCount) count(ctx context.Context, src Source, userID event.UserID, now time.Time) (int64, error) {
	w := c.Window.Resolve(now)
	if len(c.EventTypes) == 1 {
		return src.CountByType(ctx, userID, c.EventTypes[0], w)
	}
	return src.SumCountByTypes(ctx, userID, c.EventTypes, w)
}

// ScoreMetric selects which score aggregate a ScoreThreshold inspects.
type ScoreMetric string

const (
	MetricAverage ScoreMetric = "average"
	MetricHighest ScoreMetric = "highest"
)

// ScoreThreshold is met once the chosen score aggregate over the user's
// scored events of EventType reaches Threshold. MinAttempts guards the
// average variant against a single lucky attempt.
type ScoreThreshold struct {
	EventType   event.Type  `json:"event_type"`
	Metric      ScoreMetric `json:"metric"`
	Threshold   float64     `json:"threshold"`
	MinAttempts int64       `json:"min_attempts,omitempty"`
	Window      WindowSpec  `json:"window"`
}

func (c *ScoreThreshold) Kind() Kind { return KindScoreThreshold }

func (c *ScoreThreshold) Validate() error {
	if !c.EventType.IsValid() {
		return fmt.Errorf("%w: score_threshold has unknown event type %q", ErrInvalidCriteria, c.EventType)
	}
	if !c.EventType.IsScored() {
		return fmt.Errorf("%w: score_threshold requires a scored event type, got %q", ErrInvalidCriteria, c.EventType)
	}
	if c.Metric != MetricAverage && c.Metric != MetricHighest {
		return fmt.Errorf("%w: score_threshold has unknown metric %q", ErrInvalidCriteria, c.Metric)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: score_threshold requires threshold > 0", ErrInvalidCriteria)
	}
	if c.MinAttempts < 0 {
		return fmt.Errorf("%w: score_threshold min_attempts cannot be negative", ErrInvalidCriteria)
	}
	return c.Window.Validate()
}

func (c *ScoreThreshold) AppliesTo(t event.Type) bool {
	return c.EventType == t
}

func (c *ScoreThreshold) Met(ctx context.Context, src Source, userID event.UserID, now time.Time) (bool, error) {
	w := c.Window.Resolve(now)

	if c.MinAttempts > 0 {
		n, err := src.CountByType(ctx, userID, c.EventType, w)
		if err != nil {
			return false, err
		}
		if n < c.MinAttempts {
			return false, nil
		}
	}

	val, ok, err := c.metric(ctx, src, userID, w)
	if err != nil || !ok {
		return false, err
	}
	return val >= c.Threshold, nil
}

func (c *ScoreThreshold) Progress(ctx context.Context, src Source, userID event.UserID, now time.Time) (float64, float64, error) {
	w := c.Window.Resolve(now)
	val, ok, err := c.metric(ctx, src, userID, w)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, c.Threshold, nil
	}
	return val, c.Threshold, nil
}

func (c *ScoreThreshold) metric(ctx context.Context, src Source, userID event.UserID, w event.Window) (float64, bool, error) {
	if c.Metric == MetricHighest {
		return src.HighestScore(ctx, userID, c.EventType, w)
	}
	return src.AverageScore(ctx, userID, c.EventType, w)
}

// Streak is met once the user's current daily activity streak reaches
// Days consecutive UTC days.
type Streak struct {
	Days int `json:"days"`
}

func (c *Streak) Kind() Kind { return KindStreak }

func (c *Streak) Validate() error {
	if c.Days < 1 {
		return fmt.Errorf("%w: streak requires days >= 1", ErrInvalidCriteria)
	}
	return nil
}

// AppliesTo always reports true: any qualifying activity advances the
// daily streak.
func (c *Streak) AppliesTo(event.Type) bool { return true }

func (c *Streak) Met(ctx context.Context, src Source, userID event.UserID, _ time.Time) (bool, error) {
	cur, err := src.CurrentStreak(ctx, userID)
	if err != nil {
		return false, err
	}
	return cur >= c.Days, nil
}

func (c *Streak) Progress(ctx context.Context, src Source, userID event.UserID, _ time.Time) (float64, float64, error) {
	cur, err := src.CurrentStreak(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return float64(cur), float64(c.Days), nil
}

// WeightedPart is one component of a CompositeTotal.
type WeightedPart struct {
	EventType event.Type `json:"event_type"`
	Weight    float64    `json:"weight"`
}

// CompositeTotal is met once the weighted sum of event counts across its
// parts reaches Threshold inside the window.
type CompositeTotal struct {
	Parts     []WeightedPart `json:"parts"`
	Threshold float64        `json:"threshold"`
	Window    WindowSpec     `json:"window"`
}

func (c *CompositeTotal) Kind() Kind { return KindCompositeTotal }

func (c *CompositeTotal) Validate() error {
	if len(c.Parts) == 0 {
		return fmt.Errorf("%w: composite_total requires at least one part", ErrInvalidCriteria)
	}
	for _, p := range c.Parts {
		if !p.EventType.IsValid() {
			return fmt.Errorf("%w: composite_total has unknown event type %q", ErrInvalidCriteria, p.EventType)
		}
		if p.Weight <= 0 {
			return fmt.Errorf("%w: composite_total weights must be positive", ErrInvalidCriteria)
		}
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: composite_total requires threshold > 0", ErrInvalidCriteria)
	}
	return c.Window.Validate()
}

func (c *CompositeTotal) AppliesTo(t event.Type) bool {
	for _, p := range c.Parts {
		if p.EventType == t {
			return true
		}
	}
	return false
}

func (c *CompositeTotal) Met(ctx context.Context, src Source, userID event.UserID, now time.Time) (bool, error) {
	total, err := c.total(ctx, src, userID, now)
	if err != nil {
		return false, err
	}
	return total >= c.Threshold, nil
}

func (c *CompositeTotal) Progress(ctx context.Context, src Source, userID event.UserID, now time.Time) (float64, float64, error) {
	total, err := c.total(ctx, src, userID, now)
	if err != nil {
		return 0, 0, err
	}
	return total, c.Threshold, nil
}

func (c *CompositeTotal) total(ctx context.Context, src Source, userID event.UserID, now time.Time) (float64, error) {
	w := c.Window.Resolve(now)
	var total float64
	for _, p := range c.Parts {
		n, err := src.CountByType(ctx, userID, p.EventType, w)
		if err != nil {
			return 0, err
		}
		total += float64(n) * p.Weight
	}
	return total, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SERIALIZATION
// ══════════════════════════════════════════════════════════════════════════════

type criteriaEnvelope struct {
	Kind   Kind            `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// EncodeCriteria serializes a criteria value into its storage envelope.
func EncodeCriteria(c Criteria) ([]byte, error) {
	if c == nil {
		return nil, ErrInvalidCriteria
	}
	params, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(criteriaEnvelope{Kind: c.Kind(), Params: params})
}

// DecodeCriteria parses a storage envelope back into a typed criteria.
// Unknown kinds are rejected so a stale binary never silently awards.
func DecodeCriteria(data []byte) (Criteria, error) {
	var env criteriaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}

	var c Criteria
	switch env.Kind {
	case KindCumulativeCount:
		c = &CumulativeCount{}
	case KindScoreThreshold:
		c = &ScoreThreshold{}
	case KindStreak:
		c = &Streak{}
	case KindCompositeTotal:
		c = &CompositeTotal{}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCriteria, env.Kind)
	}

	if err := json.Unmarshal(env.Params, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
