package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

// SlotPolicy decides what happens to a last slot that would run past the window end.
type SlotPolicy string

const (
	// SlotPolicyClamp cuts the final slot at the window end.
	SlotPolicyClamp SlotPolicy = "clamp"
	// SlotPolicyOverflow keeps every slot at full width.
	SlotPolicyOverflow SlotPolicy = "overflow"
)

// ParseSlotPolicy maps a config value to a policy.
func ParseSlotPolicy(raw string) (SlotPolicy, error) {
	switch p := SlotPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case SlotPolicyClamp, SlotPolicyOverflow:
		return p, nil
	case "":
		return SlotPolicyClamp, nil
	default:
		return "", fmt.Errorf("unknown slot policy %q", raw)
	}
}

// Window is the part of the day a timetable covers.
type Window struct {
	Start models.ClockTime
	End   models.ClockTime
}

// Slot is one row of the timetable grid.
type Slot struct {
	Start models.ClockTime `json:"start"`
	End   models.ClockTime `json:"end"`
}

// Interval returns the slot as an interval.
func (s Slot) Interval() Interval { return Interval{Start: s.Start, End: s.End} }

// Label renders the slot as HH:MM-HH:MM.
func (s Slot) Label() string { return s.Interval().String() }

// GenerateSlots splits the window into consecutive slots of the given width.
func GenerateSlots(w Window, width time.Duration, policy SlotPolicy) ([]Slot, error) {
	if width < time.Minute {
		return nil, fmt.Errorf("slot width %s is below one minute", width)
	}
	if w.Start >= w.End {
		return nil, fmt.Errorf("%w: window %s-%s", ErrInvalidInterval, w.Start, w.End)
	}

	count := int((w.End.Sub(w.Start) + width - 1) / width)
	slots := make([]Slot, 0, count)
	for start := w.Start; start < w.End; start = start.Add(width) {
		end := start.Add(width)
		if end > w.End && policy != SlotPolicyOverflow {
			end = w.End
		}
		slots = append(slots, Slot{Start: start, End: end})
	}
	return slots, nil
}
