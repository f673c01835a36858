package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Intention is the parsed form of the engine entry point's `key:value;...`
// string (spec §6). Unknown keys are ignored; malformed values for known
// keys are rejected with an explicit error (spec §9 design note — the
// source left this a stub).
type Intention struct {
	DeadlineS     float64
	Reliability   float64
	Duty          float64
	Optical       bool
	Backscatter   bool
	RISTiles      int
	UseArgmax     bool

	hasDeadline, hasReliability, hasDuty bool
}

// DefaultIntention returns the values an absent key falls back to.
func DefaultIntention() Intention {
	return Intention{
		DeadlineS:   30.0,
		Reliability: 0.97,
		Duty:        0.1,
		Optical:     true,
		Backscatter: true,
		RISTiles:    0,
		UseArgmax:   false,
	}
}

// ParseIntention parses the `;`-separated `key:value` grammar from spec §6.
func ParseIntention(s string) (Intention, error) {
	in := DefaultIntention()
	s = strings.TrimSpace(s)
	if s == "" {
		return in, nil
	}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return Intention{}, fmt.Errorf("intention: malformed pair %q", pair)
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		switch key {
		case "deadline":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return Intention{}, fmt.Errorf("intention: malformed deadline %q: %w", val, err)
			}
			in.DeadlineS = v
			in.hasDeadline = true
		case "reliability":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil || v < 0 || v > 1 {
				return Intention{}, fmt.Errorf("intention: malformed reliability %q", val)
			}
			in.Reliability = v
			in.hasReliability = true
		case "duty":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil || v < 0 || v > 1 {
				return Intention{}, fmt.Errorf("intention: malformed duty %q", val)
			}
			in.Duty = v
			in.hasDuty = true
		case "optical":
			b, err := parseOnOff(val)
			if err != nil {
				return Intention{}, fmt.Errorf("intention: malformed optical %q", val)
			}
			in.Optical = b
		case "backscatter":
			b, err := parseOnOff(val)
			if err != nil {
				return Intention{}, fmt.Errorf("intention: malformed backscatter %q", val)
			}
			in.Backscatter = b
		case "ris":
			v, err := strconv.Atoi(val)
			if err != nil || v < 0 {
				return Intention{}, fmt.Errorf("intention: malformed ris %q", val)
			}
			in.RISTiles = v
		case "selector":
			switch val {
			case "argmax":
				in.UseArgmax = true
			case "":
				in.UseArgmax = false
			default:
				return Intention{}, fmt.Errorf("intention: malformed selector %q", val)
			}
		default:
			// unknown key: ignored, per spec §9.
		}
	}
	return in, nil
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on|off, got %q", v)
	}
}
