package preprocess

import (
	"fmt"
	"strings"
)

// Level selects how much of the stage cascade runs. Each level applies a
// strict superset of the stages of the previous one.
type Level int

const (
	Light Level = iota + 1
	Medium
	Heavy
)

// ParseLevel converts "light", "medium" or "heavy" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light":
		return Light, nil
	case "medium", "":
		return Medium, nil
	case "heavy":
		return Heavy, nil
	default:
		return 0, fmt.Errorf("unknown preprocessing level %q (want light, medium or heavy)", s)
	}
}

func (l Level) String() string {
	switch l {
	case Light:
		return "light"
	case Medium:
		return "medium"
	case Heavy:
		return "heavy"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// stageCount is the length of the stage prefix a level runs.
func (l Level) stageCount() int {
	switch {
	case l <= Light:
		return 1
	case l == Medium:
		return 3
	default:
		return 5
	}
}
