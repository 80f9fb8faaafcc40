package signal

import "fmt"

// SignalStrength 是最终置信度的离散分级，用于下游推送优先级。
type SignalStrength int

const (
	StrengthVeryWeak SignalStrength = iota
	StrengthWeak
	StrengthModerate
	StrengthStrong
	StrengthVeryStrong
)

func (s SignalStrength) String() string {
	switch s {
	case StrengthVeryStrong:
		return "very_strong"
	case StrengthStrong:
		return "strong"
	case StrengthModerate:
		return "moderate"
	case StrengthWeak:
		return "weak"
	default:
		return "very_weak"
	}
}

// ParseStrength 将持久化的字符串还原为 SignalStrength。
func ParseStrength(raw string) SignalStrength {
	switch raw {
	case "very_strong":
		return StrengthVeryStrong
	case "strong":
		return StrengthStrong
	case "moderate":
		return StrengthModerate
	case "weak":
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// StrengthTable 是分级阈值表，必须严格递减。
type StrengthTable struct {
	VeryStrong float64
	Strong     float64
	Moderate   float64
	Weak       float64
}

// Validate 检查阈值单调递减且位于 (0,1)，配置加载时调用。
func (t StrengthTable) Validate() error {
	levels := []struct {
		name string
		val  float64
	}{
		{"very_strong", t.VeryStrong},
		{"strong", t.Strong},
		{"moderate", t.Moderate},
		{"weak", t.Weak},
	}
	prev := 1.0
	for _, lv := range levels {
		if lv.val <= 0 || lv.val >= 1 {
			return fmt.Errorf("strength threshold %s=%.3f must be in (0,1)", lv.name, lv.val)
		}
		if lv.val >= prev {
			return fmt.Errorf("strength thresholds must descend: %s=%.3f >= %.3f", lv.name, lv.val, prev)
		}
		prev = lv.val
	}
	return nil
}

// Classify 将最终置信度映射到离散强度。
func (t StrengthTable) Classify(confidence float64) SignalStrength {
	switch {
	case confidence >= t.VeryStrong:
		return StrengthVeryStrong
	case confidence >= t.Strong:
		return StrengthStrong
	case confidence >= t.Moderate:
		return StrengthModerate
	case confidence >= t.Weak:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}
