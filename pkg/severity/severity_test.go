package severity

import "testing"

func TestFromScore(t *testing.T) {
	tests := []struct {
		score    float64
		expected Level
	}{
		{10.0, Critical},
		{9.8, Critical},
		{9.0, Critical},
		{8.9, High},
		{7.2, High},
		{7.0, High},
		{6.5, Medium},
		{5.0, Medium},
		{4.0, Medium},
		{3.1, Low},
		{0.1, Low},
		{0.0, Info},
	}

	for _, tt := range tests {
		if got := FromScore(tt.score); got != tt.expected {
			t.Errorf("FromScore(%v) = %v, want %v", tt.score, got, tt.expected)
		}
	}
}

func TestFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"CRITICAL", Critical},
		{"critical", Critical},
		{"HIGH", High},
		{"ERROR", High},
		{"medium", Medium},
		{"WARNING", Medium},
		{"low", Low},
		{"INFO", Info},
		{"note", Info},
		{"garbage", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		if got := FromString(tt.input); got != tt.expected {
			t.Errorf("FromString(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestAdjustedScore(t *testing.T) {
	tests := []struct {
		name       string
		score      float64
		likelihood float64
		expected   float64
	}{
		{"full likelihood keeps severity", 9.8, 1.0, 9.8},
		{"zero likelihood halves severity", 9.8, 0.0, 4.9},
		{"mid likelihood", 8.0, 0.5, 6.0},
		{"likelihood clamped above", 6.0, 1.5, 6.0},
		{"likelihood clamped below", 6.0, -0.5, 3.0},
		{"score clamped", 12.0, 1.0, 10.0},
		{"zero severity stays zero", 0.0, 1.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdjustedScore(tt.score, tt.likelihood); got != tt.expected {
				t.Errorf("AdjustedScore(%v, %v) = %v, want %v", tt.score, tt.likelihood, got, tt.expected)
			}
		})
	}
}

// The adjusted score must never decrease when either input increases.
func TestAdjustedScore_Monotonic(t *testing.T) {
	scores := []float64{0, 1.5, 3.1, 5.0, 6.5, 7.2, 9.8, 10}
	likelihoods := []float64{0, 0.25, 0.5, 0.75, 1.0}

	for _, l := range likelihoods {
		prev := -1.0
		for _, s := range scores {
			got := AdjustedScore(s, l)
			if got < prev {
				t.Errorf("AdjustedScore not monotonic in severity at (%v, %v): %v < %v", s, l, got, prev)
			}
			prev = got
		}
	}

	for _, s := range scores {
		prev := -1.0
		for _, l := range likelihoods {
			got := AdjustedScore(s, l)
			if got < prev {
				t.Errorf("AdjustedScore not monotonic in likelihood at (%v, %v): %v < %v", s, l, got, prev)
			}
			prev = got
		}
	}
}

func TestLevel_Priority(t *testing.T) {
	levels := AllLevels()
	for i := 0; i < len(levels)-1; i++ {
		if levels[i].Priority() <= levels[i+1].Priority() {
			t.Errorf("Priority of %v should be higher than %v", levels[i], levels[i+1])
		}
	}
}

func TestCompare(t *testing.T) {
	if Compare(Critical, High) != 1 {
		t.Error("Critical should compare higher than High")
	}
	if Compare(Low, Medium) != -1 {
		t.Error("Low should compare lower than Medium")
	}
	if Compare(High, High) != 0 {
		t.Error("Equal levels should compare equal")
	}
}

func TestCountBySeverity(t *testing.T) {
	var c CountBySeverity
	c.Increment(Critical)
	c.Increment(High)
	c.Increment(High)
	c.Increment(Low)

	if c.Total != 4 {
		t.Errorf("Total = %d, want 4", c.Total)
	}
	if c.High != 2 {
		t.Errorf("High = %d, want 2", c.High)
	}
	if got := c.HighestSeverity(); got != Critical {
		t.Errorf("HighestSeverity() = %v, want Critical", got)
	}
}
