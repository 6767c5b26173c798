package stringsx

import "testing"

func TestLowerFirst(t *testing.T) {
	testCases := []struct {
		name     string
		s        string
		expected string
	}{
		{
			name:     "Exported identifier",
			s:        "ListNodes",
			expected: "listNodes",
		},
		{
			name:     "Already lowercase",
			s:        "listNodes",
			expected: "listNodes",
		},
		{
			name:     "Single character",
			s:        "G",
			expected: "g",
		},
		{
			name:     "Empty string",
			s:        "",
			expected: "",
		},
		{
			name:     "Multibyte first rune",
			s:        "Ärger",
			expected: "ärger",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LowerFirst(tc.s); got != tc.expected {
				t.Errorf("LowerFirst(%q) = %q, expected %q", tc.s, got, tc.expected)
			}
		})
	}
}

func TestOneOf(t *testing.T) {
	testCases := []struct {
		name     string
		s        string
		ss       []string
		expected bool
	}{
		{
			name:     "Present",
			s:        "get",
			ss:       []string{"get", "put", "delete"},
			expected: true,
		},
		{
			name:     "Absent",
			s:        "head",
			ss:       []string{"get", "put", "delete"},
			expected: false,
		},
		{
			name:     "Empty list",
			s:        "get",
			ss:       nil,
			expected: false,
		},
		{
			name:     "Empty string present",
			s:        "",
			ss:       []string{""},
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OneOf(tc.s, tc.ss...); got != tc.expected {
				t.Errorf("OneOf(%q, %v) = %v, expected %v", tc.s, tc.ss, got, tc.expected)
			}
		})
	}
}
