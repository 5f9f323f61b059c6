// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		envSet bool
		want   string
	}{
		{name: "environment variable set", value: "from-env", envSet: true, want: "from-env"},
		{name: "environment variable not set", want: "default"},
		{name: "environment variable empty string", value: "", envSet: true, want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv("CLIPFETCH_TEST_STRING", tt.value)
			}
			assert.Equal(t, tt.want, ParseString("CLIPFETCH_TEST_STRING", "default"))
		})
	}
}

func TestParseInt(t *testing.T) {
	t.Setenv("CLIPFETCH_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("CLIPFETCH_TEST_INT", 7))

	t.Setenv("CLIPFETCH_TEST_INT", "forty-two")
	assert.Equal(t, 7, ParseInt("CLIPFETCH_TEST_INT", 7), "invalid values fall back to the default")
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true}, {"1", true}, {"YES", true},
		{"false", false}, {"0", false}, {"no", false},
		{"maybe", true}, // invalid -> default
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CLIPFETCH_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, ParseBool("CLIPFETCH_TEST_BOOL", true))
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Setenv("CLIPFETCH_TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("CLIPFETCH_TEST_DURATION", time.Minute))

	t.Setenv("CLIPFETCH_TEST_DURATION", "90")
	assert.Equal(t, time.Minute, ParseDuration("CLIPFETCH_TEST_DURATION", time.Minute))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("CLIPFETCH_TEST_FLOAT", "0.25")
	assert.InDelta(t, 0.25, ParseFloat("CLIPFETCH_TEST_FLOAT", 1), 1e-9)
}

func TestParseStringList(t *testing.T) {
	t.Setenv("CLIPFETCH_TEST_LIST", " a.example , ,b.example,")
	assert.Equal(t, []string{"a.example", "b.example"}, ParseStringList("CLIPFETCH_TEST_LIST", nil))

	assert.Equal(t, []string{"x"}, ParseStringList("CLIPFETCH_TEST_LIST_UNSET", []string{"x"}))
}
