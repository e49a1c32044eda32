package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden files by default")
	assert.Equal(t, 100*time.Millisecond, opts.SettleDelay, "Default settle delay should be 100ms")
	assert.Contains(t, opts.IgnorePatterns, ".DS_Store", "Should ignore .DS_Store by default")
	assert.Contains(t, opts.IgnorePatterns, "*.tmp", "Should ignore *.tmp by default")
	assert.False(t, opts.Recursive)
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden:   false,
		SettleDelay:    200 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
		Extensions:     []string{"JSON", ".Txt"},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden, "Custom ignore hidden should be preserved")
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay, "Custom settle delay should be preserved")
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
	assert.Equal(t, []string{".json", ".txt"}, opts.Extensions, "Extensions are normalized")
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{
		IgnoreHidden:   true,
		IgnorePatterns: []string{"*.tmp", ".DS_Store", "*.bak"},
	}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"hidden file", "/path/.hidden", true},
		{"hidden parent only", "/home/me/.config/inbox/dan.json", false},
		{"DS_Store", "/path/.DS_Store", true},
		{"tmp file", "/path/file.tmp", true},
		{"bak file", "/path/file.bak", true},
		{"normal file", "/path/dan.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}

func TestOptions_AcceptsFile(t *testing.T) {
	all := Options{}
	all.setDefaults()
	assert.True(t, all.acceptsFile("/in/anything.bin"))

	jsonOnly := Options{Extensions: []string{".json"}}
	jsonOnly.setDefaults()
	assert.True(t, jsonOnly.acceptsFile("/in/dan.json"))
	assert.True(t, jsonOnly.acceptsFile("/in/DAN.JSON"))
	assert.False(t, jsonOnly.acceptsFile("/in/dan.json.error"))
	assert.False(t, jsonOnly.acceptsFile("/in/notes"))
}
