package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildDate, info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
}

func TestString(t *testing.T) {
	s := Info{
		Version:   "1.2.3",
		GitCommit: "abc123",
		BuildDate: "2026-01-01",
		GoVersion: "go1.24",
	}.String()

	assert.Equal(t, "vextel 1.2.3 (commit abc123, built 2026-01-01, go1.24)", s)
}
