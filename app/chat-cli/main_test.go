package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yoockh/auxilium/internal/chatclient"
	"github.com/yoockh/auxilium/internal/models"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in, cmd, arg string
	}{
		{"", "", ""},
		{"   ", "", ""},
		{"hello there", "send", "hello there"},
		{"/new", "new", ""},
		{"/SELECT  abc-123 ", "select", "abc-123"},
		{"/history", "history", ""},
	}
	for _, c := range cases {
		cmd, arg := parseCommand(c.in)
		assert.Equal(t, c.cmd, cmd, c.in)
		assert.Equal(t, c.arg, arg, c.in)
	}
}

func TestRenderer_PrintsOnlyNewText(t *testing.T) {
	var out strings.Builder
	r := &renderer{w: &out}
	base := chatclient.NewTranscript(
		chatclient.Entry{Role: models.RoleUser, Content: "hello"},
		chatclient.Entry{Role: models.RoleAssistant},
	)

	// ignored before begin
	r.update(base)
	r.begin()
	for _, s := range []string{"", "Hi", "Hi there", "Hi there!", "Hi there!"} {
		next, err := base.ReplaceLast(s)
		assert.NoError(t, err)
		r.update(next)
	}
	r.end()
	done, _ := base.ReplaceLast("something else entirely")
	r.update(done)

	assert.Equal(t, "Hi there!", out.String())
}

func TestPrintTranscript(t *testing.T) {
	var out strings.Builder
	printTranscript(&out, chatclient.NewTranscript())
	assert.Equal(t, "(no messages)\n", out.String())

	out.Reset()
	printTranscript(&out, chatclient.NewTranscript(
		chatclient.Entry{Role: models.RoleUser, Content: "q"},
		chatclient.Entry{Role: models.RoleAssistant, Content: "a"},
	))
	assert.Equal(t, "you> q\nassistant> a\n", out.String())
}
