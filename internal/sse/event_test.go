package sse

import (
	"testing"

	"httpcore/internal/core"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name  string
		event *core.SSEEvent
		want  string
	}{
		{
			name:  "data only",
			event: &core.SSEEvent{Data: "hello"},
			want:  "data: hello\n\n",
		},
		{
			name:  "type and data",
			event: &core.SSEEvent{Type: "update", Data: "hello"},
			want:  "event: update\ndata: hello\n\n",
		},
		{
			name:  "full event",
			event: &core.SSEEvent{ID: "42", Type: "update", Data: "hello", Retry: 3000},
			want:  "event: update\nid: 42\nretry: 3000\ndata: hello\n\n",
		},
		{
			name:  "multiline data",
			event: &core.SSEEvent{Data: "line1\nline2"},
			want:  "data: line1\ndata: line2\n\n",
		},
		{
			name:  "empty data",
			event: &core.SSEEvent{},
			want:  "data: \n\n",
		},
		{
			name:  "trailing newline in data",
			event: &core.SSEEvent{Data: "end\n"},
			want:  "data: end\ndata: \n\n",
		},
		{
			name:  "carriage return passes through",
			event: &core.SSEEvent{Data: "a\rb"},
			want:  "data: a\rb\n\n",
		},
		{
			name:  "zero retry omitted",
			event: &core.SSEEvent{Data: "x", Retry: 0},
			want:  "data: x\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(FormatEvent(tt.event))
			if got != tt.want {
				t.Errorf("FormatEvent() = %q, want %q", got, tt.want)
			}
		})
	}
}
