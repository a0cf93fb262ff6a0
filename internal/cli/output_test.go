package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestDetail_RendersPairs(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{w: &buf, errW: &buf}

	out.Detail([][2]string{
		{"ID", "c-1"},
		{"STATUS", "open"},
	}, nil)

	got := buf.String()
	if !strings.Contains(got, "ID") || !strings.Contains(got, "c-1") {
		t.Errorf("expected ID pair in output, got %q", got)
	}
	if !strings.Contains(got, "STATUS") || !strings.Contains(got, "open") {
		t.Errorf("expected STATUS pair in output, got %q", got)
	}
}

func TestDetail_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{jsonMode: true, w: &buf, errW: &buf}

	out.Detail([][2]string{{"ID", "c-1"}}, map[string]string{"id": "c-1"})

	got := buf.String()
	if !strings.Contains(got, `"id": "c-1"`) {
		t.Errorf("expected JSON payload, got %q", got)
	}
	if strings.Contains(got, "ID\t") {
		t.Errorf("expected no tabular output in JSON mode, got %q", got)
	}
}

func TestContainerStatus(t *testing.T) {
	tests := []struct {
		name string
		resp ContainerResponse
		want string
	}{
		{"open", ContainerResponse{}, "open"},
		{"validated", ContainerResponse{Validated: true}, "validated"},
		{"archived", ContainerResponse{ArchivedAt: "2025-06-02T09:00:00Z"}, "archived"},
		{"validated wins over archived", ContainerResponse{Validated: true, ArchivedAt: "2025-06-02T09:00:00Z"}, "validated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containerStatus(tt.resp); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
