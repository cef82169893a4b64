package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"draftmark/internal/review"

	"github.com/spf13/cobra"
)

func TestRender_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	m := &review.Markup{ID: "m-1", VersionID: "v1", SequenceNumber: 1, Type: review.MarkupPoint}
	if err := render(cmd, m, markupTable(m)); err != nil {
		t.Fatalf("render() error = %v", err)
	}

	var got review.Markup
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("render() output is not JSON: %v\n%s", err, buf.String())
	}
	if got.ID != "m-1" || got.SequenceNumber != 1 {
		t.Errorf("decoded markup = %+v, want m-1 #1", got)
	}
}

func TestSubjectFromFlags(t *testing.T) {
	tests := []struct {
		kind    string
		want    review.Subject
		wantErr bool
	}{
		{kind: "markup", want: review.MarkupSubject("x")},
		{kind: "checklist", want: review.ChecklistSubject("x")},
		{kind: "page", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().String("kind", "markup", "")
			if err := cmd.Flags().Set("kind", tt.kind); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := subjectFromFlags(cmd, "x")
			if (err != nil) != tt.wantErr {
				t.Fatalf("subjectFromFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("subjectFromFlags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOneLine(t *testing.T) {
	long := "a very long comment that keeps going well past the sixty character column"
	if got := oneLine(long); len(got) != 60 {
		t.Errorf("oneLine() length = %d, want 60", len(got))
	}
	if got := oneLine("two\nlines"); got != "two lines" {
		t.Errorf("oneLine() = %q, want %q", got, "two lines")
	}
}
