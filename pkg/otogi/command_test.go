package otogi

import (
	"strings"
	"testing"
	"time"
)

func TestParseCommandCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		text          string
		wantMatched   bool
		wantErrSubstr string
		wantPrefix    CommandPrefix
		wantName      string
		wantMention   string
		wantTail      string
	}{
		{
			name:        "ordinary command with mention keeps raw tail spacing",
			text:        " /Tell@MyBot bob  hello   world",
			wantMatched: true,
			wantPrefix:  CommandPrefixOrdinary,
			wantName:    "tell",
			wantMention: "MyBot",
			wantTail:    "bob  hello   world",
		},
		{
			name:        "system command candidate",
			text:        "~ask\tcarol why",
			wantMatched: true,
			wantPrefix:  CommandPrefixSystem,
			wantName:    "ask",
			wantTail:    "carol why",
		},
		{
			name:        "command without tail",
			text:        "/tell",
			wantMatched: true,
			wantPrefix:  CommandPrefixOrdinary,
			wantName:    "tell",
		},
		{
			name:        "non command text",
			text:        "hello /tell",
			wantMatched: false,
		},
		{
			name:        "blank text",
			text:        "   ",
			wantMatched: false,
		},
		{
			name:          "missing command name",
			text:          "/ bob",
			wantMatched:   true,
			wantErrSubstr: "missing command name",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			candidate, matched, err := ParseCommandCandidate(testCase.text)
			if matched != testCase.wantMatched {
				t.Fatalf("matched = %v, want %v", matched, testCase.wantMatched)
			}
			if testCase.wantErrSubstr != "" {
				if err == nil || !strings.Contains(err.Error(), testCase.wantErrSubstr) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !matched {
				return
			}
			if candidate.Prefix != testCase.wantPrefix {
				t.Fatalf("prefix = %q, want %q", candidate.Prefix, testCase.wantPrefix)
			}
			if candidate.Name != testCase.wantName {
				t.Fatalf("name = %q, want %q", candidate.Name, testCase.wantName)
			}
			if candidate.Mention != testCase.wantMention {
				t.Fatalf("mention = %q, want %q", candidate.Mention, testCase.wantMention)
			}
			if candidate.Tail != testCase.wantTail {
				t.Fatalf("tail = %q, want %q", candidate.Tail, testCase.wantTail)
			}
			if candidate.RawInput != testCase.text {
				t.Fatalf("raw input = %q, want %q", candidate.RawInput, testCase.text)
			}
		})
	}
}

func TestBindCommand(t *testing.T) {
	t.Parallel()

	source := &Event{
		ID:         "evt-1",
		Kind:       EventKindArticleCreated,
		OccurredAt: time.Unix(1, 0).UTC(),
	}
	spec := CommandSpec{Prefix: CommandPrefixOrdinary, Name: "tell"}

	t.Run("binds tail as value", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("/TELL bob: see you")
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		invocation, err := BindCommand(candidate, spec, source)
		if err != nil {
			t.Fatalf("bind failed: %v", err)
		}
		if invocation.Name != "tell" {
			t.Fatalf("name = %q, want tell", invocation.Name)
		}
		if invocation.Value != "bob: see you" {
			t.Fatalf("value = %q, want %q", invocation.Value, "bob: see you")
		}
		if invocation.SourceEventID != "evt-1" || invocation.SourceEventKind != EventKindArticleCreated {
			t.Fatalf("source = %s/%s, want evt-1/%s", invocation.SourceEventID, invocation.SourceEventKind, EventKindArticleCreated)
		}
	})

	t.Run("rejects prefix mismatch", func(t *testing.T) {
		t.Parallel()

		candidate, _, _ := ParseCommandCandidate("~tell bob hi")
		if _, err := BindCommand(candidate, spec, source); err == nil {
			t.Fatal("expected prefix mismatch error")
		}
	})

	t.Run("rejects nil source", func(t *testing.T) {
		t.Parallel()

		candidate, _, _ := ParseCommandCandidate("/tell bob hi")
		if _, err := BindCommand(candidate, spec, nil); err == nil {
			t.Fatal("expected nil source error")
		}
	})
}

func TestCommandSpecValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    CommandSpec
		wantErr bool
	}{
		{name: "valid", spec: CommandSpec{Prefix: CommandPrefixOrdinary, Name: "ask"}},
		{name: "missing name", spec: CommandSpec{Prefix: CommandPrefixOrdinary}, wantErr: true},
		{name: "bad prefix", spec: CommandSpec{Prefix: "!", Name: "ask"}, wantErr: true},
		{name: "whitespace in name", spec: CommandSpec{Prefix: CommandPrefixOrdinary, Name: "a b"}, wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.spec.Validate()
			if testCase.wantErr != (err != nil) {
				t.Fatalf("error = %v, wantErr %v", err, testCase.wantErr)
			}
		})
	}
}
