package session

import (
	"testing"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
)

func boolPtr(v bool) *bool { return &v }

func TestClassifySystemMessage(t *testing.T) {
	msg := chat.NewSystemNotice("s2 joined")

	verdict := Classify(msg, "s1")

	if !verdict.IsSystem {
		t.Fatal("expected IsSystem")
	}
	if verdict.IsFromSelf || verdict.IsPublic || verdict.IsWhisperToSelf {
		t.Fatalf("expected all other flags false, got %+v", verdict)
	}
	if !verdict.Renderable {
		t.Fatal("system notices must render")
	}
}

func TestClassifyPublicMessage(t *testing.T) {
	msg := chat.Message{SenderID: "s2", Message: "hello", Timestamp: "2024-03-01T10:00:00Z"}

	verdict := Classify(msg, "s1")

	if !verdict.IsPublic {
		t.Fatal("expected public message")
	}
	if verdict.IsFromSelf {
		t.Fatal("s2 is not self")
	}
	if !verdict.Renderable {
		t.Fatal("public messages must render")
	}
}

func TestClassifyWhisperEncodings(t *testing.T) {
	// The wire format has three equivalent spellings of a whisper to s1.
	encodings := map[string]chat.Message{
		"whisper_to":     {SenderID: "s2", Message: "psst", WhisperTo: "s1"},
		"whisper+target": {SenderID: "s2", Message: "psst", Whisper: boolPtr(true), Target: "s1"},
		"bare target":    {SenderID: "s2", Message: "psst", Target: "s1"},
	}

	for name, msg := range encodings {
		verdict := Classify(msg, "s1")
		if verdict.IsPublic {
			t.Fatalf("%s: expected directed message", name)
		}
		if verdict.Addressee != "s1" {
			t.Fatalf("%s: expected addressee s1, got %q", name, verdict.Addressee)
		}
		if !verdict.IsWhisperToSelf {
			t.Fatalf("%s: expected whisper to self", name)
		}
		if !verdict.Renderable {
			t.Fatalf("%s: whisper to self must render", name)
		}

		other := Classify(msg, "s3")
		if other.IsWhisperToSelf {
			t.Fatalf("%s: s3 is not the addressee", name)
		}
		if other.Renderable {
			t.Fatalf("%s: whisper between others must not render", name)
		}
	}
}

func TestClassifyExplicitWhisperFalseIsPublic(t *testing.T) {
	// An explicit whisper=false contradicts the bare-target heuristic.
	msg := chat.Message{SenderID: "s2", Message: "hi", Whisper: boolPtr(false), Target: "s1"}

	verdict := Classify(msg, "s3")

	if !verdict.IsPublic {
		t.Fatalf("expected public, got %+v", verdict)
	}
}

func TestClassifyWhisperToPrecedesTarget(t *testing.T) {
	msg := chat.Message{SenderID: "s2", Message: "psst", WhisperTo: "s1", Target: "s4"}

	verdict := Classify(msg, "s1")

	if verdict.Addressee != "s1" {
		t.Fatalf("expected whisper_to to win, got addressee %q", verdict.Addressee)
	}
}

func TestClassifyGPTAlwaysRenderable(t *testing.T) {
	msg := chat.Message{
		SenderID:  chat.SenderGPT,
		Message:   "hi",
		Target:    "s2",
		Whisper:   boolPtr(true),
		Timestamp: "2024-03-01T10:00:00Z",
	}

	verdict := Classify(msg, "s1")

	if !verdict.Renderable {
		t.Fatal("gpt replies must render for every recipient")
	}
	if verdict.IsWhisperToSelf {
		t.Fatal("s1 is not the addressee")
	}
	if verdict.Addressee != "s2" {
		t.Fatalf("expected addressee s2, got %q", verdict.Addressee)
	}
}

func TestClassifyIsPure(t *testing.T) {
	msg := chat.Message{SenderID: "s2", Message: "psst", WhisperTo: "s1"}

	first := Classify(msg, "s1")
	second := Classify(msg, "s1")

	if first != second {
		t.Fatalf("expected identical verdicts, got %+v and %+v", first, second)
	}
}

func TestClassifyFromSelf(t *testing.T) {
	msg := chat.Message{SenderID: "s1", Message: "mine", WhisperTo: "s2"}

	verdict := Classify(msg, "s1")

	if !verdict.IsFromSelf {
		t.Fatal("expected IsFromSelf")
	}
	if !verdict.Renderable {
		t.Fatal("own messages must render")
	}
}
