package signald

import (
	"testing"
)

func TestParseEvent_SourceAsObject(t *testing.T) {
	t.Parallel()

	line := []byte(`{"type":"message","data":{"username":"+15550001111","source":{"number":"+15552223333"},"dataMessage":{"message":"hello","expiresInSeconds":604800}}}`)

	ev, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("ParseEvent() error: %v", err)
	}
	if ev.Type != TypeMessage {
		t.Fatalf("expected type %q, got %q", TypeMessage, ev.Type)
	}
	if ev.Data.Source == nil || ev.Data.Source.Number != "+15552223333" {
		t.Fatalf("expected source number +15552223333, got %+v", ev.Data.Source)
	}
	if ev.Data.DataMessage == nil || ev.Data.DataMessage.Body != "hello" {
		t.Fatalf("expected dataMessage body hello, got %+v", ev.Data.DataMessage)
	}
	if ev.Data.DataMessage.ExpiresInSeconds != 604800 {
		t.Fatalf("expected expiresInSeconds 604800, got %d", ev.Data.DataMessage.ExpiresInSeconds)
	}
}

func TestParseEvent_SourceAsString(t *testing.T) {
	t.Parallel()

	// Older daemon versions send the source as a bare string.
	line := []byte(`{"type":"message","data":{"username":"+15550001111","source":"+15552223333","dataMessage":{"message":"hi"}}}`)

	ev, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("ParseEvent() error: %v", err)
	}
	if ev.Data.Source == nil || ev.Data.Source.Number != "+15552223333" {
		t.Fatalf("expected source number +15552223333, got %+v", ev.Data.Source)
	}
}

func TestParseEvent_Unparseable(t *testing.T) {
	t.Parallel()

	if _, err := ParseEvent([]byte("not json")); err == nil {
		t.Fatalf("expected error for unparseable frame")
	}
}

func TestOutboundFrom_MapsBodyAndAttachments(t *testing.T) {
	t.Parallel()

	ev := Event{
		Type: TypeMessage,
		Data: EventData{
			Username: "+15550001111",
			DataMessage: &DataMessage{
				Body: "look at this",
				Attachments: []Attachment{
					{ContentType: "image/jpeg", StoredFilename: "/var/lib/signald/att1", Width: 640, Height: 480},
					{ContentType: "audio/aac", Filename: "note.m4a", VoiceNote: true},
				},
			},
		},
	}

	out := OutboundFrom(ev)

	if out.Type != TypeSend {
		t.Fatalf("expected type %q, got %q", TypeSend, out.Type)
	}
	if out.Username != "+15550001111" {
		t.Fatalf("expected username +15550001111, got %q", out.Username)
	}
	if out.MessageBody != "look at this" {
		t.Fatalf("expected body %q, got %q", "look at this", out.MessageBody)
	}
	if len(out.Attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(out.Attachments))
	}
	if out.Attachments[0].Filename != "/var/lib/signald/att1" {
		t.Fatalf("expected stored filename mapped to filename, got %q", out.Attachments[0].Filename)
	}
	if out.Attachments[0].Width != 640 || out.Attachments[0].Height != 480 {
		t.Fatalf("expected dimensions preserved, got %+v", out.Attachments[0])
	}
	if !out.Attachments[1].VoiceNote {
		t.Fatalf("expected voice note flag preserved")
	}
}

func TestMostRecentIdentity(t *testing.T) {
	t.Parallel()

	ids := []Identity{
		{Fingerprint: "old", Added: 100, TrustLevel: TrustLevelTrustedVerified},
		{Fingerprint: "newest", Added: 300, TrustLevel: TrustLevelUntrusted},
		{Fingerprint: "middle", Added: 200, TrustLevel: TrustLevelTrustedUnverified},
	}

	id, ok := MostRecentIdentity(ids)
	if !ok {
		t.Fatalf("expected an identity")
	}
	if id.Fingerprint != "newest" {
		t.Fatalf("expected newest fingerprint, got %q", id.Fingerprint)
	}

	// Input order must not change.
	if ids[0].Fingerprint != "old" {
		t.Fatalf("input slice was reordered: %+v", ids)
	}

	if _, ok := MostRecentIdentity(nil); ok {
		t.Fatalf("expected ok=false for empty slice")
	}
}

func TestAttachmentName(t *testing.T) {
	t.Parallel()

	a := Attachment{StoredFilename: "stored", Filename: "plain"}
	if a.Name() != "stored" {
		t.Fatalf("expected stored filename preferred, got %q", a.Name())
	}

	a = Attachment{Filename: "plain"}
	if a.Name() != "plain" {
		t.Fatalf("expected plain filename, got %q", a.Name())
	}
}

func TestMessageOf(t *testing.T) {
	t.Parallel()

	msg := MessageOf("+15550001111", "hi there")
	if msg.Type != TypeSend || msg.Username != "+15550001111" || msg.MessageBody != "hi there" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}
