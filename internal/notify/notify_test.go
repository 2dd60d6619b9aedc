package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/CaseTrack/internal/store"
)

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (555) 123-4567", "15551234567", false},
		{"8613800138000", "8613800138000", false},
		{"", "", true},
		{"12-34", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizePhone(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CanonicalizePhone(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	p := Payload{
		Language: "en",
		Vars: map[string]string{
			VarCaseNumber:     "MSC2490000001",
			VarStageName:      "Biometrics Appointment",
			VarNextStageName:  "Employment Authorization Document (EAD)",
			VarExpectedDate:   "2024-06-01",
			VarCompletionDate: "2025-01-01",
		},
	}
	body, err := Render(store.OutboxKindStageCompleted, p)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, want := range []string{"MSC2490000001", "\"Biometrics Appointment\"", "(EAD)", "2024-06-01", "2025-01-01"} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}

	p.Language = "zh"
	body, err = Render(store.OutboxKindStageCompleted, p)
	if err != nil {
		t.Fatalf("Render(zh) failed: %v", err)
	}
	if !strings.Contains(body, "已完成") {
		t.Errorf("expected Chinese template, got %q", body)
	}

	// Unknown languages use English.
	p.Language = "fr"
	body, _ = Render(store.OutboxKindStageCompleted, p)
	if !strings.Contains(body, "is complete") {
		t.Errorf("expected English fallback, got %q", body)
	}
}

func TestRender_TemplateOverrideAndUnknownKind(t *testing.T) {
	body, err := Render(store.OutboxKindReminder, Payload{
		Template: "Hi {{{title}}}",
		Vars:     map[string]string{VarTitle: "<Interview>"},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if body != "Hi <Interview>" {
		t.Errorf("got %q, want unescaped override", body)
	}

	if _, err := Render("bogus", Payload{}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := Payload{Phone: "+15551234567", Language: "zh", Vars: map[string]string{VarTitle: "t"}}
	s, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := DecodePayload(s)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if out.Phone != in.Phone || out.Language != in.Language || out.Vars[VarTitle] != "t" {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if _, err := DecodePayload("{"); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestOutboxSendFunc(t *testing.T) {
	mock := NewMockSender()
	send := NewOutboxSendFunc(mock)

	payload, _ := Payload{
		Phone:    "+1 555 123 4567",
		Language: "en",
		Vars:     map[string]string{VarTitle: "Interview", VarMessage: "Prepare your documents"},
	}.Encode()
	err := send(context.Background(), store.OutboxMessage{ID: "m1", CaseID: "user1", Kind: store.OutboxKindReminder, PayloadJSON: payload})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].To != "15551234567" {
		t.Errorf("expected canonical recipient, got %q", sent[0].To)
	}
	if sent[0].Body != "CaseTrack reminder - Interview: Prepare your documents" {
		t.Errorf("unexpected body %q", sent[0].Body)
	}
}

func TestOutboxSendFunc_PermanentFailures(t *testing.T) {
	send := NewOutboxSendFunc(NewMockSender())
	noPhone, _ := Payload{Language: "en"}.Encode()

	cases := map[string]store.OutboxMessage{
		"malformed": {Kind: store.OutboxKindReminder, PayloadJSON: "not json"},
		"no phone":  {Kind: store.OutboxKindReminder, PayloadJSON: noPhone},
	}
	for name, msg := range cases {
		if err := send(context.Background(), msg); !errors.Is(err, store.ErrPermanent) {
			t.Errorf("%s: expected ErrPermanent, got %v", name, err)
		}
	}
}

func TestOutboxSendFunc_TransportErrorIsRetryable(t *testing.T) {
	mock := NewMockSender()
	mock.Err = errors.New("network down")
	send := NewOutboxSendFunc(mock)
	payload, _ := Payload{Phone: "15551234567", Vars: map[string]string{}}.Encode()

	err := send(context.Background(), store.OutboxMessage{Kind: store.OutboxKindReminder, PayloadJSON: payload})
	if err == nil || errors.Is(err, store.ErrPermanent) {
		t.Errorf("expected retryable error, got %v", err)
	}
}

func TestNewTwilioSender_RequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioSender(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioSender(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}

	t.Setenv("TWILIO_FROM_NUMBER", "+15550000000")
	s, err := NewTwilioSender(WithAccountSID("AC123"), WithAuthToken("tok"), WithTwilioWhatsApp())
	if err != nil {
		t.Fatalf("NewTwilioSender failed: %v", err)
	}
	if got := s.address("+1555"); got != "whatsapp:+1555" {
		t.Errorf("address = %q", got)
	}
}
