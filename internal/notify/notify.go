// Package notify renders case notifications and delivers them over SMS or WhatsApp.
//
// Notifications are never sent inline: the tracking service enqueues a Payload in the store's
// outbox, and the OutboxSender hands claimed messages to the function built by NewOutboxSendFunc.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/BTreeMap/CaseTrack/internal/store"
	"github.com/cbroglie/mustache"
	"github.com/goccy/go-json"
)

// Channel names accepted by NOTIFY_CHANNEL.
const (
	ChannelTwilio   = "twilio"
	ChannelWhatsApp = "whatsapp"
	ChannelLog      = "log"
)

// Template variable names.
const (
	VarCaseNumber     = "case_number"
	VarStageName      = "stage_name"
	VarNextStageName  = "next_stage_name"
	VarExpectedDate   = "expected_date"
	VarCompletionDate = "completion_date"
	VarTitle          = "title"
	VarMessage        = "message"
)

// MinPhoneDigits is the shortest phone number accepted after canonicalization.
const MinPhoneDigits = 6

var nonDigits = regexp.MustCompile(`\D`)

// Sender delivers a rendered message to a phone number.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Payload is the outbox body of a notification.
type Payload struct {
	Phone    string `json:"phone"`
	Language string `json:"language"`
	// Template overrides the default template of the message kind.
	Template string            `json:"template,omitempty"`
	Vars     map[string]string `json:"vars"`
}

// Encode serializes p for OutboxRepo.EnqueueOutboxMessage.
func (p Payload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload parses an outbox payload.
func DecodePayload(payloadJSON string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return p, fmt.Errorf("failed to decode notification payload: %w", err)
	}
	return p, nil
}

var defaultTemplates = map[string]map[string]string{
	store.OutboxKindStageCompleted: {
		"en": "CaseTrack: \"{{{stage_name}}}\" is complete for case {{{case_number}}}. " +
			"Next step: {{{next_stage_name}}}, expected around {{{expected_date}}}. " +
			"Estimated completion: {{{completion_date}}}.",
		"zh": "CaseTrack：案件 {{{case_number}}} 的“{{{stage_name}}}”已完成。" +
			"下一步：{{{next_stage_name}}}，预计在 {{{expected_date}}} 左右。" +
			"预计完成日期：{{{completion_date}}}。",
	},
	store.OutboxKindReminder: {
		"en": "CaseTrack reminder - {{{title}}}: {{{message}}}",
		"zh": "CaseTrack 提醒 - {{{title}}}：{{{message}}}",
	},
}

// Render produces the message body for a notification of kind.
func Render(kind string, p Payload) (string, error) {
	tmpl := p.Template
	if tmpl == "" {
		byLang, ok := defaultTemplates[kind]
		if !ok {
			return "", fmt.Errorf("no template for notification kind %q", kind)
		}
		tmpl, ok = byLang[p.Language]
		if !ok {
			tmpl = byLang["en"]
		}
	}
	body, err := mustache.Render(tmpl, p.Vars)
	if err != nil {
		return "", fmt.Errorf("failed to render %s notification: %w", kind, err)
	}
	return body, nil
}

// CanonicalizePhone strips everything but digits from a phone number and checks its length.
func CanonicalizePhone(phone string) (string, error) {
	if phone == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := nonDigits.ReplaceAllString(phone, "")
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number %q: at least %d digits required", phone, MinPhoneDigits)
	}
	return canonical, nil
}

// NewOutboxSendFunc adapts a Sender to the outbox. Payloads that cannot be decoded, rendered or
// addressed fail permanently; transport errors are retried by the OutboxSender.
func NewOutboxSendFunc(sender Sender) store.OutboxSendFunc {
	return func(ctx context.Context, msg store.OutboxMessage) error {
		p, err := DecodePayload(msg.PayloadJSON)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrPermanent, err)
		}
		to, err := CanonicalizePhone(p.Phone)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrPermanent, err)
		}
		body, err := Render(msg.Kind, p)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrPermanent, err)
		}
		slog.Debug("notify.OutboxSendFunc: delivering", "id", msg.ID, "caseID", msg.CaseID, "kind", msg.Kind, "body_length", len(body))
		return sender.SendMessage(ctx, to, body)
	}
}
