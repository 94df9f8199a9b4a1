package webhooks

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/despachantemarcelino/hookd/internal/events"
	"github.com/despachantemarcelino/hookd/internal/requestctx"
)

// The default processors only log. Business handling of each kind plugs in
// through Dispatcher.Register.
func defaultProcessors() map[events.Kind]Processor {
	return map[events.Kind]Processor{
		events.KindMessage:    ProcessorFunc(logMessage),
		events.KindLead:       ProcessorFunc(logLead),
		events.KindConversion: ProcessorFunc(logConversion),
		events.KindPayment:    ProcessorFunc(logPayment),
	}
}

func eventLog(ctx context.Context, ev events.Event) *zerolog.Event {
	return log.Info().
		Str("request_id", requestctx.RequestID(ctx)).
		Str("event", ev.Name())
}

func logMessage(ctx context.Context, ev events.Event) error {
	m, _ := ev.(events.Message)
	eventLog(ctx, ev).
		Str("id", m.Payload.ID).
		Str("channel", m.Payload.Channel).
		Str("contact", m.Payload.ContactName).
		Int("text_length", len(m.Payload.Text)).
		Msg("Processing new message")
	return nil
}

func logLead(ctx context.Context, ev events.Event) error {
	l, _ := ev.(events.Lead)
	eventLog(ctx, ev).
		Str("id", l.Payload.ID).
		Str("source", l.Payload.Source).
		Str("service", l.Payload.Service).
		Str("campaign_id", l.Payload.CampaignID).
		Msg("Processing new lead")
	return nil
}

func logConversion(ctx context.Context, ev events.Event) error {
	c, _ := ev.(events.Conversion)
	eventLog(ctx, ev).
		Str("campaign_id", c.Payload.CampaignID).
		Str("lead_id", c.Payload.LeadID).
		Float64("value", c.Payload.Value).
		Str("currency", c.Payload.Currency).
		Msg("Processing conversion")
	return nil
}

func logPayment(ctx context.Context, ev events.Event) error {
	p, _ := ev.(events.Payment)
	eventLog(ctx, ev).
		Str("id", p.Payload.ID).
		Str("lead_id", p.Payload.LeadID).
		Float64("amount", p.Payload.Amount).
		Str("status", p.Payload.Status).
		Msg("Processing payment")
	return nil
}

func logUnknown(ctx context.Context, ev events.Event) error {
	log.Warn().
		Str("request_id", requestctx.RequestID(ctx)).
		Str("event", ev.Name()).
		Msg("Unknown webhook event")
	return nil
}
