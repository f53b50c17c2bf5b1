// Package notify sends reservation updates to manager Telegram chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tablebook/internal/events"
	"tablebook/internal/model"
	"tablebook/internal/slots"
	"tablebook/internal/timeofday"
)

// TelegramSender is the part of *tgbotapi.BotAPI the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReservationLister loads reservations for the daily digest.
type ReservationLister interface {
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
}

// Telegram allows roughly 30 messages per second per bot.
const (
	sendRate  = 20
	sendBurst = 30
)

const (
	botTimeout = 10 * time.Second
	queueSize  = 256
)

type Notifier struct {
	sender   TelegramSender
	managers []int64
	limiter  *rate.Limiter
	queue    chan events.Event
	logger   zerolog.Logger
}

// NewBot connects to Telegram with the given token. Requests give up after
// botTimeout so a stalled API cannot pin the delivery worker.
func NewBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: botTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func New(sender TelegramSender, managers []int64, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		managers: managers,
		limiter:  rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		queue:    make(chan events.Event, queueSize),
		logger:   logger,
	}
}

// Subscribe wires the notifier to reservation events. Events are queued and
// delivered by the worker started with Start, so publishers never wait on
// Telegram.
func (n *Notifier) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.ReservationCreated, n.enqueue)
	bus.Subscribe(events.ReservationStatusChanged, n.enqueue)
	bus.Subscribe(events.ReservationDeleted, n.enqueue)
}

// Start delivers queued events until ctx is done.
func (n *Notifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-n.queue:
				if err := n.HandleEvent(ctx, ev); err != nil {
					n.logger.Error().Err(err).Str("event", string(ev.Type)).Msg("notify: delivery failed")
				}
			}
		}
	}()
}

func (n *Notifier) enqueue(_ context.Context, ev events.Event) error {
	select {
	case n.queue <- ev:
		return nil
	default:
		n.logger.Warn().Str("event", string(ev.Type)).Str("id", ev.ID).Msg("notify: queue full, event dropped")
		return errors.New("notify: queue full")
	}
}

// HandleEvent formats the event and sends it to every manager. Status
// changes other than cancellations and no-shows are not announced.
func (n *Notifier) HandleEvent(ctx context.Context, ev events.Event) error {
	text, ok := FormatEvent(ev)
	if !ok {
		return nil
	}
	return n.broadcast(ctx, text)
}

func (n *Notifier) broadcast(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.managers {
		if err := n.limiter.Wait(ctx); err != nil {
			return errors.Join(append(errs, err)...)
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("notify: send failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// FormatEvent renders the manager message for an event.
func FormatEvent(ev events.Event) (string, bool) {
	r := ev.Reservation
	switch ev.Type {
	case events.ReservationCreated:
		if r == nil {
			return "", false
		}
		return "New reservation\n" + describe(r) + byActor(ev.Actor), true
	case events.ReservationStatusChanged:
		if r == nil || (r.Status != model.StatusCancelled && r.Status != model.StatusNoShow) {
			return "", false
		}
		return fmt.Sprintf("Reservation %s\n%s%s", statusWord(r.Status), describe(r), byActor(ev.Actor)), true
	case events.ReservationDeleted:
		if r == nil {
			return fmt.Sprintf("Reservation %s deleted%s", ev.SubjectID, byActor(ev.Actor)), true
		}
		return "Reservation deleted\n" + describe(r) + byActor(ev.Actor), true
	default:
		return "", false
	}
}

func statusWord(s model.Status) string {
	if s == model.StatusNoShow {
		return "marked as no-show"
	}
	return "cancelled"
}

func describe(r *model.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s, %s\n", r.ReservationDate, timeofday.DisplayRaw(r.StartTime), slots.FormatDuration(r.DurationMinutes))
	fmt.Fprintf(&b, "Party of %d: %s", r.PartySize, r.Customer.Name)
	if r.Customer.Phone != "" {
		fmt.Fprintf(&b, ", %s", r.Customer.Phone)
	}
	return b.String()
}

func byActor(actor string) string {
	if actor == "" {
		return ""
	}
	return "\nby " + actor
}

// StartDigest sends tomorrow's blocking reservations to managers every day
// at the given hour until ctx is done.
func (n *Notifier) StartDigest(ctx context.Context, api ReservationLister, hour int) {
	go func() {
		timer := time.NewTimer(timeUntilNextHour(time.Now(), hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if err := n.SendDigest(ctx, api, time.Now().AddDate(0, 0, 1)); err != nil {
					n.logger.Error().Err(err).Msg("notify: digest failed")
				}
				timer.Reset(timeUntilNextHour(time.Now(), hour))
			}
		}
	}()
}

// SendDigest announces the blocking reservations of one day.
func (n *Notifier) SendDigest(ctx context.Context, api ReservationLister, day time.Time) error {
	date := timeofday.FormatDate(day)
	reservations, err := api.ListReservations(ctx, model.ReservationFilter{DateFrom: date, DateTo: date})
	if err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}
	return n.broadcast(ctx, FormatDigest(date, reservations))
}

// FormatDigest lists blocking reservations ordered as received.
func FormatDigest(date string, reservations []model.Reservation) string {
	var b strings.Builder
	count, guests := 0, 0
	for i := range reservations {
		r := &reservations[i]
		if !r.Status.Blocking() {
			continue
		}
		count++
		guests += r.PartySize
		fmt.Fprintf(&b, "\n%s  %d  %s", timeofday.DisplayRaw(r.StartTime), r.PartySize, r.Customer.Name)
	}
	if count == 0 {
		return fmt.Sprintf("No reservations for %s", date)
	}
	return fmt.Sprintf("Reservations for %s: %d (%d guests)%s", date, count, guests, b.String())
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
