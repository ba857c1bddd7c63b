package command

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javiermolinar/airtime/internal/lifecycle"
	"github.com/javiermolinar/airtime/internal/report"
	"github.com/javiermolinar/airtime/internal/scheduler"
	"github.com/javiermolinar/airtime/internal/session"
	"github.com/javiermolinar/airtime/internal/slot"
)

// ErrNoPeriod is returned when reserve or cancel runs before a month was
// selected.
var ErrNoPeriod = errors.New("no month selected")

// ErrUnknownRequest is returned for request types the dispatcher cannot run.
var ErrUnknownRequest = errors.New("unknown request")

// Messages are the user-facing texts of the dispatcher.
type Messages struct {
	// Ready is formatted with the month name and the year.
	Ready string
	// Failure is formatted with the error text.
	Failure  string
	NoPeriod string
	Reset    string
	// DayHeader is formatted with day, month and year and precedes the
	// day view.
	DayHeader string
}

// DefaultMessages returns English texts.
func DefaultMessages() Messages {
	return Messages{
		Ready:     "✅ Sheet for %s %d is ready!",
		Failure:   "❌ Error: %s",
		NoPeriod:  "Select a month first.",
		Reset:     "Current operation cancelled. Select a month again.",
		DayHeader: "Data for %02d.%02d.%d:",
	}
}

// Dispatcher runs requests on behalf of users.
type Dispatcher struct {
	lifecycle *lifecycle.Manager
	scheduler *scheduler.Scheduler
	report    *report.Formatter
	sessions  session.Store
	palette   slot.Palette
	messages  Messages
	now       func() time.Time
	logger    *slog.Logger
}

// Config wires a Dispatcher.
type Config struct {
	Lifecycle *lifecycle.Manager
	Scheduler *scheduler.Scheduler
	Report    *report.Formatter
	Sessions  session.Store
	Palette   slot.Palette
	Messages  *Messages
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		lifecycle: cfg.Lifecycle,
		scheduler: cfg.Scheduler,
		report:    cfg.Report,
		sessions:  cfg.Sessions,
		palette:   cfg.Palette,
		messages:  DefaultMessages(),
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	if cfg.Messages != nil {
		d.messages = *cfg.Messages
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch runs one request for user.
func (d *Dispatcher) Dispatch(ctx context.Context, user string, req Request) (Reply, error) {
	if strings.TrimSpace(user) == "" {
		return Reply{}, slot.Invalid("user", "", session.ErrEmptyUser)
	}

	logger := d.logger.With("op", uuid.NewString(), "user", user, "request", req.kind())
	start := d.now()

	var (
		reply Reply
		err   error
	)
	switch r := req.(type) {
	case SelectPeriod:
		reply, err = d.selectPeriod(ctx, logger, user, r)
	case Reserve:
		reply, err = d.reserve(ctx, logger, user, r)
	case Cancel:
		reply, err = d.cancel(ctx, logger, user, r)
	case ViewDay:
		reply, err = d.viewDay(ctx, user, r)
	case Reset:
		reply, err = d.reset(ctx, user)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}

	if err != nil {
		var verr *slot.ValidationError
		if errors.As(err, &verr) || errors.Is(err, ErrNoPeriod) {
			logger.Info("request rejected", "error", err)
		} else {
			logger.Error("request failed", "error", err)
		}
		return Reply{}, err
	}
	logger.Info("request done", "outcomes", len(reply.Outcomes), "elapsed", d.now().Sub(start))
	return reply, nil
}

// HandleMessage parses a chat message, runs it and always returns the text
// to send back.
func (d *Dispatcher) HandleMessage(ctx context.Context, user, text string) string {
	req, err := ParseMessage(text, d.palette)
	if err != nil {
		d.logger.Info("message rejected", "user", user, "error", err)
		return d.Failure(err)
	}
	reply, err := d.Dispatch(ctx, user, req)
	if err != nil {
		return d.Failure(err)
	}
	return reply.Text
}

// Failure renders an error for the user.
func (d *Dispatcher) Failure(err error) string {
	if errors.Is(err, ErrNoPeriod) {
		return d.messages.NoPeriod
	}
	return fmt.Sprintf(d.messages.Failure, html.EscapeString(err.Error()))
}

func (d *Dispatcher) selectPeriod(ctx context.Context, logger *slog.Logger, user string, r SelectPeriod) (Reply, error) {
	p, err := slot.NewPeriod(r.Year, r.Month)
	if err != nil {
		return Reply{}, err
	}

	if _, err := d.lifecycle.EnsurePeriod(ctx, p); err != nil {
		return Reply{}, err
	}
	if deleted, err := d.lifecycle.Prune(ctx, d.now(), p); err != nil {
		logger.Warn("pruning grids", "error", err)
	} else if len(deleted) > 0 {
		logger.Info("pruned grids", "grids", deleted)
	}

	s, err := d.sessions.Get(ctx, user)
	if err != nil {
		return Reply{}, err
	}
	s.Edit = &p
	s.UpdatedAt = d.now()
	if err := d.sessions.Save(ctx, s); err != nil {
		return Reply{}, err
	}

	return Reply{Text: fmt.Sprintf(d.messages.Ready, d.lifecycle.MonthName(p), p.Year)}, nil
}

// editPeriod returns the user's session and its edit period, checking that
// day exists in it.
func (d *Dispatcher) editPeriod(ctx context.Context, user string, day int) (session.Session, slot.Period, error) {
	if err := slot.ValidateDay(day); err != nil {
		return session.Session{}, slot.Period{}, err
	}
	s, err := d.sessions.Get(ctx, user)
	if err != nil {
		return session.Session{}, slot.Period{}, err
	}
	if s.Edit == nil {
		return session.Session{}, slot.Period{}, ErrNoPeriod
	}
	p := *s.Edit
	if !p.HasDay(day) {
		return session.Session{}, slot.Period{}, slot.Invalid("day", fmt.Sprint(day), slot.ErrDayOutOfMonth)
	}
	return s, p, nil
}

// finish clears the edit period once an operation has run.
func (d *Dispatcher) finish(ctx context.Context, logger *slog.Logger, s session.Session) {
	s.Edit = nil
	s.UpdatedAt = d.now()
	if err := d.sessions.Save(ctx, s); err != nil {
		logger.Warn("saving session", "error", err)
	}
}

// validateEntries rejects an empty list, blank channels and malformed times.
func validateEntries(entries []slot.Entry) error {
	if len(entries) == 0 {
		return slot.Invalid("entries", "", slot.ErrNoEntries)
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Channel) == "" {
			return slot.Invalid("channel", e.Channel, errEntryArg)
		}
		if err := slot.ValidateTime(e.Time); err != nil {
			return err
		}
	}
	return nil
}

// reservationText trims the text. Chat clients escape it as HTML; a text
// carrying the time placeholder is unescaped so "@" survives.
func reservationText(raw string) string {
	if strings.Contains(raw, scheduler.Placeholder) {
		raw = html.UnescapeString(raw)
	}
	return strings.TrimSpace(raw)
}

func (d *Dispatcher) reserve(ctx context.Context, logger *slog.Logger, user string, r Reserve) (Reply, error) {
	text := reservationText(r.Text)
	if text == "" {
		return Reply{}, slot.Invalid("text", "", slot.ErrEmptyText)
	}
	if err := validateEntries(r.Entries); err != nil {
		return Reply{}, err
	}

	s, p, err := d.editPeriod(ctx, user, r.Day)
	if err != nil {
		return Reply{}, err
	}
	h, err := d.lifecycle.EnsurePeriod(ctx, p)
	if err != nil {
		return Reply{}, err
	}

	outcomes, err := d.scheduler.Reserve(ctx, h, r.Day, d.palette.Lookup(r.Color), text, r.Entries)
	if err != nil {
		return Reply{}, err
	}
	d.finish(ctx, logger, s)
	return Reply{Text: d.report.Outcomes(outcomes), Outcomes: outcomes}, nil
}

func (d *Dispatcher) cancel(ctx context.Context, logger *slog.Logger, user string, r Cancel) (Reply, error) {
	if err := validateEntries(r.Entries); err != nil {
		return Reply{}, err
	}

	s, p, err := d.editPeriod(ctx, user, r.Day)
	if err != nil {
		return Reply{}, err
	}
	h, err := d.lifecycle.EnsurePeriod(ctx, p)
	if err != nil {
		return Reply{}, err
	}

	outcomes, err := d.scheduler.Cancel(ctx, h, r.Day, r.Entries)
	if err != nil {
		return Reply{}, err
	}
	d.finish(ctx, logger, s)
	return Reply{Text: d.report.Outcomes(outcomes), Outcomes: outcomes}, nil
}

func (d *Dispatcher) viewDay(ctx context.Context, user string, r ViewDay) (Reply, error) {
	s, err := d.sessions.Get(ctx, user)
	if err != nil {
		return Reply{}, err
	}

	var p slot.Period
	if r.Year == 0 && r.Month == 0 {
		if s.View == nil {
			return Reply{}, ErrNoPeriod
		}
		p = *s.View
	} else if p, err = slot.NewPeriod(r.Year, r.Month); err != nil {
		return Reply{}, err
	}
	if err := slot.ValidateDay(r.Day); err != nil {
		return Reply{}, err
	}
	if !p.HasDay(r.Day) {
		return Reply{}, slot.Invalid("day", fmt.Sprint(r.Day), slot.ErrDayOutOfMonth)
	}

	h, err := d.lifecycle.EnsurePeriod(ctx, p)
	if err != nil {
		return Reply{}, err
	}
	avail, err := d.scheduler.Occupancy(ctx, h, r.Day)
	if err != nil {
		return Reply{}, err
	}

	s.View = &p
	s.UpdatedAt = d.now()
	if err := d.sessions.Save(ctx, s); err != nil {
		d.logger.Warn("saving session", "user", user, "error", err)
	}

	header := fmt.Sprintf(d.messages.DayHeader, r.Day, int(p.Month), p.Year)
	return Reply{Text: header + "\n\n" + d.report.Occupancy(avail)}, nil
}

func (d *Dispatcher) reset(ctx context.Context, user string) (Reply, error) {
	if err := d.sessions.Clear(ctx, user); err != nil {
		return Reply{}, err
	}
	return Reply{Text: d.messages.Reset}, nil
}
