package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timer-delivery-engine/internal/config"
	"timer-delivery-engine/internal/timer"
)

// ErrNotFound is returned when a timer id does not exist for the shop.
var ErrNotFound = errors.New("timer not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const timerColumns = `
	id, shop, name, kind, title, subheading,
	is_published, is_active,
	timer_mode, end_at, session_minutes,
	days_label, hours_label, minutes_label, seconds_label,
	starts_at, on_expiry,
	cta_type, button_text, button_link,
	style,
	product_selection, selected_products, selected_collections,
	excluded_products, product_tags,
	page_selection, specific_pages,
	geolocation, countries,
	created_at`

// FindPublishedActiveTimers lists the shop's deliverable candidates.
// kind optionally narrows to one timer kind ("" means all kinds).
// Records that have not reached StartsAt are excluded here as well as in
// the filter, so the candidate set stays small.
func (s *Store) FindPublishedActiveTimers(ctx context.Context, shop, kind string) ([]timer.Timer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q := `SELECT ` + timerColumns + `
		FROM timers
		WHERE shop = $1 AND is_published AND is_active
		  AND (starts_at IS NULL OR starts_at <= now())`
	args := []any{shop}
	if kind != "" {
		q += ` AND kind = $2`
		args = append(args, kind)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query timers: %w", err)
	}
	defer rows.Close()

	var out []timer.Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindTimerByIDAndShop returns the timer or ErrNotFound. The shop match
// keeps one shop from confirming another shop's timer ids.
func (s *Store) FindTimerByIDAndShop(ctx context.Context, id, shop string) (*timer.Timer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+timerColumns+` FROM timers WHERE id = $1 AND shop = $2`, id, shop)
	if err != nil {
		return nil, fmt.Errorf("query timer: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	t, err := scanTimer(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertView persists one telemetry record.
func (s *Store) InsertView(ctx context.Context, v timer.View) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO timer_views
			(id, timer_id, shop, visitor_id, ip_address, user_agent,
			 country, page_url, page_type, product_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		v.ID, v.TimerID, v.Shop,
		nullable(v.VisitorID), nullable(v.IPAddress), nullable(v.UserAgent),
		nullable(v.Country), nullable(v.PageURL), nullable(v.PageType),
		nullable(v.ProductID), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

// IncrementViewCount bumps the per-timer aggregate.
func (s *Store) IncrementViewCount(ctx context.Context, timerID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`UPDATE timers SET view_count = view_count + 1 WHERE id = $1`, timerID)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// IncrementShopUsage bumps the shop's metered monthly counter. Callers
// treat failures as best-effort.
func (s *Store) IncrementShopUsage(ctx context.Context, shop string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`UPDATE shops SET monthly_views = monthly_views + 1 WHERE domain = $1`, shop)
	if err != nil {
		return fmt.Errorf("increment shop usage: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanTimer(rows pgx.Rows) (timer.Timer, error) {
	var (
		t timer.Timer

		kind, mode, onExpiry, ctaType      string
		productSelection, pageSelection    string
		geolocation                        string
		subheading, buttonText, buttonLink *string
		days, hours, minutes, seconds      *string
	)

	err := rows.Scan(
		&t.ID, &t.Shop, &t.Name, &kind, &t.Title, &subheading,
		&t.IsPublished, &t.IsActive,
		&mode, &t.EndAt, &t.SessionMinutes,
		&days, &hours, &minutes, &seconds,
		&t.StartsAt, &onExpiry,
		&ctaType, &buttonText, &buttonLink,
		&t.Style,
		&productSelection, &t.SelectedProducts, &t.SelectedCollections,
		&t.ExcludedProducts, &t.ProductTags,
		&pageSelection, &t.SpecificPages,
		&geolocation, &t.Countries,
		&t.CreatedAt,
	)
	if err != nil {
		return timer.Timer{}, fmt.Errorf("scan timer row: %w", err)
	}

	t.Subheading = deref(subheading)
	t.ButtonText = deref(buttonText)
	t.ButtonLink = deref(buttonLink)
	t.DaysLabel = deref(days)
	t.HoursLabel = deref(hours)
	t.MinutesLabel = deref(minutes)
	t.SecondsLabel = deref(seconds)

	// Mode strings are validated here, at the boundary. The filter's
	// default-allow never sees a malformed record.
	if t.Kind, err = timer.ParseKind(kind); err != nil {
		return timer.Timer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	if t.Mode, err = timer.ParseMode(mode); err != nil {
		return timer.Timer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	if t.OnExpiry, err = timer.ParseExpiryPolicy(onExpiry); err != nil {
		return timer.Timer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	if t.CTAType, err = timer.ParseCTAType(ctaType); err != nil {
		return timer.Timer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	if t.ProductSelection, err = timer.ParseProductSelection(productSelection); err != nil {
		return timer.Timer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	if t.PageSelection, err = timer.ParsePageSelection(pageSelection); err != nil {
		return timer.Timer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	if t.Geolocation, err = timer.ParseGeolocation(geolocation); err != nil {
		return timer.Timer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
