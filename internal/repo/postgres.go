package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/LeventeLantos/signal-relay/internal/model"
)

// PostgresRepo implements every repository interface on one *sql.DB.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Find(ctx context.Context, phoneNumber string) (*model.Channel, error) {
	var (
		ch          model.Channel
		description sql.NullString
		vouchMode   string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT phone_number, name, description, hotline_on, vouch_mode, vouch_level, message_expiry_seconds
		FROM channels
		WHERE phone_number = $1
	`, phoneNumber).Scan(
		&ch.PhoneNumber,
		&ch.Name,
		&description,
		&ch.HotlineOn,
		&vouchMode,
		&ch.VouchLevel,
		&ch.MessageExpiry,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	if description.Valid {
		ch.Description = description.String
	}
	ch.VouchMode = model.VouchMode(vouchMode)
	ch.MessageExpiry *= time.Second

	memberships, err := r.membershipsOf(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	ch.Memberships = memberships
	return &ch, nil
}

func (r *PostgresRepo) membershipsOf(ctx context.Context, channelPhoneNumber string) ([]model.Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel_phone_number, member_phone_number, type, language
		FROM memberships
		WHERE channel_phone_number = $1
		ORDER BY created_at ASC
	`, channelPhoneNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Membership
	for rows.Next() {
		var (
			m     model.Membership
			mtype string
		)
		if err := rows.Scan(&m.ChannelPhoneNumber, &m.MemberPhoneNumber, &mtype, &m.Language); err != nil {
			return nil, err
		}
		m.Type = model.MemberType(mtype)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindAll(ctx context.Context) ([]model.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT phone_number, name, hotline_on, message_expiry_seconds
		FROM channels
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Channel
	for rows.Next() {
		var ch model.Channel
		if err := rows.Scan(&ch.PhoneNumber, &ch.Name, &ch.HotlineOn, &ch.MessageExpiry); err != nil {
			return nil, err
		}
		ch.MessageExpiry *= time.Second
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateExpiry(ctx context.Context, phoneNumber string, expirySeconds int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE channels
		SET message_expiry_seconds = $2, updated_at = now()
		WHERE phone_number = $1
	`, phoneNumber, expirySeconds)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChannelNotFound
	}
	return nil
}

func (r *PostgresRepo) ResolveMemberType(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) (model.MemberType, error) {
	var mtype string
	err := r.db.QueryRowContext(ctx, `
		SELECT type FROM memberships
		WHERE channel_phone_number = $1 AND member_phone_number = $2
	`, channelPhoneNumber, memberPhoneNumber).Scan(&mtype)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MemberTypeNone, nil
	}
	if err != nil {
		return model.MemberTypeNone, err
	}
	return model.MemberType(mtype), nil
}

func (r *PostgresRepo) ResolveLanguage(ctx context.Context, channelPhoneNumber, memberPhoneNumber string, memberType model.MemberType) (string, error) {
	if memberType == model.MemberTypeNone {
		return "", nil
	}
	var language string
	err := r.db.QueryRowContext(ctx, `
		SELECT language FROM memberships
		WHERE channel_phone_number = $1 AND member_phone_number = $2
	`, channelPhoneNumber, memberPhoneNumber).Scan(&language)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return language, nil
}

// AddAdmin upserts the membership row to ADMIN. ON CONFLICT keeps the call
// idempotent for existing admins and promotes existing subscribers.
func (r *PostgresRepo) AddAdmin(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) (model.Membership, error) {
	var (
		m     model.Membership
		mtype string
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO memberships (channel_phone_number, member_phone_number, type, language)
		VALUES ($1, $2, 'ADMIN', 'EN')
		ON CONFLICT (channel_phone_number, member_phone_number)
		DO UPDATE SET type = 'ADMIN', updated_at = now()
		RETURNING channel_phone_number, member_phone_number, type, language
	`, channelPhoneNumber, memberPhoneNumber).Scan(
		&m.ChannelPhoneNumber, &m.MemberPhoneNumber, &mtype, &m.Language,
	)
	if err != nil {
		return model.Membership{}, err
	}
	m.Type = model.MemberType(mtype)
	return m, nil
}

func (r *PostgresRepo) AddSubscriber(ctx context.Context, channelPhoneNumber, memberPhoneNumber, language string) (model.Membership, error) {
	var (
		m     model.Membership
		mtype string
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO memberships (channel_phone_number, member_phone_number, type, language)
		VALUES ($1, $2, 'SUBSCRIBER', $3)
		ON CONFLICT (channel_phone_number, member_phone_number)
		DO UPDATE SET language = $3, updated_at = now()
		RETURNING channel_phone_number, member_phone_number, type, language
	`, channelPhoneNumber, memberPhoneNumber, language).Scan(
		&m.ChannelPhoneNumber, &m.MemberPhoneNumber, &mtype, &m.Language,
	)
	if err != nil {
		return model.Membership{}, err
	}
	m.Type = model.MemberType(mtype)
	return m, nil
}

func (r *PostgresRepo) RemoveMember(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM memberships
		WHERE channel_phone_number = $1 AND member_phone_number = $2
	`, channelPhoneNumber, memberPhoneNumber)
	return err
}

func (r *PostgresRepo) CountBroadcast(ctx context.Context, channelPhoneNumber string) error {
	return r.count(ctx, channelPhoneNumber, "broadcast_count")
}

func (r *PostgresRepo) CountHotline(ctx context.Context, channelPhoneNumber string) error {
	return r.count(ctx, channelPhoneNumber, "hotline_count")
}

func (r *PostgresRepo) CountCommand(ctx context.Context, channelPhoneNumber string) error {
	return r.count(ctx, channelPhoneNumber, "command_count")
}

func (r *PostgresRepo) count(ctx context.Context, channelPhoneNumber, column string) error {
	// column names are fixed by the three Count* callers, never user input
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_counts (channel_phone_number, `+column+`, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (channel_phone_number)
		DO UPDATE SET `+column+` = message_counts.`+column+` + 1, updated_at = now()
	`, channelPhoneNumber)
	return err
}

func (r *PostgresRepo) CreateDeauthorization(ctx context.Context, channelPhoneNumber, memberPhoneNumber, fingerprint string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deauthorizations (channel_phone_number, member_phone_number, fingerprint)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_phone_number, member_phone_number)
		DO UPDATE SET fingerprint = $3, updated_at = now()
	`, channelPhoneNumber, memberPhoneNumber, fingerprint)
	return err
}

// Create satisfies DeauthorizationRepository.
func (r *PostgresRepo) Create(ctx context.Context, channelPhoneNumber, memberPhoneNumber, fingerprint string) error {
	return r.CreateDeauthorization(ctx, channelPhoneNumber, memberPhoneNumber, fingerprint)
}
