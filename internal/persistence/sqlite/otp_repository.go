package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/security"
)

// OTPRepository implements persistence.OTPRepository using SQLite
type OTPRepository struct {
	pool *ConnectionPool
}

// NewOTPRepository creates a new SQLite one time code repository
func NewOTPRepository(pool *ConnectionPool) *OTPRepository {
	return &OTPRepository{pool: pool}
}

const otpColumns = `id, user_id, code, token_type, expires_at, is_used, attempts, max_attempts, created_at`

// CreateToken stores a freshly generated code
func (r *OTPRepository) CreateToken(ctx context.Context, token security.Token) error {
	if token.ID == "" || token.UserID == "" || token.Code == "" || !token.Type.Valid() {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.DB().ExecContext(ctx, `INSERT INTO otp_tokens (`+otpColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.UserID,
		token.Code,
		string(token.Type),
		formatTime(token.ExpiresAt),
		boolInt(token.Used),
		token.Attempts,
		token.MaxAttempts,
		formatTime(token.CreatedAt),
	)
	return MapError(err)
}

// GetToken retrieves a code by ID
func (r *OTPRepository) GetToken(ctx context.Context, id string) (security.Token, error) {
	if id == "" {
		return security.Token{}, persistence.ErrNotFound
	}
	return scanToken(r.pool.DB().QueryRowContext(ctx, `SELECT `+otpColumns+` FROM otp_tokens WHERE id = ?`, id))
}

// LatestToken returns the most recently issued code of a type for a user
func (r *OTPRepository) LatestToken(ctx context.Context, userID string, tokenType security.TokenType) (security.Token, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+otpColumns+` FROM otp_tokens
		WHERE user_id = ? AND token_type = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, userID, string(tokenType))
	return scanToken(row)
}

// InvalidateTokens marks every unused code of a type as used and reports how many changed
func (r *OTPRepository) InvalidateTokens(ctx context.Context, userID string, tokenType security.TokenType) (int, error) {
	result, err := r.pool.DB().ExecContext(ctx,
		`UPDATE otp_tokens SET is_used = 1 WHERE user_id = ? AND token_type = ? AND is_used = 0`,
		userID, string(tokenType))
	if err != nil {
		return 0, MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// RedeemToken runs redeem against the stored token and persists the counter
// and used flag before the transaction releases the write lock.
func (r *OTPRepository) RedeemToken(ctx context.Context, id string, redeem func(token *security.Token)) (security.Token, error) {
	var token security.Token
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		token, err = scanToken(tx.QueryRowContext(ctx, `SELECT `+otpColumns+` FROM otp_tokens WHERE id = ?`, id))
		if err != nil {
			return err
		}

		redeem(&token)

		_, err = tx.ExecContext(ctx, `UPDATE otp_tokens SET attempts = ?, is_used = ? WHERE id = ?`,
			token.Attempts, boolInt(token.Used), token.ID)
		return MapError(err)
	})
	if err != nil {
		return security.Token{}, err
	}
	return token, nil
}

func scanToken(row rowScanner) (security.Token, error) {
	var (
		token                security.Token
		tokenType            string
		used                 int
		expiresAt, createdAt string
	)
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Code,
		&tokenType,
		&expiresAt,
		&used,
		&token.Attempts,
		&token.MaxAttempts,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return security.Token{}, persistence.ErrNotFound
	}
	if err != nil {
		return security.Token{}, MapError(err)
	}

	token.Type = security.TokenType(tokenType)
	token.Used = used == 1
	if token.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return security.Token{}, err
	}
	if token.CreatedAt, err = parseTime(createdAt); err != nil {
		return security.Token{}, err
	}
	return token, nil
}
