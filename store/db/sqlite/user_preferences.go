package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hrygo/bizcache/store"
)

func (d *DB) UpsertUserPreferences(ctx context.Context, upsert *store.UpsertUserPreferences) (*store.UserPreferences, error) {
	preferences := upsert.Preferences
	if preferences == nil {
		preferences = &structpb.Struct{}
	}
	bytes, err := protojson.Marshal(preferences)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	now := time.Now().Unix()

	stmt := `INSERT INTO user_preferences (user_id, preferences, created_ts, updated_ts)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `)
		ON CONFLICT (user_id) DO UPDATE SET
			preferences = EXCLUDED.preferences,
			updated_ts = EXCLUDED.updated_ts
		RETURNING user_id, preferences, created_ts, updated_ts`

	result, err := scanUserPreferences(d.db.QueryRowContext(ctx, stmt, upsert.UserID, string(bytes), now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user_preferences: %w", err)
	}
	return result, nil
}

func (d *DB) GetUserPreferences(ctx context.Context, find *store.FindUserPreferences) (*store.UserPreferences, error) {
	query := `SELECT user_id, preferences, created_ts, updated_ts FROM user_preferences WHERE user_id = ` + placeholder(1)

	result, err := scanUserPreferences(d.db.QueryRowContext(ctx, query, find.UserID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get user_preferences: %w", err)
	}
	return result, nil
}

func scanUserPreferences(row *sql.Row) (*store.UserPreferences, error) {
	result := &store.UserPreferences{Preferences: &structpb.Struct{}}
	var raw string
	if err := row.Scan(&result.UserID, &raw, &result.CreatedTs, &result.UpdatedTs); err != nil {
		return nil, err
	}
	if err := protojsonUnmarshaler.Unmarshal([]byte(raw), result.Preferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return result, nil
}
