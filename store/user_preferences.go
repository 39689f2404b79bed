package store

import "google.golang.org/protobuf/types/known/structpb"

// UserPreferences is the free-form settings document of a user.
type UserPreferences struct {
	UserID      int64
	Preferences *structpb.Struct
	CreatedTs   int64
	UpdatedTs   int64
}

// FindUserPreferences specifies the conditions for finding user preferences.
type FindUserPreferences struct {
	UserID int64
}

// UpsertUserPreferences specifies the data for upserting user preferences.
type UpsertUserPreferences struct {
	UserID      int64
	Preferences *structpb.Struct
}
