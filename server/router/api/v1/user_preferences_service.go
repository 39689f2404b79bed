package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apierrors "github.com/hrygo/bizcache/server/internal/errors"
	"github.com/hrygo/bizcache/store"
)

// maxPreferencesSize bounds the PUT body.
const maxPreferencesSize = 64 << 10

type UserPreferences struct {
	UserID      int64           `json:"user_id"`
	Preferences json.RawMessage `json:"preferences"`
	CreateTime  time.Time       `json:"create_time"`
	UpdateTime  time.Time       `json:"update_time"`
}

// GET /api/v1/users/:id/preferences
func (s *APIV1Service) GetUserPreferences(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	preferences, err := s.Store.GetUserPreferences(c.Request().Context(), userID)
	if err != nil {
		return storeError(err, "user preferences")
	}
	if preferences == nil {
		return apierrors.NotFound("user preferences")
	}
	response, err := convertUserPreferencesFromStore(preferences)
	if err != nil {
		return apierrors.Internal(err)
	}
	return c.JSON(http.StatusOK, response)
}

// PUT /api/v1/users/:id/preferences
//
// The body is the preferences document itself and replaces the stored one.
func (s *APIV1Service) UpsertUserPreferences(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPreferencesSize+1))
	if err != nil {
		return apierrors.InvalidArgument("failed to read request body")
	}
	if len(body) > maxPreferencesSize {
		return apierrors.InvalidArgument("preferences document is too large")
	}

	document := &structpb.Struct{}
	if err := protojson.Unmarshal(body, document); err != nil {
		return apierrors.InvalidArgument("preferences must be a JSON object")
	}

	preferences, err := s.Store.UpsertUserPreferences(c.Request().Context(), &store.UpsertUserPreferences{
		UserID:      userID,
		Preferences: document,
	})
	if err != nil {
		return storeError(err, "user preferences")
	}
	response, err := convertUserPreferencesFromStore(preferences)
	if err != nil {
		return apierrors.Internal(err)
	}
	return c.JSON(http.StatusOK, response)
}

func convertUserPreferencesFromStore(preferences *store.UserPreferences) (*UserPreferences, error) {
	document := preferences.Preferences
	if document == nil {
		document = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(document)
	if err != nil {
		return nil, err
	}
	return &UserPreferences{
		UserID:      preferences.UserID,
		Preferences: raw,
		CreateTime:  time.Unix(preferences.CreatedTs, 0).UTC(),
		UpdateTime:  time.Unix(preferences.UpdatedTs, 0).UTC(),
	}, nil
}
