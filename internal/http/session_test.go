package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/favsync"
)

func TestSessionController(t *testing.T) {
	t.Run("sets and reads user", func(t *testing.T) {
		svc := &fakeFavorites{}
		router := setupFavoritesRouter(t, svc)

		w := doRequest(router, "PUT", "/api/session", `{"userId":" alice "}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", svc.userID)

		w = doRequest(router, "GET", "/api/session", "")
		require.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "alice", resp.UserID)
		assert.True(t, resp.SignedIn)
	})

	t.Run("null clears user", func(t *testing.T) {
		svc := &fakeFavorites{userID: "alice"}
		router := setupFavoritesRouter(t, svc)

		w := doRequest(router, "PUT", "/api/session", `{"userId":null}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, svc.userID)

		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.SignedIn)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		router := setupFavoritesRouter(t, &fakeFavorites{})
		w := doRequest(router, "PUT", "/api/session", `{"userId":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stopped engine is 503", func(t *testing.T) {
		router := setupFavoritesRouter(t, &fakeFavorites{setErr: favsync.ErrStopped})
		w := doRequest(router, "PUT", "/api/session", `{"userId":"bob"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("other errors are 500", func(t *testing.T) {
		router := setupFavoritesRouter(t, &fakeFavorites{setErr: errors.New("boom")})
		w := doRequest(router, "PUT", "/api/session", `{"userId":"bob"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
