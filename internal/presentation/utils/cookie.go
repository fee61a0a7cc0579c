package utils

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CookiePlayerID = "player_id"

// GetPlayerToken reads the stable identity token from the request cookie,
// minting one for first-time visitors. The token is what the authorizer
// checks campaign membership against.
func GetPlayerToken(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(CookiePlayerID)
	if err != nil {
		token := uuid.NewString()
		setPlayerIDCookie(token, w)
		return token
	}

	decoded, err := base64.StdEncoding.DecodeString(cookie.Value)
	if err != nil || len(decoded) == 0 {
		token := uuid.NewString()
		setPlayerIDCookie(token, w)
		return token
	}

	token := string(decoded)
	setPlayerIDCookie(token, w)
	return token
}

func setPlayerIDCookie(token string, w http.ResponseWriter) {
	cookieExpiry := time.Now().Add(24 * 30 * time.Hour)
	http.SetCookie(w, &http.Cookie{
		Name:     CookiePlayerID,
		Value:    base64.StdEncoding.EncodeToString([]byte(token)),
		Path:     "/",
		HttpOnly: true,
		Expires:  cookieExpiry,
	})
}
