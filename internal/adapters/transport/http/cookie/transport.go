// Package cookie moves credentials between the service and the client as
// HttpOnly, SameSite=Strict cookies.
package cookie

import (
	"errors"
	"net/http"
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/model"
	"github.com/gin-gonic/gin"
)

const (
	AccessName  = "accessToken"
	RefreshName = "refreshToken"
	path        = "/"
)

var ErrMissing = errors.New("credential cookie missing")

type Transport struct {
	domain string
	secure bool
}

// NewTransport sets Secure on every cookie when secure is true, which main
// ties to APP_ENV=production.
func NewTransport(domain string, secure bool) *Transport {
	return &Transport{domain: domain, secure: secure}
}

func (t *Transport) SetAccess(c *gin.Context, token string, ttl time.Duration) {
	t.set(c, AccessName, token, int(ttl.Seconds()))
}

func (t *Transport) SetRefresh(c *gin.Context, token string, ttl time.Duration) {
	t.set(c, RefreshName, token, int(ttl.Seconds()))
}

func (t *Transport) SetPair(c *gin.Context, pair model.TokenPair) {
	t.SetAccess(c, pair.AccessToken, pair.AccessTTL)
	t.SetRefresh(c, pair.RefreshToken, pair.RefreshTTL)
}

func (t *Transport) Access(c *gin.Context) (string, error) {
	return read(c, AccessName)
}

func (t *Transport) Refresh(c *gin.Context) (string, error) {
	return read(c, RefreshName)
}

// Clear expires both cookies with the attributes they were set with.
func (t *Transport) Clear(c *gin.Context) {
	t.set(c, AccessName, "", -1)
	t.set(c, RefreshName, "", -1)
}

func (t *Transport) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, path, t.domain, t.secure, true)
}

func read(c *gin.Context, name string) (string, error) {
	v, err := c.Cookie(name)
	if err != nil || v == "" {
		return "", ErrMissing
	}
	return v, nil
}
