package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
	"github.com/divyanshu1906/FreelancingFuel/internal/utils"
)

// GoogleOAuthHandler signs users in via Google and hands the frontend a
// bearer token. First-time sign-ins are created as clients; freelancers can
// pass role=freelancer when starting the flow.
type GoogleOAuthHandler struct {
	DB              *gorm.DB
	JWTSecret       string
	Expires         int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	role := strings.ToLower(c.Query("role", string(models.RoleClient)))
	if !models.Role(role).Valid() {
		role = string(models.RoleClient)
	}
	st := randomState(32)

	// State and requested role ride along in short-lived cookies.
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    st,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_role",
		Value:    role,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)

	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	if stCookie == "" || stCookie != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}

	role := models.Role(c.Cookies("oauth_role"))
	if !role.Valid() {
		role = models.RoleClient
	}

	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to exchange code")
	}

	client := h.oauthCfg().Client(c.Context(), tok)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to decode userinfo")
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	name := strings.TrimSpace(gu.Name)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Email not found from Google")
	}

	// Upsert by email. The role from the start of the flow only applies to
	// brand-new accounts; existing users keep theirs.
	var u models.User
	err = h.DB.Where("email = ?", email).First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error().Err(err).Msg("google: user lookup failed")
		return c.Status(fiber.StatusInternalServerError).SendString("DB error")
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Password is not null in the schema; Google accounts get a random
		// one that is never usable for manual login.
		hashed, _ := utils.HashPassword(randomState(24))

		u = models.User{
			Name:     name,
			Email:    email,
			Password: hashed,
			Role:     role,
		}
		if err := h.DB.Create(&u).Error; err != nil {
			log.Error().Err(err).Msg("google: create user failed")
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to create account")
		}
	} else if name != "" && u.Name != name {
		u.Name = name
		_ = h.DB.Save(&u).Error
	}

	jwtToken, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		log.Error().Err(err).Msg("google: sign token failed")
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to sign jwt")
	}

	c.Cookie(&fiber.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, SameSite: "Lax"})
	c.Cookie(&fiber.Cookie{Name: "oauth_role", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, SameSite: "Lax"})

	// The API is bearer-token based, so the token goes back in the redirect
	// for the frontend to store.
	redirectURL := h.FrontendBaseURL + "/auth/callback?token=" + url.QueryEscape(jwtToken)

	return c.Redirect(redirectURL, http.StatusTemporaryRedirect)
}
