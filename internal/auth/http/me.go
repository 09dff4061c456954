package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/internal/auth/service"
	"github.com/aussiebroadwan/walletauth/pkg/authsdk"
	"github.com/aussiebroadwan/walletauth/pkg/httpx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

type MeHandler struct {
	UserService *service.UserService
}

// resourceError writes the {"error_message", "error_slug"} body.
func resourceError(w http.ResponseWriter, status int, message, slug string) {
	httpx.WriteJSON(w, status, authsdk.ResourceError{Message: message, Slug: slug})
}

func (h *MeHandler) response(r *http.Request, email string) (authsdk.MeResponse, error) {
	ctx := r.Context()

	userID, err := authn.UserID(ctx)
	if err != nil {
		return authsdk.MeResponse{}, err
	}
	channel, err := authn.Channel(ctx)
	if err != nil {
		return authsdk.MeResponse{}, err
	}
	tester, err := authn.IsTester(ctx)
	if err != nil {
		return authsdk.MeResponse{}, err
	}
	trusted, err := authn.IsTrustedChannel(ctx)
	if err != nil {
		return authsdk.MeResponse{}, err
	}

	return authsdk.MeResponse{
		UserID:           userID,
		Channel:          channel,
		Email:            email,
		IsTester:         tester,
		IsTrustedChannel: trusted,
	}, nil
}

// HandleGet godoc
//
//	@Summary		Current user
//	@Description	Returns the user and channel behind the access token.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse		"user_id, channel, email, is_tester, is_trusted_channel"
//	@Failure		401	{object}	authsdk.ResourceError	"INVALID_TOKEN, EXPIRED_TOKEN, MISSING_CLAIM, UNAUTHORISED"
//	@Failure		404	{object}	authsdk.ResourceError	"NOT_FOUND"
//	@Router			/v2/me [get].
func (h *MeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, err := authn.UserID(ctx)
	if err != nil {
		authn.WriteError(w, err, authn.ResourceErrors)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			resourceError(w, http.StatusNotFound, "User not found", "NOT_FOUND")
			return
		}
		log.Warn("failed to load user", "user_id", userID, "err", err)
		authn.WriteError(w, err, authn.ResourceErrors)
		return
	}

	resp, err := h.response(r, user.Email)
	if err != nil {
		authn.WriteError(w, err, authn.ResourceErrors)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleUpdateEmail godoc
//
//	@Summary		Update email
//	@Description	Replaces the user's email. Only tokens issued to trusted channels may call it.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.UpdateEmailRequest	true	"new email"
//	@Success		200		{object}	authsdk.MeResponse			"updated user"
//	@Failure		400		{object}	authsdk.ResourceError		"MALFORMED_REQUEST"
//	@Failure		401		{object}	authsdk.ResourceError		"INVALID_TOKEN, EXPIRED_TOKEN"
//	@Failure		403		{object}	authsdk.ResourceError		"FORBIDDEN"
//	@Failure		409		{object}	authsdk.ResourceError		"DUPLICATE_EMAIL"
//	@Failure		422		{object}	authsdk.ResourceError		"INVALID_EMAIL"
//	@Router			/v2/me/email [put].
func (h *MeHandler) HandleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, err := authn.UserID(ctx)
	if err != nil {
		authn.WriteError(w, err, authn.ResourceErrors)
		return
	}

	var req authsdk.UpdateEmailRequest
	r.Body = http.MaxBytesReader(w, r.Body, httpx.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resourceError(w, http.StatusBadRequest, "Malformed request body", "MALFORMED_REQUEST")
		return
	}

	user, err := h.UserService.UpdateEmail(ctx, userID, req.Email)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidEmail):
		resourceError(w, http.StatusUnprocessableEntity, "Email address is not valid", "INVALID_EMAIL")
		return
	case errors.Is(err, service.ErrEmailTaken):
		resourceError(w, http.StatusConflict, "Email address is already in use", "DUPLICATE_EMAIL")
		return
	case errors.Is(err, service.ErrUserNotFound):
		resourceError(w, http.StatusNotFound, "User not found", "NOT_FOUND")
		return
	default:
		log.Error("failed to update email", "user_id", userID, "err", err)
		authn.WriteError(w, err, authn.ResourceErrors)
		return
	}

	resp, err := h.response(r, user.Email)
	if err != nil {
		authn.WriteError(w, err, authn.ResourceErrors)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
