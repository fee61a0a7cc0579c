package session

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hearthside/gametable/internal/domain"
	"github.com/hearthside/gametable/internal/infrastructure/events"
	"github.com/hearthside/gametable/internal/infrastructure/json"
	"github.com/hearthside/gametable/internal/infrastructure/validate"
	"github.com/hearthside/gametable/internal/infrastructure/ws"
	"github.com/hearthside/gametable/internal/presentation/utils"
)

var validUsername = validate.Field("username",
	validate.Required(),
	validate.LengthBetween(2, 32),
)

type Handler struct {
	core       *ws.Coordinator
	authorizer domain.Authorizer
	upgrader   *ws.Upgrader
	buffer     int
	publisher  *events.SessionPublisher
}

func NewHandler(
	core *ws.Coordinator,
	authorizer domain.Authorizer,
	upgrader *ws.Upgrader,
	clientBuffer int,
	publisher *events.SessionPublisher,
) *Handler {
	return &Handler{
		core:       core,
		authorizer: authorizer,
		upgrader:   upgrader,
		buffer:     clientBuffer,
		publisher:  publisher,
	}
}

// JoinSessionHandler upgrades the connection and places the participant in
// the campaign room. Authorization runs before the upgrade so a rejected
// join never touches the roster.
func (h *Handler) JoinSessionHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if campaignID == "" {
		json.WriteValidationError(w, errors.New("campaign ID is missing"))
		return
	}

	username := r.URL.Query().Get("username")
	if err := validUsername(username); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	// cookies must be set before the protocol switch
	playerToken := utils.GetPlayerToken(w, r)

	participant, err := h.authorizer.Authorize(r.Context(), campaignID, playerToken, username)
	if err != nil {
		if h.publisher != nil {
			h.publisher.JoinRejected(r.Context(), campaignID, domain.Participant{UserID: playerToken, Username: username})
		}
		switch {
		case errors.Is(err, domain.ErrCampaignNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Campaign not found")
		case errors.Is(err, domain.ErrNotAuthorized):
			json.WriteError(w, http.StatusUnauthorized, err, "You are not a member of this campaign")
		default:
			log.Printf("Authorization failed for campaign %s: %v", campaignID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		log.Printf("WebSocket upgrade failed for campaign %s: %v", campaignID, err)
		return
	}

	client := ws.NewClient(conn, campaignID, *participant, h.buffer)

	if err := h.core.Join(r.Context(), client); err != nil {
		log.Printf("Join failed for campaign %s: %v", campaignID, err)
		_ = conn.WriteJSON(ws.NewJoinFailed(campaignID, "Cannot join session"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.core)

	log.Printf("User %s (%s) connected to campaign %s", participant.Username, participant.UserID, campaignID)
}
