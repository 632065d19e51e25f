package api

import (
	"net/http"

	"github.com/hackgods/salon-scheduling/internal/realtime"
)

// serveWS subscribes staff to their business room and customers to their
// own room, then hands the connection to the realtime layer.
func serveWS(ws *realtime.WSHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := mustActor(r)

		var rooms []string
		if actor.Role.Staff() {
			rooms = append(rooms, realtime.BusinessRoom(actor.BusinessID))
		} else {
			rooms = append(rooms, realtime.UserRoom(actor.ID))
		}
		ws.ServeRooms(w, r, rooms)
	}
}
