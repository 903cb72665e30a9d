package httpapi

import (
	"net/http"

	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds shared.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	resp, err := s.users.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	s.logger.Info(r.Context(), "Logged in", "user_id", resp.User.ID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	var f shared.LocationFilter
	q := r.URL.Query()
	if t := q.Get("type"); t != "" {
		lt, err := shared.ParseLocationType(t)
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		f.Type = lt
	}
	f.City = q.Get("city")

	locs, err := s.locations.List(r.Context(), f)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if locs == nil {
		locs = []shared.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) createLocation(w http.ResponseWriter, r *http.Request) {
	var in shared.LocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	loc, err := s.locations.Create(r.Context(), userIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) updateLocation(w http.ResponseWriter, r *http.Request) {
	var patch shared.LocationPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	loc, err := s.locations.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) deleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.locations.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in shared.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	u, err := s.users.Create(r.Context(), userIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var patch shared.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	u, err := s.users.Update(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
