package server

import (
	"net/http"

	"github.com/mmynk/billparty/internal/models"
)

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type updateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleUsers serves the user collection: GET lists, POST creates.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listUsers(w, r)
	case http.MethodPost:
		s.createUser(w, r)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleUserByID serves a single user: GET, PUT, DELETE.
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		user, err := s.store.GetUserByID(r.Context(), id)
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		s.updateUser(w, r, id)
	case http.MethodDelete:
		if err := s.store.DeleteUser(r.Context(), id); err != nil {
			s.storeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if missing := requireFields(
		[2]string{"name", req.Name},
		[2]string{"email", req.Email},
	); len(missing) > 0 {
		s.missingFields(w, missing)
		return
	}

	user := &models.User{Name: req.Name, Email: req.Email}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.storeError(w, r, err)
		return
	}

	s.logger.Info("user created", "user_id", user.ID, "email", user.Email)
	s.writeJSON(w, http.StatusCreated, user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if missing := requireFields(
		[2]string{"name", req.Name},
		[2]string{"email", req.Email},
	); len(missing) > 0 {
		s.missingFields(w, missing)
		return
	}

	user := &models.User{ID: id, Name: req.Name, Email: req.Email}
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.storeError(w, r, err)
		return
	}

	// Echo the persisted row, not the request, so fields the update does
	// not touch (creation time) come back populated.
	updated, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}
