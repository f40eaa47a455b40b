package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	db "pennywise-server/src/db/sql"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func GetUser(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requesterID := r.Context().Value("user_id").(int64)
		userIDStr := chi.URLParam(r, "user_id")
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			log.Printf("ERROR: Invalid user id param: %s", userIDStr)
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		superAdmin, _ := r.Context().Value("super_admin").(bool)
		if userID != requesterID && !superAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		user, err := db.GetUserByID(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get user %d: %v", userID, err)
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(user)
	}
}

func DeleteUser(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		if err := db.DeleteUser(r.Context(), pool, userID); err != nil {
			log.Printf("ERROR: Failed to delete user %d: %v", userID, err)
			http.Error(w, "failed to delete user", http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Deleted user %d", userID)
		w.WriteHeader(http.StatusNoContent)
	}
}
