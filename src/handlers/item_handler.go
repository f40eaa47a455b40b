package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	db "pennywise-server/src/db/sql"
	"pennywise-server/src/models"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"
)

func CreateLinkToken(plaidClient *plaid.APIClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		user := plaid.LinkTokenCreateRequestUser{
			ClientUserId: strconv.FormatInt(userID, 10),
		}
		request := plaid.NewLinkTokenCreateRequest(
			"Pennywise",
			"en",
			[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		)
		request.SetUser(user)
		request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
		resp, _, err := plaidClient.PlaidApi.LinkTokenCreate(r.Context()).LinkTokenCreateRequest(*request).Execute()
		if err != nil {
			http.Error(w, "Failed to create link token", http.StatusInternalServerError)
			log.Printf("ERROR: Plaid link token creation failed for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(resp.GetLinkToken())
	}
}

func ExchangePublicToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool, plaidEnv string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			PublicToken string `json:"public_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode exchange public token request body: %v", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		exchangeReq := plaid.NewItemPublicTokenExchangeRequest(req.PublicToken)
		exchangeResp, _, err := plaidClient.PlaidApi.ItemPublicTokenExchange(r.Context()).ItemPublicTokenExchangeRequest(
			*exchangeReq,
		).Execute()
		if err != nil {
			http.Error(w, "Failed to exchange public token", http.StatusInternalServerError)
			log.Printf("ERROR: Plaid public token exchange failed for user %d: %v", userID, err)
			return
		}

		accessToken := exchangeResp.GetAccessToken()
		externalItemID := exchangeResp.GetItemId()

		// Institution details are optional; don't fail the flow on them.
		institutionID := ""
		institutionName := ""
		itemReq := plaid.NewItemGetRequest(accessToken)
		itemResp, _, err := plaidClient.PlaidApi.ItemGet(r.Context()).ItemGetRequest(*itemReq).Execute()
		if err != nil {
			log.Printf("ERROR: Failed to fetch item details for user %d: %v", userID, err)
		} else {
			if itemResp.GetItem().InstitutionId.IsSet() {
				institutionID = *itemResp.GetItem().InstitutionId.Get()
			}
			if name, ok := itemResp.GetItem().AdditionalProperties["institution_name"].(string); ok {
				institutionName = name
			}
		}

		saved, err := db.SaveItem(r.Context(), pool, &models.Item{
			UserID:          userID,
			ItemID:          externalItemID,
			AccessToken:     accessToken,
			InstitutionID:   institutionID,
			InstitutionName: institutionName,
			Environment:     plaidEnv,
		})
		if err != nil {
			http.Error(w, "Failed to save item", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to save item for user %d: %v", userID, err)
			return
		}

		log.Printf("INFO: Successfully exchanged public token and saved item for user %d, item %s", userID, externalItemID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(saved)
	}
}

func GetItems(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		items, err := db.GetItemsForUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to retrieve items", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get items for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}
}

func GetAccounts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		itemIDStr := chi.URLParam(r, "item_id")
		itemRowID, err := strconv.ParseInt(itemIDStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		accounts, err := db.GetAccountsForUser(r.Context(), pool, userID, itemRowID)
		if err != nil {
			http.Error(w, "Failed to retrieve accounts", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get accounts for user %d, item %d: %v", userID, itemRowID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accounts)
	}
}

func DeleteItem(plaidClient *plaid.APIClient, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		itemIDStr := chi.URLParam(r, "item_id")
		itemRowID, err := strconv.ParseInt(itemIDStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		item, err := db.GetItemByID(r.Context(), pool, userID, itemRowID)
		if err != nil {
			http.Error(w, "item not found", http.StatusNotFound)
			log.Printf("ERROR: Failed to get item %d for user %d: %v", itemRowID, userID, err)
			return
		}

		removeReq := plaid.NewItemRemoveRequest(item.AccessToken)
		if _, _, err := plaidClient.PlaidApi.ItemRemove(r.Context()).ItemRemoveRequest(*removeReq).Execute(); err != nil {
			// The provider-side removal is best effort; local deletion
			// still proceeds so the user is never stuck with the item.
			log.Printf("ERROR: Plaid item removal failed for item %d: %v", itemRowID, err)
		}

		if err := db.DeleteItem(r.Context(), pool, userID, itemRowID); err != nil {
			http.Error(w, "failed to delete item", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to delete item %d for user %d: %v", itemRowID, userID, err)
			return
		}

		log.Printf("INFO: Deleted item %d for user %d", itemRowID, userID)
		w.WriteHeader(http.StatusNoContent)
	}
}
