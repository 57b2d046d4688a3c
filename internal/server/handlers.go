package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/NgigiN/ledger/internal/apperr"
	"github.com/NgigiN/ledger/internal/auth"
	"github.com/NgigiN/ledger/internal/storage"
)

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid JSON body", err)
	}
	return nil
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ledger service")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	dbErr := s.db.Ping(r.Context())
	if dbErr != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":             status,
		"uptime":             time.Since(s.startTime).Round(time.Second).String(),
		"database_connected": dbErr == nil,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Password string     `json:"password"`
		Phone    phoneField `json:"phno"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if _, err := s.auth.Register(r.Context(), auth.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    string(req.Phone),
		Password: req.Password,
	}); err != nil {
		writeErr(w, err)
		return
	}
	writeMsg(w, http.StatusCreated, "User registered")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	as, err := s.auth.Login(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": as.Token})
}

func (s *Server) recoverAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	as, err := s.auth.InitiateRecovery(r.Context(), req.Email)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reset_token": as.Token})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.auth.ResetPassword(r.Context(), identityFrom(r.Context()), req.NewPassword); err != nil {
		writeErr(w, err)
		return
	}
	writeMsg(w, http.StatusOK, "Password reset successful")
}

type accountView struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phno"`
	Balance int64  `json:"balance"`
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Account(r.Context(), identityFrom(r.Context()).AccountID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView{Name: a.Name, Email: a.Email, Phone: a.Phone, Balance: a.Balance})
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  *string     `json:"name"`
		Phone *phoneField `json:"phno"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	var upd storage.ProfileUpdate
	if req.Name != nil {
		if *req.Name == "" {
			writeErr(w, apperr.New(apperr.KindInvalidInput, "name cannot be empty"))
			return
		}
		upd.Name = req.Name
	}
	if req.Phone != nil {
		p := string(*req.Phone)
		upd.Phone = &p
	}
	if _, err := s.db.UpdateProfile(r.Context(), identityFrom(r.Context()).AccountID, upd); err != nil {
		writeErr(w, err)
		return
	}
	writeMsg(w, http.StatusOK, "Account updated")
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToEmail string      `json:"to_email"`
		Amount  amountField `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if !req.Amount.valid {
		writeErr(w, apperr.ErrInvalidAmount)
		return
	}

	receipt, err := s.engine.Transfer(r.Context(), identityFrom(r.Context()).AccountID, req.ToEmail, req.Amount.value)
	switch {
	case errors.Is(err, apperr.ErrRecipientNotFound),
		errors.Is(err, apperr.ErrInsufficientFunds),
		errors.Is(err, apperr.ErrInvalidTransfer):
		// same answer whether or not the recipient exists
		writeMsg(w, http.StatusBadRequest, "Invalid transfer")
		return
	case err != nil:
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"msg":         "Transfer successful",
		"transfer_id": receipt.TransferID,
	})
}

type historyEntry struct {
	Type   storage.TxType `json:"type"`
	Amount int64          `json:"amount"`
	Time   string         `json:"time"`
	Desc   string         `json:"desc"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	typ := storage.TxType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		writeErr(w, apperr.New(apperr.KindInvalidInput, "type must be credit or debit"))
		return
	}
	txs, err := s.engine.History(r.Context(), identityFrom(r.Context()).AccountID, typ)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]historyEntry, 0, len(txs))
	for _, t := range txs {
		out = append(out, historyEntry{
			Type:   t.Type,
			Amount: t.Amount,
			Time:   t.Timestamp.UTC().Format(time.RFC3339Nano),
			Desc:   t.Description,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context()).AccountID
	if _, err := s.engine.Account(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=statement.csv")
	if err := s.engine.ExportStatement(r.Context(), id, w); err != nil {
		s.log.Error("statement export failed", "account", id, "error", err)
	}
}

type adminAccountView struct {
	ID      uint           `json:"id"`
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Balance int64          `json:"balance"`
	Status  storage.Status `json:"status"`
	Role    storage.Role   `json:"role"`
}

func (s *Server) adminAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.engine.Accounts(r.Context(), identityFrom(r.Context()).AccountID)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]adminAccountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, adminAccountView{
			ID:      a.ID,
			Name:    a.Name,
			Email:   a.Email,
			Balance: a.Balance,
			Status:  a.Status,
			Role:    a.Role,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) adminAddFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string      `json:"email"`
		Amount amountField `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Email == "" || !req.Amount.set || (req.Amount.valid && req.Amount.value == 0) {
		writeErr(w, apperr.New(apperr.KindInvalidInput, "Missing email or amount"))
		return
	}
	if !req.Amount.valid {
		writeErr(w, apperr.New(apperr.KindInvalidAmount, "Invalid amount"))
		return
	}

	a, err := s.engine.CreditAdminByEmail(r.Context(), req.Email, req.Amount.value, identityFrom(r.Context()).AccountID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeMsg(w, http.StatusOK, fmt.Sprintf("Added ₹%d to %s's account.", req.Amount.value, a.Email))
}
