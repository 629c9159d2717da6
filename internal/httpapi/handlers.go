package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pharmabill/backend/internal/domain"
	"pharmabill/backend/internal/service"
)

func (a *API) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	search := service.ProductQuery{
		Text:  query.Get("q"),
		Mode:  query.Get("mode"),
		Limit: parsePositiveLimit(query.Get("limit"), 0, 50),
	}
	if raw := strings.TrimSpace(query.Get("schedule")); raw != "" {
		search.Filter.Schedule = domain.ParseSchedule(raw)
	}
	if inStock, err := strconv.ParseBool(query.Get("in_stock")); err == nil {
		search.Filter.InStock = inStock
	}

	resp, err := a.service.SearchProducts(r.Context(), search)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	product, err := a.service.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleDerivePricing(w http.ResponseWriter, r *http.Request) {
	var req domain.PricingDeriveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.DerivePricing(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	customers, err := a.service.ListCustomers(r.Context(), query.Get("type"), query.Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.OpenSession(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cart": cart})
}

func (a *API) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.GetCart(r.Context(), r.PathValue("id"))
	writeCart(w, cart, err)
}

func (a *API) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := a.service.CloseSession(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req domain.AddLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cart, err := a.service.AddLine(r.Context(), r.PathValue("id"), req)
	writeCart(w, cart, err)
}

func (a *API) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req domain.UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cart, err := a.service.UpdateQuantity(r.Context(), r.PathValue("id"), index, req)
	writeCart(w, cart, err)
}

func (a *API) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	cart, err := a.service.RemoveLine(r.Context(), r.PathValue("id"), index)
	writeCart(w, cart, err)
}

func (a *API) handleResetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.ResetCart(r.Context(), r.PathValue("id"))
	writeCart(w, cart, err)
}

func (a *API) handleBindCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.BindCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cart, err := a.service.BindCustomer(r.Context(), r.PathValue("id"), req)
	writeCart(w, cart, err)
}

func (a *API) handleGetCompliance(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.GetCompliance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"compliance": status})
}

func (a *API) handleSetCompliance(w http.ResponseWriter, r *http.Request) {
	var record domain.ComplianceRecord
	if err := decodeJSON(r, &record); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := a.service.SetCompliance(r.Context(), r.PathValue("id"), record)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"compliance": status})
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	resp, err := a.service.Checkout(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleShortcut(w http.ResponseWriter, r *http.Request) {
	var req domain.ShortcutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Shortcut(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)

	invoices, err := a.service.ListInvoices(r.Context(), date, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.BuildReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeCart(w http.ResponseWriter, cart domain.CartView, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue(name)), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid "+name))
		return 0, false
	}
	return id, true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(r.PathValue("index")))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid line index"))
		return 0, false
	}
	return index, true
}
