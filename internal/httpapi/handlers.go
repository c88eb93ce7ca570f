package httpapi

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"partsledger/backend/internal/domain"
	"partsledger/backend/internal/importer"
)

func (a *API) handleParts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		parts, err := a.service.ListParts(r.Context())
		if err != nil {
			a.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"parts": parts})
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var req domain.PartCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		batch, err := importer.FromRequest(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.ImportParts(r.Context(), batch)
		a.writeOutcome(w, http.StatusCreated, result, err)
	case http.MethodDelete:
		if !requireAdmin(w, r) {
			return
		}
		query := r.URL.Query()
		number := strings.TrimSpace(query.Get("number"))
		if number == "" {
			writeError(w, http.StatusBadRequest, errors.New("part number required"))
			return
		}
		key, err := domain.ParsePartKey(number, query.Get("price"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.RemovePart(r.Context(), key)
		a.writeOutcome(w, http.StatusOK, result, err)
	default:
		writeMethodNotAllowed(w)
	}
}

// handlePartImport accepts a multipart upload in the "file" field. The
// parser is chosen by file extension.
func (a *API) handlePartImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file field required"))
		return
	}
	defer file.Close()

	var batch importer.Batch
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		batch, err = importer.ParseCSV(file)
	case ".xlsx":
		batch, err = importer.ParseXLSX(file)
	default:
		writeError(w, http.StatusBadRequest, errors.New("only .csv and .xlsx files are supported"))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.ImportParts(r.Context(), batch)
	a.writeOutcome(w, http.StatusOK, result, err)
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context())
		if err != nil {
			a.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.CreateSale(r.Context(), req)
		a.writeOutcome(w, http.StatusCreated, result, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	saleID, action, ok := actionPath(r.URL.Path, "/api/v1/sales/")
	if !ok || saleID == "" {
		writeError(w, http.StatusBadRequest, errors.New("invalid sale action path"))
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		sale, err := a.service.GetSale(r.Context(), saleID)
		if err != nil {
			a.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	switch action {
	case "payment-type":
		var req domain.SalePaymentTypeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.ChangeSalePaymentType(r.Context(), saleID, req)
		a.writeOutcome(w, http.StatusOK, result, err)
	case "cancel":
		result, err := a.service.CancelSale(r.Context(), saleID)
		a.writeOutcome(w, http.StatusOK, result, err)
	case "restore":
		result, err := a.service.RestoreSale(r.Context(), saleID)
		a.writeOutcome(w, http.StatusOK, result, err)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown sale action"))
	}
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		purchases, err := a.service.ListPurchases(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			a.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var req domain.PurchaseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.CreatePurchase(r.Context(), req)
		a.writeOutcome(w, http.StatusCreated, result, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	purchaseID, action, ok := actionPath(r.URL.Path, "/api/v1/purchases/")
	if !ok || purchaseID == "" {
		writeError(w, http.StatusBadRequest, errors.New("invalid purchase action path"))
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		purchase, err := a.service.GetPurchase(r.Context(), purchaseID)
		if err != nil {
			a.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchase": purchase})
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	switch action {
	case "status":
		var req domain.PurchaseStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.ChangePurchaseStatus(r.Context(), purchaseID, req)
		a.writeOutcome(w, http.StatusOK, result, err)
	case "settlement":
		var req domain.PurchaseSettlementRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := a.service.ChangePurchaseSettlement(r.Context(), purchaseID, req)
		a.writeOutcome(w, http.StatusOK, result, err)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown purchase action"))
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		a.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		a.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (a *API) handleCustomerBalance(w http.ResponseWriter, r *http.Request) {
	customerID, ok := balancePath(w, r, "/api/v1/customers/")
	if !ok {
		return
	}
	var req domain.BalanceOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.OverrideCustomerBalance(r.Context(), customerID, req)
	a.writeOutcome(w, http.StatusOK, result, err)
}

func (a *API) handleSupplierBalance(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := balancePath(w, r, "/api/v1/suppliers/")
	if !ok {
		return
	}
	var req domain.BalanceOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.OverrideSupplierBalance(r.Context(), supplierID, req)
	a.writeOutcome(w, http.StatusOK, result, err)
}

func balancePath(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return "", false
	}
	id, action, ok := actionPath(r.URL.Path, prefix)
	if !ok || id == "" || action != "balance" {
		writeError(w, http.StatusNotFound, errors.New("unknown balance path"))
		return "", false
	}
	return id, true
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	result, err := a.service.ReconcileBalances(r.Context())
	a.writeOutcome(w, http.StatusOK, result, err)
}
