package agent

import (
	"encoding/json"
	"net/http"
)

type checkRequest struct {
	Force  bool `json:"force"`
	Manual bool `json:"manual"`
}

type installRequest struct {
	PackageIDs     []string `json:"packageIds"`
	Simulate       bool     `json:"simulate"`
	AllowUntrusted bool     `json:"allowUntrusted"`
}

type eulaAnswer struct {
	EulaID string `json:"eulaId"`
	Agreed bool   `json:"agreed"`
}

type detailRequest struct {
	PackageID string `json:"packageId"`
}

// Handler serves the command endpoints alongside the status feed.
func (a *Agent) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/updates/", a.feed.Handler())
	mux.HandleFunc("POST /v1/updates/check", a.handleCheck)
	mux.HandleFunc("POST /v1/updates/install", a.handleInstall)
	mux.HandleFunc("POST /v1/updates/eula", a.handleEula)
	mux.HandleFunc("POST /v1/updates/details", a.handleDetails)
	return mux
}

func (a *Agent) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	a.CheckUpdates(req.Force, req.Manual)
	w.WriteHeader(http.StatusAccepted)
}

func (a *Agent) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.PackageIDs) == 0 {
		http.Error(w, "packageIds required", http.StatusBadRequest)
		return
	}
	allowUntrusted := req.AllowUntrusted || a.cfg.AllowUntrusted
	a.InstallUpdates(req.PackageIDs, req.Simulate, allowUntrusted)
	w.WriteHeader(http.StatusAccepted)
}

func (a *Agent) handleEula(w http.ResponseWriter, r *http.Request) {
	var req eulaAnswer
	if !decode(w, r, &req) {
		return
	}
	if req.EulaID == "" {
		http.Error(w, "eulaId required", http.StatusBadRequest)
		return
	}
	a.EulaAgreementResult(req.EulaID, req.Agreed)
	w.WriteHeader(http.StatusAccepted)
}

func (a *Agent) handleDetails(w http.ResponseWriter, r *http.Request) {
	var req detailRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PackageID == "" {
		http.Error(w, "packageId required", http.StatusBadRequest)
		return
	}
	a.GetUpdateDetails(req.PackageID)
	w.WriteHeader(http.StatusAccepted)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
